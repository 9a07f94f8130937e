// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package udp implements a BitTorrent tracker over the UDP protocol as per
// BEP 15, including the BEP 41/45 optional-parameter extension and BEP 48's
// scrape semantics.
package udp

import (
	"bytes"
	"encoding/binary"
	"net"

	"github.com/opentracker/chihaya/bittorrent"
)

// action identifies which of the four BEP 15 request/response kinds a
// packet carries.
type action uint32

const (
	actionConnect action = iota
	actionAnnounce
	actionScrape
	actionError
	// actionAnnounceV6 is the "old opentracker" IPv6 announce variant:
	// identical to actionAnnounce except peer entries are packed 18 bytes
	// wide (16-byte IP, 2-byte port) instead of 6.
	actionAnnounceV6
)

// initialConnectionID is the fixed connection ID a client must send with
// its first Connect request, per BEP 15.
var initialConnectionID = [8]byte{0, 0, 0x04, 0x17, 0x27, 0x10, 0x19, 0x80}

const (
	headerLen    = 16 // connection_id(8) + action(4) + transaction_id(4)
	scrapeMinLen = headerLen + bittorrent.InfoHashSize
)

// header is the 16-byte prefix common to every UDP tracker request.
type header struct {
	ConnectionID  uint64
	Action        action
	TransactionID uint32
}

func parseHeader(packet []byte) (header, error) {
	if len(packet) < headerLen {
		return header{}, errMalformedPacket
	}
	return header{
		ConnectionID:  binary.BigEndian.Uint64(packet[0:8]),
		Action:        action(binary.BigEndian.Uint32(packet[8:12])),
		TransactionID: binary.BigEndian.Uint32(packet[12:16]),
	}, nil
}

var (
	errMalformedPacket   = bittorrent.ClientError("malformed packet")
	errMalformedIP       = bittorrent.ClientError("malformed IP address")
	errMalformedEvent    = bittorrent.ClientError("malformed event ID")
	errUnknownAction     = bittorrent.ClientError("unknown action ID")
	errUnknownOptionType = bittorrent.ClientError("unknown option type")
)

// writeConnectResponse writes a Connect response: action, transaction ID,
// and the freshly issued connection ID/cookie.
func writeConnectResponse(txID uint32, connID uint64) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(actionConnect))
	writeUint32(&buf, txID)
	writeUint64(&buf, connID)
	return buf.Bytes()
}

// writeAnnounceResponse writes an Announce response: action, transaction
// ID, interval, leechers, seeders, and a compact peer list.
func writeAnnounceResponse(txID uint32, interval, leechers, seeders uint32, peers bittorrent.PeerList, v6 bool) []byte {
	var buf bytes.Buffer
	if v6 {
		writeUint32(&buf, uint32(actionAnnounceV6))
	} else {
		writeUint32(&buf, uint32(actionAnnounce))
	}
	writeUint32(&buf, txID)
	writeUint32(&buf, interval)
	writeUint32(&buf, leechers)
	writeUint32(&buf, seeders)

	for _, p := range peers {
		ip := p.IP.IP.To4()
		if v6 {
			ip = p.IP.IP.To16()
		}
		if ip == nil {
			continue
		}
		buf.Write(ip)
		writeUint16(&buf, p.Port)
	}

	return buf.Bytes()
}

// writeScrapeResponse writes a Scrape response: action, transaction ID,
// then a (seeders, completed, leechers) triple per requested info-hash, in
// request order.
func writeScrapeResponse(txID uint32, infoHashes []bittorrent.InfoHash, files map[bittorrent.InfoHash]bittorrent.SwarmMetadata) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(actionScrape))
	writeUint32(&buf, txID)

	for _, ih := range infoHashes {
		meta := files[ih]
		writeUint32(&buf, uint32(meta.Complete))
		writeUint32(&buf, meta.Downloaded)
		writeUint32(&buf, uint32(meta.Incomplete))
	}

	return buf.Bytes()
}

// writeErrorResponse writes an Error response: action, transaction ID, and
// a human-readable ASCII message.
func writeErrorResponse(txID uint32, message string) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(actionError))
	writeUint32(&buf, txID)
	buf.WriteString(message)
	return buf.Bytes()
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// addressFamilyOf reports the address family of a *net.UDPAddr, panicking
// never: UDP sockets hand back either 4-in-6 or pure 16-byte addresses, and
// To4 distinguishes them the same way storage/memory's decodePeerKey does.
func addressFamilyOf(addr *net.UDPAddr) bittorrent.AddressFamily {
	if addr.IP.To4() != nil {
		return bittorrent.IPv4
	}
	return bittorrent.IPv6
}
