// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"github.com/opentracker/chihaya/bittorrent"
)

// eventIDs maps the single-byte event field of a UDP announce, as defined
// by BEP 15, to an Event.
var eventIDs = []bittorrent.Event{
	bittorrent.None,
	bittorrent.Completed,
	bittorrent.Started,
	bittorrent.Stopped,
}

// Option-Types as described in BEP 41 and BEP 45.
const (
	optionEndOfOptions byte = 0x0
	optionNOP          byte = 0x1
	optionURLData      byte = 0x2
)

// ParseOptions tunes how a raw packet's announce/scrape body is parsed and
// sanitized, ahead of being handed to the tracker policy layer.
type ParseOptions struct {
	AllowIPSpoofing     bool
	MaxNumWant          uint32
	DefaultNumWant      uint32
	MaxScrapeInfoHashes uint32
}

// parseAnnounce parses an AnnounceRequest out of a whole Announce packet.
// The 16-byte connection header has already been checked by the caller but
// is still present, so the offsets below count from the start of the
// packet, as BEP 15 numbers them.
//
// v6 selects the "old opentracker" 18-byte-peer-entry variant, which widens
// the embedded IP field from 4 to 16 bytes; everything after it shifts by
// 12 bytes accordingly.
func parseAnnounce(packet []byte, sourceIP net.IP, v6 bool, opts ParseOptions) (*bittorrent.AnnounceRequest, error) {
	ipEnd := 84 + net.IPv4len
	if v6 {
		ipEnd = 84 + net.IPv6len
	}

	if len(packet) < ipEnd+10 {
		return nil, errMalformedPacket
	}

	infohash := packet[16:36]
	peerID := packet[36:56]
	downloaded := binary.BigEndian.Uint64(packet[56:64])
	left := binary.BigEndian.Uint64(packet[64:72])
	uploaded := binary.BigEndian.Uint64(packet[72:80])

	eventID := int(packet[83])
	if eventID >= len(eventIDs) {
		return nil, errMalformedEvent
	}

	ip := sourceIP
	ipProvided := false
	if opts.AllowIPSpoofing {
		ip = append([]byte(nil), packet[84:ipEnd]...)
		ipProvided = true
	}
	if ip == nil {
		return nil, errMalformedIP
	}

	resolvedIP, err := bittorrent.AddressFamilyOf(ip)
	if err != nil {
		return nil, errMalformedIP
	}

	numWant := binary.BigEndian.Uint32(packet[ipEnd+4 : ipEnd+8])
	port := binary.BigEndian.Uint16(packet[ipEnd+8 : ipEnd+10])

	params, err := parseOptionalParameters(packet[ipEnd+10:])
	if err != nil {
		return nil, err
	}
	authKey, _ := params.String("authkey")

	req := &bittorrent.AnnounceRequest{
		InfoHash: bittorrent.InfoHashFromBytes(infohash),
		Peer: bittorrent.Peer{
			ID:         bittorrent.PeerIDFromBytes(peerID),
			Port:       port,
			Uploaded:   uploaded,
			Downloaded: downloaded,
			Left:       left,
		},
		Event:              eventIDs[eventID],
		NumWant:            numWant,
		Compact:            true,
		AuthKey:            authKey,
		IPProvided:         ipProvided,
		ClientIPFromSocket: resolvedIP,
		HasSocketIP:        true,
	}

	if err := bittorrent.SanitizeAnnounce(req, opts.MaxNumWant, opts.DefaultNumWant); err != nil {
		return nil, err
	}

	return req, nil
}

type buffer struct {
	bytes.Buffer
}

var bufferFree = sync.Pool{
	New: func() interface{} { return new(buffer) },
}

func newBuffer() *buffer {
	return bufferFree.Get().(*buffer)
}

func (b *buffer) free() {
	b.Reset()
	bufferFree.Put(b)
}

// parseOptionalParameters parses the BEP 41/45 optional-parameters trailer
// of an announce packet into Params, reassembling any URL-data fragments
// before handing the result to the shared query parser.
func parseOptionalParameters(packet []byte) (bittorrent.Params, error) {
	if len(packet) == 0 {
		return bittorrent.ParseURLData("")
	}

	buf := newBuffer()
	defer buf.free()

	for i := 0; i < len(packet); {
		switch packet[i] {
		case optionEndOfOptions:
			return bittorrent.ParseURLData(buf.String())
		case optionNOP:
			i++
		case optionURLData:
			if i+1 >= len(packet) {
				return nil, errMalformedPacket
			}
			length := int(packet[i+1])
			if i+2+length > len(packet) {
				return nil, errMalformedPacket
			}
			n, err := buf.Write(packet[i+2 : i+2+length])
			if err != nil {
				return nil, err
			}
			if n != length {
				return nil, fmt.Errorf("expected to write %d bytes, wrote %d", length, n)
			}
			i += 2 + length
		default:
			return nil, errUnknownOptionType
		}
	}

	return bittorrent.ParseURLData(buf.String())
}

// parseScrape parses a ScrapeRequest out of the body of a Scrape packet.
func parseScrape(packet []byte, opts ParseOptions) (*bittorrent.ScrapeRequest, error) {
	if len(packet) < scrapeMinLen {
		return nil, errMalformedPacket
	}

	body := packet[16:]
	if len(body)%bittorrent.InfoHashSize != 0 {
		return nil, errMalformedPacket
	}

	var hashes []bittorrent.InfoHash
	for len(body) >= bittorrent.InfoHashSize {
		hashes = append(hashes, bittorrent.InfoHashFromBytes(body[:bittorrent.InfoHashSize]))
		body = body[bittorrent.InfoHashSize:]
	}

	req := &bittorrent.ScrapeRequest{InfoHashes: hashes}
	if err := bittorrent.SanitizeScrape(req, opts.MaxScrapeInfoHashes); err != nil {
		return nil, err
	}

	return req, nil
}
