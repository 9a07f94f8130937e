// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package http

import (
	"bytes"
	"net/http"
	"sort"

	"github.com/opentracker/chihaya/bencode"
	"github.com/opentracker/chihaya/bittorrent"
)

// Writer implements the bencoded HTTP response formats named by BEP 3 and
// BEP 23.
type Writer struct {
	http.ResponseWriter
}

// WriteError writes a bencode dict with a failure reason.
func (w *Writer) WriteError(err error) error {
	w.Header().Set("Content-Type", "text/plain")
	return bencode.NewEncoder(w).Encode(bencode.Dict{
		"failure reason": err.Error(),
	})
}

// WriteAnnounce writes a bencode dict representation of an
// AnnounceResponse, in compact form (BEP 23) when requested.
func (w *Writer) WriteAnnounce(res *bittorrent.AnnounceResponse, compact bool) error {
	dict := bencode.Dict{
		"complete":     res.Complete,
		"incomplete":   res.Incomplete,
		"interval":     res.Interval,
		"min interval": res.MinInterval,
	}

	if compact {
		dict["peers"] = compactPeers4(res.IPv4Peers)
		if len(res.IPv6Peers) > 0 {
			dict["peers6"] = compactPeers6(res.IPv6Peers)
		}
	} else {
		dict["peers"] = dictionaryPeers(append(append(bittorrent.PeerList{}, res.IPv4Peers...), res.IPv6Peers...))
	}

	w.Header().Set("Content-Type", "text/plain")
	return bencode.NewEncoder(w).Encode(dict)
}

// WriteScrape writes a bencode dict representation of a ScrapeResponse.
func (w *Writer) WriteScrape(res *bittorrent.ScrapeResponse) error {
	w.Header().Set("Content-Type", "text/plain")
	return bencode.NewEncoder(w).Encode(bencode.Dict{
		"files": filesDict(res.Files),
	})
}

// compactPeers4 packs IPv4 peers into BEP 23's 6-byte (4-byte IP, 2-byte
// port) compact form.
func compactPeers4(peers bittorrent.PeerList) []byte {
	var buf bytes.Buffer
	for _, p := range peers {
		ip := p.IP.IP.To4()
		if ip == nil {
			continue
		}
		buf.Write(ip)
		buf.WriteByte(byte(p.Port >> 8))
		buf.WriteByte(byte(p.Port))
	}
	return buf.Bytes()
}

// compactPeers6 packs IPv6 peers into the 18-byte (16-byte IP, 2-byte port)
// form used for the "peers6" key.
func compactPeers6(peers bittorrent.PeerList) []byte {
	var buf bytes.Buffer
	for _, p := range peers {
		ip := p.IP.IP.To16()
		if ip == nil {
			continue
		}
		buf.Write(ip)
		buf.WriteByte(byte(p.Port >> 8))
		buf.WriteByte(byte(p.Port))
	}
	return buf.Bytes()
}

// dictionaryPeers renders the non-compact "peer id"/"ip"/"port" dictionary
// form, kept for clients that do not request compact=1.
func dictionaryPeers(peers bittorrent.PeerList) []interface{} {
	list := make([]interface{}, 0, len(peers))
	for _, p := range peers {
		list = append(list, bencode.Dict{
			"peer id": p.ID.String(),
			"ip":      p.IP.IP.String(),
			"port":    int(p.Port),
		})
	}
	return list
}

func filesDict(files map[bittorrent.InfoHash]bittorrent.SwarmMetadata) bencode.Dict {
	// Iterate in a stable order so repeated scrapes of the same swarm set
	// produce byte-identical output.
	hashes := make([]bittorrent.InfoHash, 0, len(files))
	for ih := range files {
		hashes = append(hashes, ih)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Less(hashes[j]) })

	d := bencode.NewDict()
	for _, ih := range hashes {
		meta := files[ih]
		d[ih.String()] = bencode.Dict{
			"complete":   meta.Complete,
			"incomplete": meta.Incomplete,
			"downloaded": meta.Downloaded,
		}
	}
	return d
}
