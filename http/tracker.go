// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package http

import (
	"net"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/opentracker/chihaya/bittorrent"
	"github.com/opentracker/chihaya/http/query"
)

// newAnnounce parses an HTTP request into a bittorrent.AnnounceRequest.
func (s *Server) newAnnounce(r *http.Request, p httprouter.Params) (*bittorrent.AnnounceRequest, error) {
	q, err := query.New(r.URL.RawQuery)
	if err != nil {
		return nil, bittorrent.ErrMalformedRequest
	}

	if len(q.Infohashes) != 1 {
		return nil, bittorrent.ErrMalformedRequest
	}

	peerIDStr, exists := q.Params["peer_id"]
	if !exists {
		return nil, bittorrent.ErrMalformedRequest
	}

	port, err := q.Uint64("port")
	if err != nil {
		return nil, bittorrent.ErrMalformedRequest
	}

	left, err := q.Uint64("left")
	if err != nil {
		return nil, bittorrent.ErrMalformedRequest
	}

	downloaded, _ := q.Uint64("downloaded")
	uploaded, _ := q.Uint64("uploaded")

	numWant := uint64(0)
	if _, ok := q.Params["numwant"]; ok {
		numWant, _ = q.Uint64("numwant")
	}

	compact := true
	if v, ok := q.Params["compact"]; ok {
		compact = v != "0"
	}

	event := bittorrent.None
	if eventStr, ok := q.Params["event"]; ok {
		event, err = bittorrent.NewEvent(eventStr)
		if err != nil {
			return nil, err
		}
	}

	req := &bittorrent.AnnounceRequest{
		InfoHash: bittorrent.InfoHashFromString(q.Infohashes[0]),
		Peer: bittorrent.Peer{
			ID:         bittorrent.PeerIDFromString(peerIDStr),
			Port:       uint16(port),
			Uploaded:   uploaded,
			Downloaded: downloaded,
			Left:       left,
		},
		Event:       event,
		NumWant:     uint32(numWant),
		Compact:     compact,
		AuthKey:     p.ByName("authkey"),
		CanCarryXFF: true,
	}

	s.setClientIPs(req, q, r)

	return req, nil
}

// setClientIPs populates the socket-address and X-Forwarded-For candidate
// IPs a Tracker chooses between per spec.md §4.2 step 1.
func (s *Server) setClientIPs(req *bittorrent.AnnounceRequest, q *query.Query, r *http.Request) {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if ip, famErr := bittorrent.AddressFamilyOf(net.ParseIP(host)); famErr == nil {
			req.ClientIPFromSocket = ip
			req.HasSocketIP = true
		}
	}

	header := "X-Forwarded-For"
	if s.config.RealIPHeader != "" {
		header = s.config.RealIPHeader
	}
	if xff := r.Header.Get(header); xff != "" {
		if ip, famErr := bittorrent.AddressFamilyOf(net.ParseIP(rightmostXFF(xff))); famErr == nil {
			req.ClientIPFromXFF = ip
			req.HasXFF = true
		}
	}

	if ipStr, ok := q.Params["ip"]; ok && s.config.AllowIPSpoofing {
		if ip, famErr := bittorrent.AddressFamilyOf(net.ParseIP(ipStr)); famErr == nil {
			req.ClientIPFromSocket = ip
			req.HasSocketIP = true
			req.IPProvided = true
		}
	}
}

// rightmostXFF returns the last, and therefore least spoofable, address in
// a comma-separated X-Forwarded-For header.
func rightmostXFF(header string) string {
	last := header
	for i := len(header) - 1; i >= 0; i-- {
		if header[i] == ',' {
			last = header[i+1:]
			break
		}
	}
	for len(last) > 0 && last[0] == ' ' {
		last = last[1:]
	}
	return last
}

// newScrape parses an HTTP request into a bittorrent.ScrapeRequest.
func (s *Server) newScrape(r *http.Request, p httprouter.Params) (*bittorrent.ScrapeRequest, error) {
	q, err := query.New(r.URL.RawQuery)
	if err != nil {
		return nil, bittorrent.ErrMalformedRequest
	}

	if len(q.Infohashes) == 0 {
		return nil, bittorrent.ErrMalformedRequest
	}

	hashes := make([]bittorrent.InfoHash, 0, len(q.Infohashes))
	for _, raw := range q.Infohashes {
		hashes = append(hashes, bittorrent.InfoHashFromString(raw))
	}

	return &bittorrent.ScrapeRequest{
		InfoHashes: hashes,
		AuthKey:    p.ByName("authkey"),
	}, nil
}
