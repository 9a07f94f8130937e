// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package http

import (
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/opentracker/chihaya/bittorrent"
	"github.com/opentracker/chihaya/stats"
)

func handleTorrentError(err error, w *Writer) (int, error) {
	if err == nil {
		return http.StatusOK, nil
	} else if bittorrent.IsPublicError(err) {
		w.WriteError(err)
		stats.RecordEvent(stats.ClientError)
		return http.StatusOK, nil
	}

	return http.StatusInternalServerError, err
}

func (s *Server) serveAnnounce(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	writer := &Writer{w}
	req, err := s.newAnnounce(r, p)
	if err != nil {
		return handleTorrentError(err, writer)
	}

	resp, err := s.tracker.HandleAnnounce(req, stats.HTTP)
	if err != nil {
		return handleTorrentError(err, writer)
	}

	if err := writer.WriteAnnounce(resp, req.Compact); err != nil {
		return http.StatusInternalServerError, err
	}
	return http.StatusOK, nil
}

func (s *Server) serveScrape(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	writer := &Writer{w}
	req, err := s.newScrape(r, p)
	if err != nil {
		return handleTorrentError(err, writer)
	}

	// BEP 48 scrape counts are not split by address family; family here
	// only dimensions the request-count stats by which socket it arrived
	// on.
	family := bittorrent.IPv4
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if ip, famErr := bittorrent.AddressFamilyOf(net.ParseIP(host)); famErr == nil {
			family = ip.AddressFamily
		}
	}

	resp, err := s.tracker.HandleScrape(req, family, stats.HTTP)
	if err != nil {
		return handleTorrentError(err, writer)
	}

	if err := writer.WriteScrape(resp); err != nil {
		return http.StatusInternalServerError, err
	}
	return http.StatusOK, nil
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	addr := s.ServerAddr()
	txt := fmt.Sprintf("bittorrent open tracker announce url http://%s/announce\n", addr)
	_, err := io.WriteString(w, txt)
	txt = fmt.Sprintf("to use:\n\nmktorrent -a http://%s/announce somedirectory\n", addr)
	_, err = io.WriteString(w, txt)
	return http.StatusOK, err
}
