// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/opentracker/chihaya/bittorrent"
	"github.com/opentracker/chihaya/stats"
)

const jsonContentType = "application/json; charset=UTF-8"

func handleError(err error) (int, error) {
	if err == nil {
		return http.StatusOK, nil
	}

	switch err.(type) {
	case bittorrent.NotFoundError:
		stats.RecordEvent(stats.ClientError)
		return http.StatusNotFound, nil
	case bittorrent.ClientError, bittorrent.ProtocolError:
		stats.RecordEvent(stats.ClientError)
		return http.StatusBadRequest, nil
	default:
		return http.StatusInternalServerError, err
	}
}

// check reports the tracker as alive, touching the peer store's metrics so
// a stuck backend (deadlocked shard, unreachable SQL driver) fails the
// check instead of a bare 200.
func (s *Server) check(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	_ = s.tracker.Peers.GlobalMetrics()
	if s.tracker.Backend != nil {
		if err := s.tracker.Backend.Ping(); err != nil {
			return handleError(err)
		}
	}
	_, err := w.Write([]byte("STILL-ALIVE"))
	return handleError(err)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	w.Header().Set("Content-Type", jsonContentType)

	var err error
	var val interface{}
	query := r.URL.Query()

	stats.DefaultStats.GoRoutines = runtime.NumGoroutine()

	if _, flatten := query["flatten"]; flatten {
		val = stats.DefaultStats.Flattened()
	} else {
		val = stats.DefaultStats
	}

	if _, pretty := query["pretty"]; pretty {
		var buf []byte
		buf, err = json.MarshalIndent(val, "", "  ")
		if err == nil {
			_, err = w.Write(buf)
		}
	} else {
		err = json.NewEncoder(w).Encode(val)
	}

	return handleError(err)
}

const defaultTorrentPageSize = 50

// listTorrents serves a page of the torrent index, ordered by info-hash.
// ?offset=N&limit=N control pagination; limit is capped at
// defaultTorrentPageSize.
func (s *Server) listTorrents(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > defaultTorrentPageSize {
		limit = defaultTorrentPageSize
	}

	page := s.tracker.Peers.PaginatedList(offset, limit)

	type torrentView struct {
		InfoHash   string `json:"infohash"`
		Seeders    int    `json:"seeders"`
		Leechers   int    `json:"leechers"`
		Downloaded uint64 `json:"downloaded"`
	}
	views := make([]torrentView, 0, len(page))
	for _, t := range page {
		views = append(views, torrentView{
			InfoHash:   t.InfoHash.HexString(),
			Seeders:    t.Seeders,
			Leechers:   t.Leechers,
			Downloaded: t.Downloaded,
		})
	}

	w.Header().Set("Content-Type", jsonContentType)
	return handleError(json.NewEncoder(w).Encode(views))
}

// getTorrent serves the scrape counters for a single info-hash, given as
// 40-character hex in the URL.
func (s *Server) getTorrent(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	hexHash, err := url.QueryUnescape(p.ByName("infohash"))
	if err != nil {
		return http.StatusNotFound, err
	}

	ih, err := bittorrent.NewInfoHashFromHex(hexHash)
	if err != nil {
		return http.StatusNotFound, nil
	}

	// ScrapeSwarm's counters cover the whole swarm whichever family is
	// passed, so one call gives the totals.
	meta := s.tracker.Peers.ScrapeSwarm(ih, bittorrent.IPv4)

	w.Header().Set("Content-Type", jsonContentType)
	return handleError(json.NewEncoder(w).Encode(struct {
		InfoHash   string `json:"infohash"`
		Complete   int    `json:"complete"`
		Incomplete int    `json:"incomplete"`
		Downloaded uint32 `json:"downloaded"`
	}{
		InfoHash:   ih.HexString(),
		Complete:   meta.Complete,
		Incomplete: meta.Incomplete,
		Downloaded: meta.Downloaded,
	}))
}

func (s *Server) listWhitelist(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	w.Header().Set("Content-Type", jsonContentType)
	n := 0
	if s.tracker.Whitelist != nil {
		n = s.tracker.Whitelist.Len()
	}
	return handleError(json.NewEncoder(w).Encode(struct {
		Count int `json:"count"`
	}{n}))
}

func (s *Server) putWhitelist(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	if s.tracker.Whitelist == nil {
		return http.StatusNotImplemented, nil
	}
	ih, err := bittorrent.NewInfoHashFromHex(p.ByName("infohash"))
	if err != nil {
		return http.StatusBadRequest, nil
	}
	s.tracker.Whitelist.Add(ih)
	return http.StatusOK, nil
}

func (s *Server) delWhitelist(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	if s.tracker.Whitelist == nil {
		return http.StatusNotImplemented, nil
	}
	ih, err := bittorrent.NewInfoHashFromHex(p.ByName("infohash"))
	if err != nil {
		return http.StatusBadRequest, nil
	}
	s.tracker.Whitelist.Remove(ih)
	return http.StatusOK, nil
}

// putKey registers an auth key. An optional ?ttl=<seconds> query parameter
// sets its expiry; omitted or zero means the key never expires.
func (s *Server) putKey(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	if s.tracker.Keys == nil {
		return http.StatusNotImplemented, nil
	}

	var expiresAt time.Time
	if ttl, err := strconv.Atoi(r.URL.Query().Get("ttl")); err == nil && ttl > 0 {
		expiresAt = time.Now().Add(time.Duration(ttl) * time.Second)
	}

	s.tracker.Keys.Add(p.ByName("key"), expiresAt)
	return http.StatusOK, nil
}

func (s *Server) delKey(w http.ResponseWriter, r *http.Request, p httprouter.Params) (int, error) {
	if s.tracker.Keys == nil {
		return http.StatusNotImplemented, nil
	}
	s.tracker.Keys.Remove(p.ByName("key"))
	return http.StatusOK, nil
}
