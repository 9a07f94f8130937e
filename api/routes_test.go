// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"

	"github.com/opentracker/chihaya/bittorrent"
	"github.com/opentracker/chihaya/config"
	"github.com/opentracker/chihaya/storage/memory"
	"github.com/opentracker/chihaya/tracker"
)

func newTestAPIServer() *Server {
	tkr := &tracker.Tracker{
		Config: &config.Config{TrackerConfig: config.TrackerConfig{Mode: config.Public}},
		Peers:  memory.New(memory.Config{ShardCount: 1}),
		Clock:  bittorrent.SystemClock{},
	}
	return &Server{tracker: tkr}
}

func TestCheckReturnsAliveBody(t *testing.T) {
	s := newTestAPIServer()
	r := httptest.NewRequest("GET", "/check", nil)
	w := httptest.NewRecorder()

	code, err := s.check(w, r, httprouter.Params{})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "STILL-ALIVE", w.Body.String())
}

func TestListTorrentsReturnsPage(t *testing.T) {
	s := newTestAPIServer()
	ih := bittorrent.InfoHashFromString("aaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, s.tracker.Peers.PutSeeder(ih, bittorrent.Peer{Port: 6881}))

	r := httptest.NewRequest("GET", "/torrents", nil)
	w := httptest.NewRecorder()

	code, err := s.listTorrents(w, r, httprouter.Params{})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)

	var views []struct {
		InfoHash string `json:"infohash"`
		Seeders  int    `json:"seeders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 1)
	require.Equal(t, 1, views[0].Seeders)
}

func TestListTorrentsClampsOversizedLimit(t *testing.T) {
	s := newTestAPIServer()
	r := httptest.NewRequest("GET", "/torrents?limit=999999", nil)
	w := httptest.NewRecorder()

	code, err := s.listTorrents(w, r, httprouter.Params{})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
}

func TestGetTorrentReportsSwarmCounts(t *testing.T) {
	s := newTestAPIServer()
	ih := bittorrent.InfoHashFromString("aaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, s.tracker.Peers.PutSeeder(ih, bittorrent.Peer{Port: 6881}))

	r := httptest.NewRequest("GET", "/torrents/"+ih.HexString(), nil)
	w := httptest.NewRecorder()

	code, err := s.getTorrent(w, r, httprouter.Params{{Key: "infohash", Value: ih.HexString()}})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)

	var body struct {
		Complete int `json:"complete"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Complete)
}

func TestGetTorrentRejectsMalformedHex(t *testing.T) {
	s := newTestAPIServer()
	r := httptest.NewRequest("GET", "/torrents/notahex", nil)
	w := httptest.NewRecorder()

	code, err := s.getTorrent(w, r, httprouter.Params{{Key: "infohash", Value: "notahex"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, code)
}

func TestWhitelistRoundTripViaAPI(t *testing.T) {
	s := newTestAPIServer()
	s.tracker.Whitelist = tracker.NewWhitelist(nil)
	ih := bittorrent.InfoHashFromString("aaaaaaaaaaaaaaaaaaaa")
	hex := ih.HexString()

	w := httptest.NewRecorder()
	code, err := s.putWhitelist(w, httptest.NewRequest("PUT", "/whitelist/"+hex, nil), httprouter.Params{{Key: "infohash", Value: hex}})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	require.True(t, s.tracker.Whitelist.Contains(ih))

	w = httptest.NewRecorder()
	code, err = s.delWhitelist(w, httptest.NewRequest("DELETE", "/whitelist/"+hex, nil), httprouter.Params{{Key: "infohash", Value: hex}})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	require.False(t, s.tracker.Whitelist.Contains(ih))
}

func TestPutWhitelistNotImplementedWithoutWhitelist(t *testing.T) {
	s := newTestAPIServer()
	w := httptest.NewRecorder()

	code, err := s.putWhitelist(w, httptest.NewRequest("PUT", "/whitelist/aa", nil), httprouter.Params{{Key: "infohash", Value: "aa"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotImplemented, code)
}

func TestKeyRoundTripViaAPI(t *testing.T) {
	s := newTestAPIServer()
	s.tracker.Keys = tracker.NewAuthKeyStore(nil)

	w := httptest.NewRecorder()
	code, err := s.putKey(w, httptest.NewRequest("PUT", "/keys/secret", nil), httprouter.Params{{Key: "key", Value: "secret"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, s.tracker.Keys.Check("secret", s.tracker.Clock.Now()))

	w = httptest.NewRecorder()
	code, err = s.delKey(w, httptest.NewRequest("DELETE", "/keys/secret", nil), httprouter.Params{{Key: "key", Value: "secret"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
	require.Error(t, s.tracker.Keys.Check("secret", s.tracker.Clock.Now()))
}

func TestPutKeyNotImplementedWithoutKeyStore(t *testing.T) {
	s := newTestAPIServer()
	w := httptest.NewRecorder()

	code, err := s.putKey(w, httptest.NewRequest("PUT", "/keys/secret", nil), httprouter.Params{{Key: "key", Value: "secret"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotImplemented, code)
}
