// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package http

import (
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"

	"github.com/opentracker/chihaya/config"
)

func newTestHTTPServer(cfg config.TrackerConfig) *Server {
	full := cfg
	return &Server{config: &full}
}

func TestNewAnnounceParsesRequiredFields(t *testing.T) {
	s := newTestHTTPServer(config.TrackerConfig{})
	r := httptest.NewRequest("GET", "/announce?info_hash=aaaaaaaaaaaaaaaaaaaa&peer_id=bbbbbbbbbbbbbbbbbbbb&port=6881&left=0&uploaded=10&downloaded=20", nil)
	r.RemoteAddr = "203.0.113.9:5555"

	req, err := s.newAnnounce(r, httprouter.Params{})
	require.NoError(t, err)
	require.Equal(t, uint16(6881), req.Peer.Port)
	require.Equal(t, uint64(0), req.Peer.Left)
	require.Equal(t, uint64(10), req.Peer.Uploaded)
	require.Equal(t, uint64(20), req.Peer.Downloaded)
	require.True(t, req.Compact)
	require.True(t, req.CanCarryXFF)
	require.True(t, req.HasSocketIP)
}

func TestNewAnnounceRejectsMissingPeerID(t *testing.T) {
	s := newTestHTTPServer(config.TrackerConfig{})
	r := httptest.NewRequest("GET", "/announce?info_hash=aaaaaaaaaaaaaaaaaaaa&port=6881&left=0", nil)

	_, err := s.newAnnounce(r, httprouter.Params{})
	require.Error(t, err)
}

func TestNewAnnounceRejectsMissingInfoHash(t *testing.T) {
	s := newTestHTTPServer(config.TrackerConfig{})
	r := httptest.NewRequest("GET", "/announce?peer_id=bbbbbbbbbbbbbbbbbbbb&port=6881&left=0", nil)

	_, err := s.newAnnounce(r, httprouter.Params{})
	require.Error(t, err)
}

func TestNewAnnounceCompactFalseWhenZero(t *testing.T) {
	s := newTestHTTPServer(config.TrackerConfig{})
	r := httptest.NewRequest("GET", "/announce?info_hash=aaaaaaaaaaaaaaaaaaaa&peer_id=bbbbbbbbbbbbbbbbbbbb&port=6881&left=0&compact=0", nil)

	req, err := s.newAnnounce(r, httprouter.Params{})
	require.NoError(t, err)
	require.False(t, req.Compact)
}

func TestSetClientIPsHonorsSpoofedIPWhenAllowed(t *testing.T) {
	s := newTestHTTPServer(config.TrackerConfig{NetConfig: config.NetConfig{AllowIPSpoofing: true}})
	r := httptest.NewRequest("GET", "/announce?info_hash=aaaaaaaaaaaaaaaaaaaa&peer_id=bbbbbbbbbbbbbbbbbbbb&port=6881&left=0&ip=198.51.100.7", nil)
	r.RemoteAddr = "203.0.113.9:5555"

	req, err := s.newAnnounce(r, httprouter.Params{})
	require.NoError(t, err)
	require.True(t, req.IPProvided)
	require.Equal(t, "198.51.100.7", req.ClientIPFromSocket.IP.String())
}

func TestSetClientIPsIgnoresSpoofedIPWhenDisallowed(t *testing.T) {
	s := newTestHTTPServer(config.TrackerConfig{})
	r := httptest.NewRequest("GET", "/announce?info_hash=aaaaaaaaaaaaaaaaaaaa&peer_id=bbbbbbbbbbbbbbbbbbbb&port=6881&left=0&ip=198.51.100.7", nil)
	r.RemoteAddr = "203.0.113.9:5555"

	req, err := s.newAnnounce(r, httprouter.Params{})
	require.NoError(t, err)
	require.False(t, req.IPProvided)
	require.Equal(t, "203.0.113.9", req.ClientIPFromSocket.IP.String())
}

func TestSetClientIPsReadsXForwardedFor(t *testing.T) {
	s := newTestHTTPServer(config.TrackerConfig{})
	r := httptest.NewRequest("GET", "/announce?info_hash=aaaaaaaaaaaaaaaaaaaa&peer_id=bbbbbbbbbbbbbbbbbbbb&port=6881&left=0", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "10.0.0.2, 203.0.113.9")

	req, err := s.newAnnounce(r, httprouter.Params{})
	require.NoError(t, err)
	require.True(t, req.HasXFF)
	require.Equal(t, "203.0.113.9", req.ClientIPFromXFF.IP.String())
}

func TestSetClientIPsHonorsCustomRealIPHeader(t *testing.T) {
	s := newTestHTTPServer(config.TrackerConfig{NetConfig: config.NetConfig{RealIPHeader: "X-Real-IP"}})
	r := httptest.NewRequest("GET", "/announce?info_hash=aaaaaaaaaaaaaaaaaaaa&peer_id=bbbbbbbbbbbbbbbbbbbb&port=6881&left=0", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Real-IP", "203.0.113.9")

	req, err := s.newAnnounce(r, httprouter.Params{})
	require.NoError(t, err)
	require.True(t, req.HasXFF)
	require.Equal(t, "203.0.113.9", req.ClientIPFromXFF.IP.String())
}

func TestNewScrapeParsesMultipleInfoHashes(t *testing.T) {
	s := newTestHTTPServer(config.TrackerConfig{})
	r := httptest.NewRequest("GET", "/scrape?info_hash=aaaaaaaaaaaaaaaaaaaa&info_hash=bbbbbbbbbbbbbbbbbbbb", nil)

	req, err := s.newScrape(r, httprouter.Params{})
	require.NoError(t, err)
	require.Len(t, req.InfoHashes, 2)
}

func TestNewScrapeRejectsNoInfoHashes(t *testing.T) {
	s := newTestHTTPServer(config.TrackerConfig{})
	r := httptest.NewRequest("GET", "/scrape", nil)

	_, err := s.newScrape(r, httprouter.Params{})
	require.Error(t, err)
}

func TestRightmostXFFPicksLastEntry(t *testing.T) {
	require.Equal(t, "203.0.113.9", rightmostXFF("10.0.0.2, 10.0.0.1, 203.0.113.9"))
	require.Equal(t, "203.0.113.9", rightmostXFF("203.0.113.9"))
}
