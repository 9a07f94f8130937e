// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package http implements a BitTorrent tracker over the HTTP protocol as per
// BEP 3, BEP 23, and BEP 48.
package http

import (
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/tylerb/graceful"

	"github.com/opentracker/chihaya/config"
	"github.com/opentracker/chihaya/network"
	"github.com/opentracker/chihaya/stats"
	"github.com/opentracker/chihaya/tracker"
)

// ResponseHandler is an HTTP handler that returns a status code.
type ResponseHandler func(http.ResponseWriter, *http.Request, httprouter.Params) (int, error)

// Server represents an HTTP serving torrent tracker.
type Server struct {
	network  network.Network
	addr     string
	config   *config.TrackerConfig
	httpCfg  config.HTTPConfig
	tracker  *tracker.Tracker
	grace    *graceful.Server
	stopping bool
}

// makeHandler wraps our ResponseHandlers while timing requests, collecting
// stats, logging, and handling errors.
func makeHandler(handler ResponseHandler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		start := time.Now()
		httpCode, err := handler(w, r, p)
		duration := time.Since(start)

		var msg string
		if err != nil {
			msg = err.Error()
		} else if httpCode != http.StatusOK {
			msg = http.StatusText(httpCode)
		}

		if len(msg) > 0 {
			http.Error(w, msg, httpCode)
			stats.RecordEvent(stats.ErroredRequest)
		}

		if len(msg) > 0 || glog.V(2) {
			reqString := r.URL.Path + " " + r.RemoteAddr
			if glog.V(3) {
				reqString = r.URL.RequestURI() + " " + r.RemoteAddr
			}

			if len(msg) > 0 {
				glog.Errorf("[HTTP - %9s] %s (%d - %s)", duration, reqString, httpCode, msg)
			} else {
				glog.Infof("[HTTP - %9s] %s (%d)", duration, reqString, httpCode)
			}
		}

		stats.RecordEvent(stats.HandledRequest)
		stats.RecordTiming(stats.ResponseTime, duration)
	}
}

// ServerAddr returns the address the server is listening on.
func (s *Server) ServerAddr() string {
	return s.addr
}

// newRouter returns a router with all the routes. Private/PrivateListed
// trackers namespace announce/scrape under an auth-key path segment, the
// way the index-aware fork this was adapted from namespaced them under a
// passkey.
func newRouter(s *Server) *httprouter.Router {
	r := httprouter.New()

	if s.config.Mode.RequiresAuth() {
		r.GET("/:authkey/announce", makeHandler(s.serveAnnounce))
		r.GET("/:authkey/scrape", makeHandler(s.serveScrape))
	} else {
		r.GET("/announce", makeHandler(s.serveAnnounce))
		r.GET("/scrape", makeHandler(s.serveScrape))
	}
	r.GET("/", makeHandler(s.serveIndex))
	return r
}

// connState is used by graceful to gracefully shut down. It also keeps
// track of connection stats.
func (s *Server) connState(conn net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		stats.RecordEvent(stats.AcceptedConnection)

	case http.StateClosed:
		stats.RecordEvent(stats.ClosedConnection)

	case http.StateHijacked:
		panic("connection impossibly hijacked")

	case http.StateActive, http.StateIdle:
		// Ignored.

	default:
		glog.Errorf("Connection transitioned to unknown state %s (%d)", state, state)
	}
}

// Setup prepares the underlying network for listening.
func (s *Server) Setup() error {
	return s.network.Setup()
}

// Serve runs an HTTP server, blocking until the server has shut down.
func (s *Server) Serve() {
	router := newRouter(s)
	s.grace = &graceful.Server{
		Server: &http.Server{
			Handler:      router,
			ReadTimeout:  s.httpCfg.ReadTimeout.Duration,
			WriteTimeout: s.httpCfg.WriteTimeout.Duration,
			ConnState:    s.connState,
		},
		Timeout: s.config.UDPShutdownGracePeriod.Duration,
	}

	l, err := s.network.Listen("tcp", s.httpCfg.ListenAddr)
	if err != nil {
		glog.Error(err)
		return
	}
	s.addr = l.Addr().String()

	glog.Infof("Serving HTTP on %s", s.addr)
	if err := s.grace.Serve(l); err != nil {
		glog.Error(err)
	}
	glog.Info("HTTP server shut down cleanly")
}

// Stop cleanly shuts down the server.
func (s *Server) Stop() {
	if !s.stopping {
		s.stopping = true
		s.grace.Stop(s.grace.Timeout)
	}
}

// NewServer returns a new HTTP server for a given configuration and
// tracker.
func NewServer(n network.Network, cfg *config.Config, tkr *tracker.Tracker) *Server {
	return &Server{
		network: n,
		config:  &cfg.TrackerConfig,
		httpCfg: cfg.HTTPConfig,
		tracker: tkr,
	}
}
