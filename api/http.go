// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package api implements an HTTP JSON API for inspecting and administering
// a running tracker: health, runtime stats, the torrent index, the
// whitelist, and auth keys.
package api

import (
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/tylerb/graceful"

	"github.com/opentracker/chihaya/config"
	"github.com/opentracker/chihaya/tracker"
)

// ResponseHandler is an HTTP handler that returns a status code.
type ResponseHandler func(http.ResponseWriter, *http.Request, httprouter.Params) (int, error)

// Server represents an API serving HTTP server.
type Server struct {
	config   config.APIConfig
	tracker  *tracker.Tracker
	addr     string
	grace    *graceful.Server
	stopping bool
}

// NewServer returns a new API server for a given configuration and tracker.
func NewServer(cfg *config.Config, tkr *tracker.Tracker) *Server {
	return &Server{
		config:  cfg.APIConfig,
		tracker: tkr,
	}
}

// ServerAddr returns the address the server is listening on.
func (s *Server) ServerAddr() string {
	return s.addr
}

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
		}

		if glog.V(2) {
			glog.Infof("[API - %9s] %s %s (%d)", duration, r.Method, r.URL.Path, httpCode)
		}
	}
}

func newRouter(s *Server) *httprouter.Router {
	r := httprouter.New()

	r.GET("/check", makeHandler(s.check))
	r.GET("/stats", makeHandler(s.stats))

	r.GET("/torrents", makeHandler(s.listTorrents))
	r.GET("/torrents/:infohash", makeHandler(s.getTorrent))

	r.GET("/whitelist", makeHandler(s.listWhitelist))
	r.PUT("/whitelist/:infohash", makeHandler(s.putWhitelist))
	r.DELETE("/whitelist/:infohash", makeHandler(s.delWhitelist))

	r.PUT("/keys/:key", makeHandler(s.putKey))
	r.DELETE("/keys/:key", makeHandler(s.delKey))

	return r
}

// Setup is a no-op: the API server always listens on the plain Internet
// stack, regardless of what Network the tracker's other frontends use.
func (s *Server) Setup() error {
	return nil
}

// Serve runs the API server, blocking until it has shut down.
func (s *Server) Serve() {
	router := newRouter(s)
	s.grace = &graceful.Server{
		Server: &http.Server{
			Handler:      router,
			ReadTimeout:  s.config.ReadTimeout.Duration,
			WriteTimeout: s.config.WriteTimeout.Duration,
		},
		Timeout: s.config.RequestTimeout.Duration,
	}

	l, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		glog.Error(err)
		return
	}
	s.addr = l.Addr().String()

	glog.Infof("Serving API on %s", s.addr)
	if err := s.grace.Serve(l); err != nil {
		glog.Error(err)
	}
	glog.Info("API server shut down cleanly")
}

// Stop cleanly shuts down the server.
func (s *Server) Stop() {
	if !s.stopping {
		s.stopping = true
		s.grace.Stop(s.grace.Timeout)
	}
}
