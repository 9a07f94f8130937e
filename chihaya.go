// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package chihaya implements the ability to boot the Chihaya BitTorrent
// tracker with your own imports that can dynamically register additional
// functionality.
package chihaya

import (
	"flag"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/opentracker/chihaya/api"
	"github.com/opentracker/chihaya/backend"
	"github.com/opentracker/chihaya/bittorrent"
	"github.com/opentracker/chihaya/config"
	"github.com/opentracker/chihaya/http"
	"github.com/opentracker/chihaya/network"
	"github.com/opentracker/chihaya/stats"
	"github.com/opentracker/chihaya/storage"
	"github.com/opentracker/chihaya/storage/memory"
	"github.com/opentracker/chihaya/tracker"
	"github.com/opentracker/chihaya/udp"

	// postgres policy-state backend
	_ "github.com/opentracker/chihaya/backend/sql"
)

var (
	maxProcs   int
	configPath string
)

func init() {
	flag.IntVar(&maxProcs, "maxprocs", runtime.NumCPU(), "maximum parallel threads")
	flag.StringVar(&configPath, "config", "", "path to the configuration file")
}

type server interface {
	Setup() error
	Serve()
	Stop()
}

// Boot starts Chihaya. By exporting this function, anyone can import their own
// custom drivers into their own package main and then call chihaya.Boot.
func Boot() {
	defer glog.Flush()

	flag.Parse()

	runtime.GOMAXPROCS(maxProcs)
	glog.V(1).Info("Set max threads to ", maxProcs)

	cfg, err := config.Open(configPath)
	if err != nil {
		glog.Fatalf("Failed to parse configuration file: %s\n", err)
	}

	if cfg == &config.DefaultConfig {
		glog.V(1).Info("Using default config")
	} else {
		glog.V(1).Infof("Loaded config file: %s", configPath)
	}

	stats.DefaultStats = stats.New(cfg.StatsConfig)

	peers, err := storage.Open(memory.Name, memory.Config{
		ShardCount:             cfg.TrackerConfig.TorrentMapShards,
		RemovePeerlessTorrents: cfg.TrackerConfig.RemovePeerlessTorrents,
	})
	if err != nil {
		glog.Fatal("storage.Open: ", err)
	}

	var conn backend.Conn
	if cfg.Mode.RequiresAuth() || cfg.Mode.RequiresWhitelist() || cfg.PersistentCompleted {
		conn, err = backend.Open(cfg.DriverConfig.Name, &cfg.DriverConfig)
		if err != nil {
			glog.Fatal("backend.Open: ", err)
		}
	}

	keys := tracker.NewAuthKeyStore(conn)
	if err := keys.LoadFromBackend(); err != nil {
		glog.Errorf("Failed to load auth keys from backend: %s", err)
	}

	whitelist := tracker.NewWhitelist(conn)
	if err := whitelist.LoadFromBackend(); err != nil {
		glog.Errorf("Failed to load whitelist from backend: %s", err)
	}
	for _, hex := range cfg.WhitelistConfig.ClientWhitelist {
		if ih, err := bittorrent.NewInfoHashFromHex(hex); err == nil {
			whitelist.Add(ih)
		} else {
			glog.Errorf("Skipping malformed whitelist entry %q: %s", hex, err)
		}
	}

	tkr := tracker.New(cfg, peers, keys, whitelist, conn)

	if cfg.PersistentCompleted {
		if err := tkr.ImportPersisted(); err != nil {
			glog.Errorf("Failed to import persisted completed counters: %s", err)
		}
	}

	cleanup := tracker.StartCleanup(tkr)

	var servers []server

	if cfg.APIConfig.ListenAddr != "" {
		servers = append(servers, api.NewServer(cfg, tkr))
	}
	servers = append(servers, http.NewServer(network.NewPlainNetwork(), cfg, tkr))
	servers = append(servers, udp.NewServer(network.NewPlainNetwork(), cfg, tkr))

	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		// If you don't explicitly pass the server, every goroutine captures the
		// last server in the list.
		go func(srv server) {
			for {
				err := srv.Setup()
				if err == nil {
					defer wg.Done()
					srv.Serve()
					return
				} else {
					glog.Error("Setup: ", err)
				}
				time.Sleep(time.Second)
			}
		}(srv)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		wg.Wait()
		signal.Stop(shutdown)
		close(shutdown)
	}()

	<-shutdown
	glog.Info("Shutting down...")

	for _, srv := range servers {
		srv.Stop()
	}

	<-shutdown

	cleanup.Stop()

	if err := tkr.Close(); err != nil {
		glog.Errorf("Failed to shut down tracker cleanly: %s", err.Error())
	}
}
