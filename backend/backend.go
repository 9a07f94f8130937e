// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package backend abstracts the persistence of a tracker's long-lived
// policy state — auth keys, the whitelist, and completed-download
// counters — across restarts. Swarm state itself (peers, the bulk of what
// the storage package holds) is never persisted here; it is always rebuilt
// from client announces.
package backend

import (
	"fmt"
	"time"

	"github.com/opentracker/chihaya/bittorrent"
	"github.com/opentracker/chihaya/config"
)

// Key is a persisted auth key record.
type Key struct {
	Key       string
	ExpiresAt time.Time
}

// Conn is a persistence backend for a Tracker's policy state.
type Conn interface {
	// LoadKeys returns every auth key known to the backend.
	LoadKeys() ([]Key, error)
	// SaveKey upserts key, valid until expiresAt (the zero Time for a
	// non-expiring key).
	SaveKey(key string, expiresAt time.Time) error
	// DeleteKey removes key.
	DeleteKey(key string) error

	// LoadWhitelist returns every whitelisted info-hash known to the
	// backend.
	LoadWhitelist() ([]bittorrent.InfoHash, error)
	// AddWhitelisted whitelists infoHash.
	AddWhitelisted(infoHash bittorrent.InfoHash) error
	// RemoveWhitelisted un-whitelists infoHash.
	RemoveWhitelisted(infoHash bittorrent.InfoHash) error

	// LoadPersistentCompleted returns the last-persisted downloaded
	// counter for every swarm the backend has a record of.
	LoadPersistentCompleted() (map[bittorrent.InfoHash]uint64, error)
	// SaveCompleted persists infoHash's current downloaded counter.
	SaveCompleted(infoHash bittorrent.InfoHash, downloaded uint64) error

	// Ping reports whether the backend is reachable.
	Ping() error
	// Close releases the backend's resources.
	Close() error
}

// Driver constructs a Conn given a driver-specific configuration.
type Driver func(cfg *config.DriverConfig) (Conn, error)

var drivers = make(map[string]Driver)

// Register makes a Driver available by the provided name. If Register is
// called twice with the same name, or if driver is nil, it panics.
func Register(name string, driver Driver) {
	if driver == nil {
		panic("backend: could not register nil Driver")
	}
	if _, dup := drivers[name]; dup {
		panic("backend: could not register duplicate Driver: " + name)
	}
	drivers[name] = driver
}

// Open creates an instance of the registered Conn by name. The "noop" name
// is always available and discards everything it is asked to persist.
func Open(name string, cfg *config.DriverConfig) (Conn, error) {
	if name == "" || name == "noop" {
		return noopConn{}, nil
	}

	driver, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("backend: unknown driver %q (forgotten import?)", name)
	}
	return driver(cfg)
}

// noopConn is a Conn that persists nothing, for trackers run without a
// backing store.
type noopConn struct{}

func (noopConn) LoadKeys() ([]Key, error)                                  { return nil, nil }
func (noopConn) SaveKey(key string, expiresAt time.Time) error             { return nil }
func (noopConn) DeleteKey(key string) error                                { return nil }
func (noopConn) LoadWhitelist() ([]bittorrent.InfoHash, error)             { return nil, nil }
func (noopConn) AddWhitelisted(infoHash bittorrent.InfoHash) error         { return nil }
func (noopConn) RemoveWhitelisted(infoHash bittorrent.InfoHash) error      { return nil }
func (noopConn) LoadPersistentCompleted() (map[bittorrent.InfoHash]uint64, error) {
	return nil, nil
}
func (noopConn) SaveCompleted(infoHash bittorrent.InfoHash, downloaded uint64) error { return nil }
func (noopConn) Ping() error                                                        { return nil }
func (noopConn) Close() error                                                       { return nil }
