// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"sync"

	"github.com/golang/glog"

	"github.com/opentracker/chihaya/backend"
	"github.com/opentracker/chihaya/bittorrent"
)

// Whitelist is the set of info-hashes a Listed or PrivateListed tracker
// will serve, grounded on torrust-tracker's whitelist resource
// (apis/v1/context/whitelist/responses.rs), optionally mirrored to a
// backend.Conn so entries survive a restart. It is safe for concurrent use.
type Whitelist struct {
	mu      sync.RWMutex
	set     map[bittorrent.InfoHash]struct{}
	backend backend.Conn
}

// NewWhitelist returns an empty Whitelist. store may be nil, for a Tracker
// run without persistence.
func NewWhitelist(store backend.Conn) *Whitelist {
	return &Whitelist{set: make(map[bittorrent.InfoHash]struct{}), backend: store}
}

// LoadFromBackend seeds the whitelist with every info-hash the backend has
// on record, for use at boot.
func (w *Whitelist) LoadFromBackend() error {
	if w.backend == nil {
		return nil
	}
	hashes, err := w.backend.LoadWhitelist()
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ih := range hashes {
		w.set[ih] = struct{}{}
	}
	return nil
}

// Add whitelists infoHash.
func (w *Whitelist) Add(infoHash bittorrent.InfoHash) {
	w.mu.Lock()
	w.set[infoHash] = struct{}{}
	w.mu.Unlock()

	if w.backend != nil {
		if err := w.backend.AddWhitelisted(infoHash); err != nil {
			glog.Errorf("tracker: failed to persist whitelist entry: %s", err)
		}
	}
}

// Remove un-whitelists infoHash.
func (w *Whitelist) Remove(infoHash bittorrent.InfoHash) {
	w.mu.Lock()
	delete(w.set, infoHash)
	w.mu.Unlock()

	if w.backend != nil {
		if err := w.backend.RemoveWhitelisted(infoHash); err != nil {
			glog.Errorf("tracker: failed to un-persist whitelist entry: %s", err)
		}
	}
}

// Contains reports whether infoHash is whitelisted.
func (w *Whitelist) Contains(infoHash bittorrent.InfoHash) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.set[infoHash]
	return ok
}

// Len returns the number of whitelisted info-hashes.
func (w *Whitelist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.set)
}
