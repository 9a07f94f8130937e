// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/opentracker/chihaya/backend"
	"github.com/opentracker/chihaya/bittorrent"
)

// Key is an expiring shared secret that gates announces on Private and
// PrivateListed trackers, grounded on torrust-tracker's auth-key resource
// (apis/v1/context/auth_key/responses.rs), which pairs a generated token
// with an optional expiry timestamp.
type Key struct {
	Key       string
	ExpiresAt time.Time // zero value means the key never expires
}

// Expired reports whether the key has expired as of now.
func (k Key) Expired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && !now.Before(k.ExpiresAt)
}

// AuthKeyStore is an in-memory registry of valid auth keys, optionally
// mirrored to a backend.Conn so keys survive a restart. It is safe for
// concurrent use.
type AuthKeyStore struct {
	mu      sync.RWMutex
	keys    map[string]Key
	backend backend.Conn
}

// NewAuthKeyStore returns an empty AuthKeyStore. store may be nil, for a
// Tracker run without persistence.
func NewAuthKeyStore(store backend.Conn) *AuthKeyStore {
	return &AuthKeyStore{keys: make(map[string]Key), backend: store}
}

// LoadFromBackend seeds the store with every key the backend has on
// record, for use at boot.
func (s *AuthKeyStore) LoadFromBackend() error {
	if s.backend == nil {
		return nil
	}
	keys, err := s.backend.LoadKeys()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.keys[k.Key] = Key(k)
	}
	return nil
}

// Add registers key, valid until expiresAt (the zero Time for a
// non-expiring key).
func (s *AuthKeyStore) Add(key string, expiresAt time.Time) {
	s.mu.Lock()
	s.keys[key] = Key{Key: key, ExpiresAt: expiresAt}
	s.mu.Unlock()

	if s.backend != nil {
		if err := s.backend.SaveKey(key, expiresAt); err != nil {
			glog.Errorf("tracker: failed to persist auth key: %s", err)
		}
	}
}

// Remove revokes key immediately.
func (s *AuthKeyStore) Remove(key string) {
	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()

	if s.backend != nil {
		if err := s.backend.DeleteKey(key); err != nil {
			glog.Errorf("tracker: failed to un-persist auth key: %s", err)
		}
	}
}

// Check reports whether key is currently valid as of now.
func (s *AuthKeyStore) Check(key string, now time.Time) error {
	if key == "" {
		return bittorrent.ErrPeerNotAuthenticated
	}

	s.mu.RLock()
	k, ok := s.keys[key]
	s.mu.RUnlock()

	if !ok {
		return bittorrent.ErrPeerKeyUnknown
	}
	if k.Expired(now) {
		return bittorrent.ErrPeerKeyExpired
	}
	return nil
}

// Len returns the number of registered keys.
func (s *AuthKeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
