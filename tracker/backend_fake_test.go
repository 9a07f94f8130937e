// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"time"

	"github.com/opentracker/chihaya/backend"
	"github.com/opentracker/chihaya/bittorrent"
)

// fakeBackend is a minimal in-memory backend.Conn stand-in, exercising the
// same mirroring behavior a real driver would without requiring a database.
type fakeBackend struct {
	keys      map[string]time.Time
	whitelist map[bittorrent.InfoHash]struct{}
	completed map[bittorrent.InfoHash]uint64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		keys:      make(map[string]time.Time),
		whitelist: make(map[bittorrent.InfoHash]struct{}),
		completed: make(map[bittorrent.InfoHash]uint64),
	}
}

func (fb *fakeBackend) LoadKeys() (out []backend.Key, err error) {
	for k, exp := range fb.keys {
		out = append(out, backend.Key{Key: k, ExpiresAt: exp})
	}
	return out, nil
}

func (fb *fakeBackend) SaveKey(key string, expiresAt time.Time) error {
	fb.keys[key] = expiresAt
	return nil
}

func (fb *fakeBackend) DeleteKey(key string) error {
	delete(fb.keys, key)
	return nil
}

func (fb *fakeBackend) LoadWhitelist() (out []bittorrent.InfoHash, err error) {
	for ih := range fb.whitelist {
		out = append(out, ih)
	}
	return out, nil
}

func (fb *fakeBackend) AddWhitelisted(infoHash bittorrent.InfoHash) error {
	fb.whitelist[infoHash] = struct{}{}
	return nil
}

func (fb *fakeBackend) RemoveWhitelisted(infoHash bittorrent.InfoHash) error {
	delete(fb.whitelist, infoHash)
	return nil
}

func (fb *fakeBackend) LoadPersistentCompleted() (map[bittorrent.InfoHash]uint64, error) {
	out := make(map[bittorrent.InfoHash]uint64, len(fb.completed))
	for ih, n := range fb.completed {
		out[ih] = n
	}
	return out, nil
}

func (fb *fakeBackend) SaveCompleted(infoHash bittorrent.InfoHash, downloaded uint64) error {
	fb.completed[infoHash] = downloaded
	return nil
}

func (fb *fakeBackend) Ping() error  { return nil }
func (fb *fakeBackend) Close() error { return nil }
