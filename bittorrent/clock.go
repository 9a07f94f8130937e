// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package bittorrent

import "time"

// Clock is a monotonic source of the duration since the Unix epoch. It is
// swappable so tests can freeze time instead of racing the wall clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// FrozenClock is a Clock that always returns the same instant, useful for
// deterministic expiry/cookie tests.
type FrozenClock struct {
	At time.Time
}

// Now returns the frozen instant.
func (f FrozenClock) Now() time.Time { return f.At }
