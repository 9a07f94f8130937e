// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opentracker/chihaya/bittorrent"
)

func TestWhitelistAddAndContains(t *testing.T) {
	w := NewWhitelist(nil)
	ih := bittorrent.InfoHashFromString("aaaaaaaaaaaaaaaaaaaa")

	require.False(t, w.Contains(ih))
	w.Add(ih)
	require.True(t, w.Contains(ih))
	require.Equal(t, 1, w.Len())
}

func TestWhitelistRemove(t *testing.T) {
	w := NewWhitelist(nil)
	ih := bittorrent.InfoHashFromString("aaaaaaaaaaaaaaaaaaaa")

	w.Add(ih)
	w.Remove(ih)
	require.False(t, w.Contains(ih))
}

func TestWhitelistMirrorsToBackend(t *testing.T) {
	fb := newFakeBackend()
	w := NewWhitelist(fb)
	ih := bittorrent.InfoHashFromString("aaaaaaaaaaaaaaaaaaaa")

	w.Add(ih)
	require.Len(t, fb.whitelist, 1)

	w.Remove(ih)
	require.Len(t, fb.whitelist, 0)
}

func TestWhitelistLoadsFromBackend(t *testing.T) {
	fb := newFakeBackend()
	ih := bittorrent.InfoHashFromString("aaaaaaaaaaaaaaaaaaaa")
	fb.whitelist[ih] = struct{}{}

	w := NewWhitelist(fb)
	require.Equal(t, 0, w.Len())

	require.NoError(t, w.LoadFromBackend())
	require.True(t, w.Contains(ih))
}
