// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"time"

	"github.com/golang/glog"
)

// Cleanup periodically sweeps the Tracker's PeerStore for peers that have
// not announced within MaxPeerTimeout, at the cadence named by
// ReapInterval.
type Cleanup struct {
	tkr    *Tracker
	ticker *time.Ticker
	done   chan struct{}
}

// StartCleanup launches the periodic sweep in its own goroutine. Call Stop
// to end it.
func StartCleanup(tkr *Tracker) *Cleanup {
	interval := tkr.Config.ReapInterval.Duration
	if interval <= 0 {
		interval = time.Minute
	}

	c := &Cleanup{
		tkr:    tkr,
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}

	go c.run()
	return c
}

func (c *Cleanup) run() {
	for {
		select {
		case <-c.done:
			c.ticker.Stop()
			return
		case <-c.ticker.C:
			cutoff := c.tkr.Clock.Now().Add(-c.tkr.Config.MaxPeerTimeout.Duration)
			start := time.Now()
			if err := c.tkr.Peers.CollectGarbage(cutoff); err != nil {
				glog.Errorf("tracker: garbage collection failed: %s", err)
				continue
			}
			glog.V(2).Infof("tracker: garbage collection completed in %s", time.Since(start))

			if err := c.tkr.Peers.EvictUnwanted(); err != nil {
				glog.Errorf("tracker: evict_unwanted failed: %s", err)
			}

			if c.tkr.Config.PersistentCompleted && c.tkr.Backend != nil {
				c.persistCompleted()
			}
		}
	}
}

// Stop ends the periodic sweep. It does not wait for an in-flight sweep to
// finish.
func (c *Cleanup) Stop() {
	close(c.done)
}

const persistPageSize = 500

// persistCompleted writes every swarm's current downloaded counter to the
// backend, walking the peer store's paginated listing a page at a time so
// a large torrent map never needs to be held in memory at once.
func (c *Cleanup) persistCompleted() {
	for offset := 0; ; offset += persistPageSize {
		page := c.tkr.Peers.PaginatedList(offset, persistPageSize)
		if len(page) == 0 {
			return
		}
		for _, summary := range page {
			if summary.Downloaded == 0 {
				continue
			}
			if err := c.tkr.Backend.SaveCompleted(summary.InfoHash, summary.Downloaded); err != nil {
				glog.Errorf("tracker: failed to persist completed counter for %s: %s", summary.InfoHash.HexString(), err)
			}
		}
		if len(page) < persistPageSize {
			return
		}
	}
}
