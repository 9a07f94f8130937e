// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"time"

	"github.com/opentracker/chihaya/config"
)

// Policy is a read-only view of the values that govern how a Tracker
// accepts and answers announces and scrapes, safe to hand to a frontend
// that should not be able to mutate the Tracker's Config.
type Policy struct {
	Mode                config.Mode
	AnnounceInterval    time.Duration
	MinAnnounceInterval time.Duration
	MaxNumWant          int
	DefaultNumWant      int
	MaxScrapeInfoHashes int
}

// PolicyOf extracts the Policy view from a Tracker's current Config.
func PolicyOf(tkr *Tracker) Policy {
	return Policy{
		Mode:                tkr.Config.Mode,
		AnnounceInterval:    tkr.Config.Announce.Duration,
		MinAnnounceInterval: tkr.Config.MinAnnounce.Duration,
		MaxNumWant:          tkr.Config.MaxNumWant,
		DefaultNumWant:      tkr.Config.NumWantFallback,
		MaxScrapeInfoHashes: tkr.Config.MaxScrapeInfoHashes,
	}
}
