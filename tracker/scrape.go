// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"github.com/opentracker/chihaya/bittorrent"
	"github.com/opentracker/chihaya/stats"
)

// HandleScrape encapsulates all the logic of handling a BitTorrent client's
// scrape without being coupled to any transport protocol.
func (t *Tracker) HandleScrape(req *bittorrent.ScrapeRequest, family bittorrent.AddressFamily, transport stats.Transport) (*bittorrent.ScrapeResponse, error) {
	if t.Config.Mode.RequiresAuth() {
		if t.Keys == nil {
			return nil, bittorrent.ErrPeerNotAuthenticated
		}
		if err := t.Keys.Check(req.AuthKey, t.Clock.Now()); err != nil {
			return nil, err
		}
	}

	if err := bittorrent.SanitizeScrape(req, uint32(t.Config.MaxScrapeInfoHashes)); err != nil {
		return nil, err
	}

	files := make(map[bittorrent.InfoHash]bittorrent.SwarmMetadata, len(req.InfoHashes))
	for _, ih := range req.InfoHashes {
		files[ih] = t.Peers.ScrapeSwarm(ih, family)
	}

	sf := stats.IPv4
	if family == bittorrent.IPv6 {
		sf = stats.IPv6
	}
	stats.RecordRequest(transport, sf, stats.ScrapeKind)
	stats.RecordEvent(stats.Scrape)

	return &bittorrent.ScrapeResponse{Files: files}, nil
}
