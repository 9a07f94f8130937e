// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package tracker

import (
	"github.com/opentracker/chihaya/bittorrent"
	"github.com/opentracker/chihaya/stats"
	"github.com/opentracker/chihaya/storage"
)

// HandleAnnounce encapsulates the whole announce algorithm without being
// coupled to any transport protocol: it resolves the peer's address,
// authenticates and authorizes the request against the Tracker's Mode,
// upserts the peer into its swarm, and selects a peer list to return.
func (t *Tracker) HandleAnnounce(req *bittorrent.AnnounceRequest, transport stats.Transport) (*bittorrent.AnnounceResponse, error) {
	ip, err := t.ResolveIP(req)
	if err != nil {
		return nil, err
	}
	req.Peer.IP = ip

	if err := t.Authorize(req.InfoHash, req.AuthKey, t.Clock); err != nil {
		return nil, err
	}

	if err := bittorrent.SanitizeAnnounce(req, uint32(t.Config.MaxNumWant), uint32(t.Config.NumWantFallback)); err != nil {
		return nil, err
	}

	req.Peer.UpdatedAt = t.Clock.Now()

	if err := t.upsertPeer(req); err != nil {
		return nil, err
	}

	var resp bittorrent.AnnounceResponse
	resp.Interval = uint32(t.Config.Announce.Seconds())
	resp.MinInterval = uint32(t.Config.MinAnnounce.Seconds())

	meta := t.Peers.ScrapeSwarm(req.InfoHash, req.Peer.IP.AddressFamily)
	resp.Complete = meta.Complete
	resp.Incomplete = meta.Incomplete

	if req.Event != bittorrent.Stopped && req.NumWant > 0 {
		peers, err := t.Peers.AnnouncePeers(req.InfoHash, req.Peer.Seeding(), int(req.NumWant), req.Peer)
		if err != nil && err != storage.ErrResourceDoesNotExist {
			return nil, err
		}
		if req.Peer.IP.AddressFamily == bittorrent.IPv6 {
			resp.IPv6Peers = peers
		} else {
			resp.IPv4Peers = peers
		}
	}

	family := stats.IPv4
	if req.Peer.IP.AddressFamily == bittorrent.IPv6 {
		family = stats.IPv6
	}
	stats.RecordRequest(transport, family, stats.AnnounceKind)
	stats.RecordEvent(stats.Announce)

	return &resp, nil
}

// upsertPeer applies an announce's event to the swarm, moving the peer
// between the seeder and leecher sets (or removing it on a Stopped event).
func (t *Tracker) upsertPeer(req *bittorrent.AnnounceRequest) error {
	ih, peer := req.InfoHash, req.Peer

	if req.Event == bittorrent.Stopped {
		_ = t.Peers.DeleteSeeder(ih, peer)
		_ = t.Peers.DeleteLeecher(ih, peer)
		return nil
	}

	if peer.Seeding() {
		if req.Event == bittorrent.Completed {
			return t.Peers.GraduateLeecher(ih, peer)
		}
		return t.Peers.PutSeeder(ih, peer)
	}

	return t.Peers.PutLeecher(ih, peer)
}
