// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package tracker implements the policy layer of a BitTorrent tracker: it
// resolves a peer's address, authenticates and authorizes an announce or
// scrape against the configured Mode, and mediates every read and write of
// swarm state through a storage.PeerStore.
package tracker

import (
	"net"

	"github.com/opentracker/chihaya/backend"
	"github.com/opentracker/chihaya/bittorrent"
	"github.com/opentracker/chihaya/config"
	"github.com/opentracker/chihaya/storage"
)

// Tracker couples swarm storage with the policy (mode, whitelist, auth
// keys) that governs access to it.
type Tracker struct {
	Config    *config.Config
	Peers     storage.PeerStore
	Keys      *AuthKeyStore
	Whitelist *Whitelist
	Backend   backend.Conn
	Clock     bittorrent.Clock
}

// New constructs a Tracker. keys, whitelist, and conn may be nil when the
// Tracker's Mode does not require them or persistence is disabled.
func New(cfg *config.Config, peers storage.PeerStore, keys *AuthKeyStore, whitelist *Whitelist, conn backend.Conn) *Tracker {
	return &Tracker{
		Config:    cfg,
		Peers:     peers,
		Keys:      keys,
		Whitelist: whitelist,
		Backend:   conn,
		Clock:     bittorrent.SystemClock{},
	}
}

// ImportPersisted seeds the peer store's downloaded counters from the
// backend's last-persisted values, for use at boot when PersistentCompleted
// is enabled. It never creates peers; only the counters are restored.
func (t *Tracker) ImportPersisted() error {
	if t.Backend == nil {
		return nil
	}
	counts, err := t.Backend.LoadPersistentCompleted()
	if err != nil {
		return err
	}
	for ih, downloaded := range counts {
		t.Peers.ImportPersistedCompleted(ih, downloaded)
	}
	return nil
}

// Close releases the Tracker's held resources: its peer store and, if
// configured, its persistence backend.
func (t *Tracker) Close() error {
	if err := t.Peers.Stop(); err != nil {
		return err
	}
	if t.Backend != nil {
		return t.Backend.Close()
	}
	return nil
}

// ResolveIP picks the client's address per spec.md §4.2 step 1: if the
// tracker is configured to sit behind a reverse proxy, the rightmost
// X-Forwarded-For entry is trusted over the socket address; otherwise the
// socket address always wins. A loopback socket address is substituted with
// the configured ExternalIP, letting a tracker announce a routable address
// for clients on the same host it runs on.
//
// OnReverseProxy only ever applies to a request that could have carried a
// forwarded-for header in the first place. UDP has no such header (BEP 15
// defines no equivalent), so a UDP announce always falls through to its
// socket address even when the tracker also serves HTTP behind a proxy.
func (t *Tracker) ResolveIP(req *bittorrent.AnnounceRequest) (bittorrent.IP, error) {
	if t.Config.OnReverseProxy && req.CanCarryXFF {
		if req.HasXFF {
			return req.ClientIPFromXFF, nil
		}
		return bittorrent.IP{}, bittorrent.ErrMissingRightMostXForwardedFor
	}

	if !req.HasSocketIP {
		return bittorrent.IP{}, bittorrent.ErrMissingSocketAddress
	}

	ip := req.ClientIPFromSocket
	if ip.IP.IsLoopback() && t.Config.ExternalIP != "" {
		external := net.ParseIP(t.Config.ExternalIP)
		if external == nil {
			return bittorrent.IP{}, bittorrent.ErrInvalidIP
		}
		resolved, err := bittorrent.AddressFamilyOf(external)
		if err != nil {
			return bittorrent.IP{}, err
		}
		return resolved, nil
	}

	return ip, nil
}

// Authorize checks authKey and infoHash against the Tracker's Mode. A
// Public tracker always authorizes. Listed/PrivateListed require infoHash on
// the whitelist; Private/PrivateListed require a valid, unexpired authKey.
func (t *Tracker) Authorize(infoHash bittorrent.InfoHash, authKey string, clock bittorrent.Clock) error {
	if t.Config.Mode.RequiresAuth() {
		if t.Keys == nil {
			return bittorrent.ErrPeerNotAuthenticated
		}
		if err := t.Keys.Check(authKey, clock.Now()); err != nil {
			return err
		}
	}

	if t.Config.Mode.RequiresWhitelist() {
		if t.Whitelist == nil || !t.Whitelist.Contains(infoHash) {
			return bittorrent.ErrTorrentNotWhitelisted
		}
	}

	return nil
}
