// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package bittorrent

import "time"

// Peer represents a participant in a BitTorrent swarm, as reported by its
// most recent announce.
type Peer struct {
	ID   PeerID
	IP   IP
	Port uint16

	Uploaded, Downloaded, Left uint64
	Event                      Event

	// UpdatedAt is the last time this record was written. It is
	// monotonically non-decreasing per peer-ID within a swarm.
	UpdatedAt time.Time
}

// Seeding reports whether the peer counts as a seeder: it has nothing left
// to download and has not just announced that it stopped.
func (p Peer) Seeding() bool {
	return p.Left == 0 && p.Event != Stopped
}

// EqualEndpoint reports whether two peers share the same (IP, port)
// endpoint, used to exclude the requester from its own peer list.
func (p Peer) EqualEndpoint(other Peer) bool {
	return p.Port == other.Port && p.IP.IP.Equal(other.IP.IP)
}

// Key returns the identity component a PeerStore folds into a swarm-local
// key alongside the peer's endpoint: a peer-ID is not unique on its own, since
// NAT and client restarts can let the same ID reappear at a different
// (IP, port).
func (p Peer) Key() PeerID {
	return p.ID
}

// PeerList is an ordered list of peers, as returned to a client.
type PeerList []Peer
