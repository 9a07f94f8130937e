// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package bittorrent

import "encoding/hex"

// PeerIDSize is the length in bytes of a BitTorrent peer-ID.
const PeerIDSize = 20

// PeerID is the 20-byte identifier a peer chooses for itself. It carries no
// semantic meaning to the tracker except equality as a swarm map key.
type PeerID [PeerIDSize]byte

// PeerIDFromBytes builds a PeerID from a raw byte slice.
func PeerIDFromBytes(b []byte) PeerID {
	var id PeerID
	copy(id[:], b)
	return id
}

// PeerIDFromString is a convenience wrapper for the percent-decoded HTTP
// query form.
func PeerIDFromString(s string) PeerID {
	return PeerIDFromBytes([]byte(s))
}

// Bytes returns the raw 20-byte representation.
func (id PeerID) Bytes() []byte {
	return id[:]
}

// String returns the raw bytes as a string.
func (id PeerID) String() string {
	return string(id[:])
}

// HexString returns the 40-character lowercase hex representation.
func (id PeerID) HexString() string {
	return hex.EncodeToString(id[:])
}

// ClientID returns the heuristic client-software prefix of a PeerID, per the
// Azureus-style ("-AB1234-...") or Shadow-style conventions. It has no
// bearing on tracker behavior; it exists for logging/diagnostics only.
func (id PeerID) ClientID() (clientID string) {
	if id[0] == '-' {
		clientID = string(id[1:7])
	} else {
		clientID = string(id[:6])
	}
	return
}
