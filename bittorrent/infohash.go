// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package bittorrent

import (
	"encoding/hex"
	"fmt"
)

// InfoHashSize is the length in bytes of a BitTorrent info-hash (SHA-1).
const InfoHashSize = 20

// InfoHash identifies a torrent. It is always exactly 20 raw bytes; hex is
// only a display/parse form.
type InfoHash [InfoHashSize]byte

// InfoHashFromBytes builds an InfoHash from a raw byte slice. The slice may
// be shorter or longer than InfoHashSize; it is copied into a fixed array
// and truncated/zero-padded accordingly (mirrors how UDP wire fields are
// always exactly 20 bytes wide, and the HTTP percent-decoded form may be
// handed arbitrary bytes by a misbehaving client).
func InfoHashFromBytes(b []byte) InfoHash {
	var ih InfoHash
	copy(ih[:], b)
	return ih
}

// InfoHashFromString is a convenience wrapper around InfoHashFromBytes for
// the raw (non-hex) percent-decoded query form.
func InfoHashFromString(s string) InfoHash {
	return InfoHashFromBytes([]byte(s))
}

// NewInfoHashFromHex parses a 40-character lowercase-or-uppercase hex string
// into an InfoHash. It is the inverse of InfoHash.HexString.
func NewInfoHashFromHex(s string) (InfoHash, error) {
	var ih InfoHash
	if len(s) != InfoHashSize*2 {
		return ih, fmt.Errorf("bittorrent: info hash hex string has wrong length: %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ih, err
	}
	copy(ih[:], b)
	return ih, nil
}

// Bytes returns the raw 20-byte representation.
func (ih InfoHash) Bytes() []byte {
	return ih[:]
}

// String returns the raw bytes as a string, usable directly as a bencode
// dictionary key in a scrape response.
func (ih InfoHash) String() string {
	return string(ih[:])
}

// HexString returns the 40-character lowercase hex representation.
func (ih InfoHash) HexString() string {
	return hex.EncodeToString(ih[:])
}

// Less reports whether ih sorts before other, for deterministic iteration
// (e.g. paginated listing).
func (ih InfoHash) Less(other InfoHash) bool {
	for i := range ih {
		if ih[i] != other[i] {
			return ih[i] < other[i]
		}
	}
	return false
}
