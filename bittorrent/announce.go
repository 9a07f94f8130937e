// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package bittorrent

// AnnounceRequest represents a parsed, transport-agnostic announce, as
// produced by either the HTTP or UDP frontend.
type AnnounceRequest struct {
	InfoHash InfoHash
	Peer     Peer

	Event      Event
	NumWant    uint32
	Compact    bool
	AuthKey    string
	IPProvided bool

	// ClientIPFromSocket and ClientIPFromXFF hold the two candidate peer
	// IPs available to a frontend; the announce service picks between them
	// per policy (spec.md §4.2 step 1).
	ClientIPFromSocket IP
	HasSocketIP        bool
	ClientIPFromXFF    IP
	HasXFF             bool

	// CanCarryXFF reports whether this request's transport is even capable
	// of carrying a forwarded-for header. Only the HTTP frontend sets this;
	// UDP has no such header (BEP 15 defines no equivalent), so it is
	// always false there.
	CanCarryXFF bool
}

// AnnounceResponse is the canonical result of handling an AnnounceRequest.
type AnnounceResponse struct {
	Interval, MinInterval uint32
	Complete, Incomplete  int
	IPv4Peers, IPv6Peers  PeerList
}

// ScrapeRequest represents a parsed bulk scrape over one or more
// info-hashes.
type ScrapeRequest struct {
	InfoHashes []InfoHash
	AuthKey    string
}

// SwarmMetadata is the per-info-hash triple returned by a scrape and by
// repository reads.
type SwarmMetadata struct {
	Complete, Incomplete int
	Downloaded           uint32
}

// ScrapeResponse is the result of handling a ScrapeRequest.
type ScrapeResponse struct {
	Files map[InfoHash]SwarmMetadata
}

// SanitizeAnnounce clamps NumWant to [0, maxNumWant], substituting
// defaultNumWant when the client did not provide one.
func SanitizeAnnounce(r *AnnounceRequest, maxNumWant, defaultNumWant uint32) error {
	if r.NumWant == 0 {
		r.NumWant = defaultNumWant
	}
	if r.NumWant > maxNumWant {
		r.NumWant = maxNumWant
	}
	return nil
}

// SanitizeScrape rejects a scrape carrying more info-hashes than allowed.
func SanitizeScrape(r *ScrapeRequest, maxScrapeInfoHashes uint32) error {
	if uint32(len(r.InfoHashes)) > maxScrapeInfoHashes {
		return ErrInvalidNumInfoHashes
	}
	return nil
}
