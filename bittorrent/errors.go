// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package bittorrent

// ClientError is an error that should be propagated back to the client, as
// opposed to an internal error that should only be logged. Wire adapters
// check IsPublicError to decide how to format a response.
type ClientError string

func (e ClientError) Error() string { return string(e) }

// NotFoundError indicates a request for a resource that does not exist.
type NotFoundError ClientError

func (e NotFoundError) Error() string { return string(e) }

// ProtocolError indicates a malformed wire-level request.
type ProtocolError ClientError

func (e ProtocolError) Error() string { return string(e) }

// IsPublicError determines whether an error should be propagated to the
// client, instead of being folded into a generic internal-error response.
func IsPublicError(err error) bool {
	switch err.(type) {
	case ClientError, NotFoundError, ProtocolError:
		return true
	default:
		return false
	}
}

var (
	// ErrMalformedRequest is returned when a request lacks the parameters
	// required to build an AnnounceRequest/ScrapeRequest.
	ErrMalformedRequest = ClientError("malformed request")

	// ErrUnknownEvent is returned when an announce's event field does not
	// match one of the BEP 3 event names.
	ErrUnknownEvent = ClientError("unknown event")

	// ErrInvalidNumInfoHashes is returned when a scrape carries more info-hashes
	// than the protocol allows (74 over UDP per BEP 15).
	ErrInvalidNumInfoHashes = ClientError("invalid number of info hashes")

	// ErrTorrentDNE is returned when a torrent has no swarm entry and the
	// policy does not allow creating one implicitly.
	ErrTorrentDNE = NotFoundError("torrent does not exist")

	// ErrClientUnapproved is returned when a peer-ID or info-hash fails an
	// allow-list check.
	ErrClientUnapproved = ClientError("client is not approved")

	// ErrTorrentNotWhitelisted is returned in Listed/PrivateListed modes
	// when the requested info-hash is not on the whitelist.
	ErrTorrentNotWhitelisted = ClientError("torrent is not whitelisted")

	// ErrPeerNotAuthenticated is returned in Private/PrivateListed modes
	// when no auth key was supplied.
	ErrPeerNotAuthenticated = ClientError("peer is not authenticated")

	// ErrPeerKeyUnknown is returned when a supplied auth key does not match
	// any known key.
	ErrPeerKeyUnknown = ClientError("peer key is not valid")

	// ErrPeerKeyExpired is returned when a supplied auth key is known but
	// has expired.
	ErrPeerKeyExpired = ClientError("peer key has expired")

	// ErrMissingSocketAddress is returned when the socket address is
	// unavailable and reverse-proxy mode is off.
	ErrMissingSocketAddress = ClientError("missing socket address")

	// ErrMissingRightMostXForwardedFor is returned when reverse-proxy mode
	// is on but no X-Forwarded-For header was present.
	ErrMissingRightMostXForwardedFor = ClientError("missing rightmost X-Forwarded-For")

	// ErrInvalidIP is returned when a peer's resolved IP is malformed.
	ErrInvalidIP = ClientError("invalid IP address")

	// ErrInvalidConnectionID is returned by the UDP connection-cookie
	// verifier; wire adapters drop these silently rather than surface them.
	ErrInvalidConnectionID = ClientError("invalid connection id")
)
