// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package query implements parsing of an HTTP tracker's raw query string
// into normalized announce/scrape parameters. It exists as its own package,
// distinct from net/url, because BEP 3 requires info_hash and peer_id to
// round-trip through percent-decoding as raw bytes, including the bytes
// that net/url's "+" as space convention would otherwise mangle, and
// because a scrape may repeat info_hash any number of times.
package query

import (
	"strconv"
	"strings"
)

// Query is a parsed announce or scrape query string.
type Query struct {
	Params     map[string]string
	Infohashes []string
}

// New parses raw (everything after the '?' in a request URL).
func New(raw string) (*Query, error) {
	q := &Query{Params: make(map[string]string)}

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}

		var key, value string
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			key, value = pair[:idx], pair[idx+1:]
		} else {
			key = pair
		}

		key, err := unescape(key)
		if err != nil {
			return nil, err
		}
		value, err = unescape(value)
		if err != nil {
			return nil, err
		}

		if key == "info_hash" {
			q.Infohashes = append(q.Infohashes, value)
			continue
		}

		q.Params[key] = value
	}

	return q, nil
}

// unescape percent-decodes s without net/url's "+ means space" substitution,
// which would corrupt an info_hash or peer_id byte string containing a
// literal '+' (0x2B).
func unescape(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%':
			if i+2 >= len(s) {
				return "", ErrMalformedEscape
			}
			n, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", ErrMalformedEscape
			}
			b.WriteByte(byte(n))
			i += 2
		default:
			b.WriteByte(s[i])
		}
	}

	return b.String(), nil
}

// ErrMalformedEscape is returned when a query string contains an invalid
// percent-escape sequence.
var ErrMalformedEscape = queryError("malformed percent-escape in query string")

type queryError string

func (e queryError) Error() string { return string(e) }

// Uint64 parses key as a base-10 unsigned integer.
func (q *Query) Uint64(key string) (uint64, error) {
	value, exists := q.Params[key]
	if !exists {
		return 0, ErrKeyNotFound
	}
	return strconv.ParseUint(value, 10, 64)
}

// ErrKeyNotFound is returned by Uint64 when key is not present.
var ErrKeyNotFound = queryError("query: value not found for key")
