// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package bittorrent

import (
	"net/url"
	"strconv"
)

// Params is a parsed set of key/value query parameters, as carried in the
// BEP 41 URL-data optional parameters of a UDP announce.
type Params map[string]string

// ParseURLData parses a raw, still percent-encoded query string into
// Params, decoding keys and values.
func ParseURLData(raw string) (Params, error) {
	p := make(Params)
	if raw == "" {
		return p, nil
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, ErrMalformedRequest
	}
	for k, vs := range values {
		if len(vs) > 0 {
			p[k] = vs[0]
		}
	}
	return p, nil
}

// String returns the value for key and whether it was present.
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// Uint64 parses the value for key as a base-10 uint64.
func (p Params) Uint64(key string) (uint64, error) {
	v, ok := p[key]
	if !ok {
		return 0, ErrMalformedRequest
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, ErrMalformedRequest
	}
	return n, nil
}
