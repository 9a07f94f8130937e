// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package bittorrent

import "net"

// AddressFamily distinguishes IPv4 from IPv6 swarms; compact peer lists must
// never mix the two (spec note: "mixing families in peers is forbidden").
type AddressFamily uint8

const (
	// IPv4 is the AddressFamily of a 4-byte address.
	IPv4 AddressFamily = iota
	// IPv6 is the AddressFamily of a 16-byte address.
	IPv6
)

// IP wraps a net.IP with its resolved AddressFamily, since net.IP alone
// cannot reliably distinguish a 4-in-6 mapped address from a native IPv6
// one without an explicit tag.
type IP struct {
	net.IP
	AddressFamily
}

// AddressFamilyOf classifies an IP as IPv4 or IPv6, preferring the IPv4
// form when a 4-in-6 mapped address is given.
func AddressFamilyOf(ip net.IP) (IP, error) {
	if v4 := ip.To4(); v4 != nil {
		return IP{IP: v4, AddressFamily: IPv4}, nil
	}
	if len(ip) == net.IPv6len {
		return IP{IP: ip, AddressFamily: IPv6}, nil
	}
	return IP{}, ErrInvalidIP
}
