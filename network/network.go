// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package network abstracts the listener construction used by the HTTP and
// UDP frontends, so that a tracker's transport is not hard-wired to the
// plain internet stack at compile time.
package network

import "net"

// Network sets up listeners for a tracker frontend.
type Network interface {
	// Setup performs any work needed before Listen/ListenPacket can be
	// called (e.g. establishing an overlay session). The plain Internet
	// implementation's Setup is a no-op.
	Setup() error

	// Listen opens a stream listener, as net.Listen.
	Listen(network, addr string) (net.Listener, error)

	// ListenPacket opens a packet-oriented listener, as net.ListenPacket.
	ListenPacket(network, addr string) (net.PacketConn, error)
}

// Plain is the Network implementation for a tracker running directly on
// the Internet, with no NAT-traversal or overlay transport beyond what the
// announce/scrape protocols themselves specify.
type Plain struct{}

// NewPlainNetwork returns the plain-Internet Network.
func NewPlainNetwork() Plain { return Plain{} }

func (Plain) Setup() error { return nil }

func (Plain) Listen(network, addr string) (net.Listener, error) {
	return net.Listen(network, addr)
}

func (Plain) ListenPacket(network, addr string) (net.PacketConn, error) {
	return net.ListenPacket(network, addr)
}
