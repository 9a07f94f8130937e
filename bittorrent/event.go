// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package bittorrent

// Event represents the event field of an announce as defined by BEP 3.
type Event uint8

const (
	// None is the event sent by clients performing a regular, periodic
	// announce.
	None Event = iota
	// Completed is sent once, when a peer finishes downloading the torrent.
	Completed
	// Started is sent when a peer joins a swarm.
	Started
	// Stopped is sent when a peer leaves a swarm early.
	Stopped
)

func (e Event) String() string {
	switch e {
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	case Completed:
		return "completed"
	default:
		return ""
	}
}

// NewEvent parses the string form of the event query parameter as used by
// BEP 3. UDP announces carry a numeric event ID instead, which the udp
// package maps through its own table.
func NewEvent(s string) (Event, error) {
	switch s {
	case "", "none":
		return None, nil
	case "started":
		return Started, nil
	case "stopped":
		return Stopped, nil
	case "completed":
		return Completed, nil
	default:
		return None, ErrUnknownEvent
	}
}
