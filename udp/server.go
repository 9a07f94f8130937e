// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package udp

import (
	"crypto/rand"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/opentracker/chihaya/bittorrent"
	"github.com/opentracker/chihaya/conncookie"
	"github.com/opentracker/chihaya/config"
	"github.com/opentracker/chihaya/network"
	"github.com/opentracker/chihaya/stats"
	"github.com/opentracker/chihaya/tracker"
)

// Server represents a UDP serving torrent tracker, implementing BEP 15's
// Connect/Announce/Scrape actions. Packets are handled concurrently, up to
// UDPMaxInFlight at once; the server sheds load past that point by dropping
// the packet rather than queuing unboundedly, since a UDP client that gets
// no reply simply retransmits.
type Server struct {
	network network.Network
	addr    string
	config  *config.TrackerConfig
	udpCfg  config.UDPConfig
	tracker *tracker.Tracker
	cookies *conncookie.Issuer

	conn net.PacketConn

	inFlight chan struct{}
	wg       sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

// NewServer returns a new UDP server for a given configuration and tracker.
func NewServer(n network.Network, cfg *config.Config, tkr *tracker.Tracker) *Server {
	var secret conncookie.Secret
	if _, err := rand.Read(secret[:]); err != nil {
		// crypto/rand.Read only fails if the system CSPRNG is broken, in
		// which case nothing the tracker does is trustworthy anyway.
		glog.Fatalf("udp: failed to seed connection-cookie secret: %s", err)
	}

	maxInFlight := cfg.TrackerConfig.UDPMaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 1
	}

	return &Server{
		network:  n,
		config:   &cfg.TrackerConfig,
		udpCfg:   cfg.UDPConfig,
		tracker:  tkr,
		cookies:  conncookie.NewIssuer(secret, cfg.TrackerConfig.ConnectionCookieLifetime.Duration),
		inFlight: make(chan struct{}, maxInFlight),
		closed:   make(chan struct{}),
	}
}

// ServerAddr returns the address the server is listening on.
func (s *Server) ServerAddr() string {
	return s.addr
}

// Setup prepares the underlying network for listening.
func (s *Server) Setup() error {
	return s.network.Setup()
}

// Serve runs a UDP server, blocking until the server has shut down.
func (s *Server) Serve() {
	conn, err := s.network.ListenPacket("udp", s.udpCfg.ListenAddr)
	if err != nil {
		glog.Error(err)
		return
	}
	s.conn = conn
	s.addr = conn.LocalAddr().String()

	bufSize := s.udpCfg.ReadBufferSize
	if bufSize <= 0 {
		bufSize = 65507
	}

	glog.Infof("Serving UDP on %s", s.addr)

	for {
		buf := make([]byte, bufSize)
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.closed:
				s.wg.Wait()
				glog.Info("UDP server shut down cleanly")
				return
			default:
				glog.Errorf("udp: ReadFrom error: %s", err)
				continue
			}
		}

		udpAddr, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}

		select {
		case s.inFlight <- struct{}{}:
			s.wg.Add(1)
			go s.handlePacket(buf[:n], udpAddr)
		default:
			// At capacity; drop the packet. The client will retransmit.
			stats.RecordEvent(stats.ErroredRequest)
		}
	}
}

// Stop cleanly shuts down the server: new reads stop, and in-flight packets
// are given UDPShutdownGracePeriod to finish before Stop returns.
func (s *Server) Stop() {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.conn != nil {
			s.conn.Close()
		}
	})

	grace := s.config.UDPShutdownGracePeriod.Duration
	if grace <= 0 {
		s.wg.Wait()
		return
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		glog.Warning("udp: shutdown grace period elapsed with packets still in flight")
	}
}

func (s *Server) handlePacket(packet []byte, addr *net.UDPAddr) {
	defer s.wg.Done()
	defer func() { <-s.inFlight }()

	start := time.Now()
	resp, action, err := s.process(packet, addr)
	duration := time.Since(start)

	if err != nil {
		if err == bittorrent.ErrInvalidConnectionID {
			// Cookie failures get no reply at all.
		} else if bittorrent.IsPublicError(err) {
			txID := transactionIDOf(packet)
			s.write(writeErrorResponse(txID, err.Error()), addr)
			stats.RecordEvent(stats.ClientError)
		} else {
			glog.Errorf("udp: internal error handling %s from %s: %s", action, addr, err)
		}
		stats.RecordEvent(stats.ErroredRequest)
	} else if resp != nil {
		s.write(resp, addr)
	}

	stats.RecordEvent(stats.HandledRequest)
	stats.RecordTiming(stats.ResponseTime, duration)

	if glog.V(2) {
		glog.Infof("[UDP - %9s] %s from %s", duration, action, addr)
	}
}

func transactionIDOf(packet []byte) uint32 {
	if len(packet) < headerLen {
		return 0
	}
	h, _ := parseHeader(packet)
	return h.TransactionID
}

// process dispatches a raw packet to its handler based on the action named
// in its header, verifying the connection cookie for every action but
// Connect.
func (s *Server) process(packet []byte, addr *net.UDPAddr) (resp []byte, act action, err error) {
	h, err := parseHeader(packet)
	if err != nil {
		return nil, actionError, err
	}
	act = h.Action

	if act == actionConnect {
		if h.ConnectionID != bigEndianUint64(initialConnectionID[:]) {
			return nil, act, errMalformedPacket
		}
		connID := s.cookies.Issue(addr, time.Now())
		return writeConnectResponse(h.TransactionID, uint64(connID)), act, nil
	}

	if !s.cookies.Verify(conncookie.Cookie(h.ConnectionID), addr, time.Now()) {
		return nil, act, bittorrent.ErrInvalidConnectionID
	}

	opts := ParseOptions{
		AllowIPSpoofing:     s.config.AllowIPSpoofing,
		MaxNumWant:          uint32(s.config.MaxNumWant),
		DefaultNumWant:      uint32(s.config.NumWantFallback),
		MaxScrapeInfoHashes: uint32(s.config.MaxScrapeInfoHashes),
	}

	switch act {
	case actionAnnounce, actionAnnounceV6:
		return s.handleAnnounce(packet, addr, act == actionAnnounceV6, opts, h.TransactionID)
	case actionScrape:
		return s.handleScrape(packet, addr, opts, h.TransactionID)
	default:
		return nil, act, errUnknownAction
	}
}

func (s *Server) handleAnnounce(packet []byte, addr *net.UDPAddr, v6 bool, opts ParseOptions, txID uint32) ([]byte, action, error) {
	req, err := parseAnnounce(packet, addr.IP, v6, opts)
	if err != nil {
		return nil, actionAnnounce, err
	}

	resp, err := s.tracker.HandleAnnounce(req, stats.UDP)
	if err != nil {
		return nil, actionAnnounce, err
	}

	peers := resp.IPv4Peers
	if v6 || req.Peer.IP.AddressFamily == bittorrent.IPv6 {
		peers = resp.IPv6Peers
	}

	return writeAnnounceResponse(txID, uint32(s.config.Announce.Duration.Seconds()), uint32(resp.Incomplete), uint32(resp.Complete), peers, v6), actionAnnounce, nil
}

func (s *Server) handleScrape(packet []byte, addr *net.UDPAddr, opts ParseOptions, txID uint32) ([]byte, action, error) {
	req, err := parseScrape(packet, opts)
	if err != nil {
		return nil, actionScrape, err
	}

	// BEP 48 scrape counts are not split by address family; family here
	// only dimensions the request-count stats by which socket it arrived
	// on.
	family := addressFamilyOf(addr)
	resp, err := s.tracker.HandleScrape(req, family, stats.UDP)
	if err != nil {
		return nil, actionScrape, err
	}

	return writeScrapeResponse(txID, req.InfoHashes, resp.Files), actionScrape, nil
}

func (s *Server) write(b []byte, addr *net.UDPAddr) {
	if _, err := s.conn.WriteTo(b, addr); err != nil {
		glog.Errorf("udp: WriteTo %s failed: %s", addr, err)
	}
}

func bigEndianUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func (a action) String() string {
	switch a {
	case actionConnect:
		return "connect"
	case actionAnnounce:
		return "announce"
	case actionAnnounceV6:
		return "announce6"
	case actionScrape:
		return "scrape"
	case actionError:
		return "error"
	default:
		return "unknown"
	}
}
