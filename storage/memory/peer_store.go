// Package memory implements storage.PeerStore keeping all swarm state in
// process memory, sharded across a fixed number of independently-locked
// shards keyed by a prefix of the info-hash.
package memory

import (
	"encoding/binary"
	"net"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/opentracker/chihaya/bittorrent"
	"github.com/opentracker/chihaya/storage"
)

// Name is the name by which this PeerStore is registered with storage.
const Name = "memory"

func init() {
	storage.Register(Name, func(icfg interface{}) (storage.PeerStore, error) {
		cfg, _ := icfg.(Config)
		return New(cfg), nil
	})
}

// Config holds the tunables of a memory PeerStore.
type Config struct {
	ShardCount int

	// RemovePeerlessTorrents enables evict_unwanted: a swarm that has gone
	// peerless and has never had a completed download is dropped entirely
	// instead of being kept around as an empty entry.
	RemovePeerlessTorrents bool
}

const defaultShardCount = 1024

func (cfg Config) validate() Config {
	if cfg.ShardCount <= 0 {
		cfg.ShardCount = defaultShardCount
	}
	return cfg
}

type serializedPeer string

// newPeerKey serializes a peer's identity within a swarm. A peer-ID alone
// is not a safe map key here: NAT and client restarts let the same ID
// reappear at a different (IP, port), so the key folds in the endpoint as
// well as the ID Peer.Key returns.
func newPeerKey(p bittorrent.Peer) serializedPeer {
	b := make([]byte, bittorrent.PeerIDSize+2+len(p.IP.IP))
	id := p.Key()
	copy(b[:bittorrent.PeerIDSize], id[:])
	binary.BigEndian.PutUint16(b[bittorrent.PeerIDSize:bittorrent.PeerIDSize+2], p.Port)
	copy(b[bittorrent.PeerIDSize+2:], p.IP.IP)
	return serializedPeer(b)
}

func decodePeerKey(pk serializedPeer) bittorrent.Peer {
	const idLen = bittorrent.PeerIDSize
	peer := bittorrent.Peer{
		ID:   bittorrent.PeerIDFromString(string(pk[:idLen])),
		Port: binary.BigEndian.Uint16([]byte(pk[idLen : idLen+2])),
		IP:   bittorrent.IP{IP: net.IP(pk[idLen+2:])},
	}

	if v4 := peer.IP.IP.To4(); v4 != nil {
		peer.IP.IP = v4
		peer.IP.AddressFamily = bittorrent.IPv4
	} else {
		peer.IP.AddressFamily = bittorrent.IPv6
	}

	return peer
}

// swarm holds the peers and completion counter for a single info-hash.
type swarm struct {
	seeders    map[serializedPeer]time.Time
	leechers   map[serializedPeer]time.Time
	downloaded uint64
}

func newSwarm() swarm {
	return swarm{
		seeders:  make(map[serializedPeer]time.Time),
		leechers: make(map[serializedPeer]time.Time),
	}
}

type shard struct {
	sync.RWMutex
	swarms      map[bittorrent.InfoHash]swarm
	numSeeders  uint64
	numLeechers uint64
}

// peerStore is a sharded, in-memory implementation of storage.PeerStore.
//
// Sharding by a prefix of the info-hash (rather than a single store-wide
// lock) bounds contention to peers of torrents that happen to land in the
// same shard; this mirrors the sharded repository variant named alongside
// torrust-tracker's single-mutex one, scaled to a map of independently
// locked shards instead of one lock per torrent.
type peerStore struct {
	shards         []*shard
	removePeerless bool
}

// New creates a new in-memory PeerStore.
func New(provided Config) storage.PeerStore {
	cfg := provided.validate()
	ps := &peerStore{
		shards:         make([]*shard, cfg.ShardCount),
		removePeerless: cfg.RemovePeerlessTorrents,
	}
	for i := range ps.shards {
		ps.shards[i] = &shard{swarms: make(map[bittorrent.InfoHash]swarm)}
	}
	return ps
}

func (ps *peerStore) shardFor(ih bittorrent.InfoHash) *shard {
	idx := binary.BigEndian.Uint32(ih[:4]) % uint32(len(ps.shards))
	return ps.shards[idx]
}

func (ps *peerStore) PutSeeder(ih bittorrent.InfoHash, p bittorrent.Peer) error {
	s := ps.shardFor(ih)
	s.Lock()
	defer s.Unlock()

	sw, ok := s.swarms[ih]
	if !ok {
		sw = newSwarm()
	}

	pk := newPeerKey(p)
	if _, ok := sw.leechers[pk]; ok {
		s.numLeechers--
		delete(sw.leechers, pk)
	}
	if _, ok := sw.seeders[pk]; !ok {
		s.numSeeders++
	}
	sw.seeders[pk] = p.UpdatedAt
	s.swarms[ih] = sw
	return nil
}

func (ps *peerStore) DeleteSeeder(ih bittorrent.InfoHash, p bittorrent.Peer) error {
	s := ps.shardFor(ih)
	s.Lock()
	defer s.Unlock()

	sw, ok := s.swarms[ih]
	if !ok {
		return storage.ErrResourceDoesNotExist
	}

	pk := newPeerKey(p)
	if _, ok := sw.seeders[pk]; !ok {
		return storage.ErrResourceDoesNotExist
	}

	s.numSeeders--
	delete(sw.seeders, pk)
	ps.deleteSwarmIfEmpty(s, ih, sw)
	return nil
}

func (ps *peerStore) PutLeecher(ih bittorrent.InfoHash, p bittorrent.Peer) error {
	s := ps.shardFor(ih)
	s.Lock()
	defer s.Unlock()

	sw, ok := s.swarms[ih]
	if !ok {
		sw = newSwarm()
	}

	pk := newPeerKey(p)
	if _, ok := sw.seeders[pk]; ok {
		s.numSeeders--
		delete(sw.seeders, pk)
	}
	if _, ok := sw.leechers[pk]; !ok {
		s.numLeechers++
	}
	sw.leechers[pk] = p.UpdatedAt
	s.swarms[ih] = sw
	return nil
}

func (ps *peerStore) DeleteLeecher(ih bittorrent.InfoHash, p bittorrent.Peer) error {
	s := ps.shardFor(ih)
	s.Lock()
	defer s.Unlock()

	sw, ok := s.swarms[ih]
	if !ok {
		return storage.ErrResourceDoesNotExist
	}

	pk := newPeerKey(p)
	if _, ok := sw.leechers[pk]; !ok {
		return storage.ErrResourceDoesNotExist
	}

	s.numLeechers--
	delete(sw.leechers, pk)
	ps.deleteSwarmIfEmpty(s, ih, sw)
	return nil
}

func (ps *peerStore) GraduateLeecher(ih bittorrent.InfoHash, p bittorrent.Peer) error {
	s := ps.shardFor(ih)
	s.Lock()
	defer s.Unlock()

	sw, ok := s.swarms[ih]
	if !ok {
		sw = newSwarm()
	}

	pk := newPeerKey(p)
	if _, ok := sw.leechers[pk]; ok {
		s.numLeechers--
		delete(sw.leechers, pk)
	}

	if _, ok := sw.seeders[pk]; !ok {
		s.numSeeders++
	}
	sw.seeders[pk] = p.UpdatedAt
	sw.downloaded++

	s.swarms[ih] = sw
	return nil
}

// deleteSwarmIfEmpty implements evict_unwanted: once a swarm has no seeders
// or leechers left, it is only dropped when RemovePeerlessTorrents is
// enabled and the swarm has never recorded a completed download. A swarm
// that has a nonzero downloaded counter is kept, empty peer sets and all,
// so that counter survives to the next announce instead of silently
// resetting to zero.
func (ps *peerStore) deleteSwarmIfEmpty(s *shard, ih bittorrent.InfoHash, sw swarm) {
	if len(sw.seeders) != 0 || len(sw.leechers) != 0 {
		s.swarms[ih] = sw
		return
	}
	if !ps.removePeerless || sw.downloaded != 0 {
		s.swarms[ih] = sw
		return
	}
	delete(s.swarms, ih)
}

func (ps *peerStore) AnnouncePeers(ih bittorrent.InfoHash, seeder bool, numWant int, announcer bittorrent.Peer) ([]bittorrent.Peer, error) {
	s := ps.shardFor(ih)
	s.RLock()
	defer s.RUnlock()

	sw, ok := s.swarms[ih]
	if !ok {
		return nil, storage.ErrResourceDoesNotExist
	}

	var peers []bittorrent.Peer
	announcerPK := newPeerKey(announcer)
	family := announcer.IP.AddressFamily

	if seeder {
		for pk := range sw.leechers {
			if pk == announcerPK {
				continue
			}
			if numWant == 0 {
				break
			}
			p := decodePeerKey(pk)
			if p.IP.AddressFamily != family {
				continue
			}
			peers = append(peers, p)
			numWant--
		}
		return peers, nil
	}

	for pk := range sw.seeders {
		if pk == announcerPK {
			continue
		}
		if numWant == 0 {
			break
		}
		p := decodePeerKey(pk)
		if p.IP.AddressFamily != family {
			continue
		}
		peers = append(peers, p)
		numWant--
	}
	for pk := range sw.leechers {
		if pk == announcerPK {
			continue
		}
		if numWant == 0 {
			break
		}
		p := decodePeerKey(pk)
		if p.IP.AddressFamily != family {
			continue
		}
		peers = append(peers, p)
		numWant--
	}
	return peers, nil
}

func (ps *peerStore) ScrapeSwarm(ih bittorrent.InfoHash, _ bittorrent.AddressFamily) bittorrent.SwarmMetadata {
	s := ps.shardFor(ih)
	s.RLock()
	defer s.RUnlock()

	sw, ok := s.swarms[ih]
	if !ok {
		return bittorrent.SwarmMetadata{}
	}

	return bittorrent.SwarmMetadata{
		Complete:   len(sw.seeders),
		Incomplete: len(sw.leechers),
		Downloaded: uint32(sw.downloaded),
	}
}

// CollectGarbage deletes all peers that have not announced since cutoff. It
// yields the processor between shards so a large sweep does not stall
// announces for the whole store.
func (ps *peerStore) CollectGarbage(cutoff time.Time) error {
	start := time.Now()

	for _, s := range ps.shards {
		s.Lock()
		for ih, sw := range s.swarms {
			for pk, t := range sw.seeders {
				if t.Before(cutoff) {
					s.numSeeders--
					delete(sw.seeders, pk)
				}
			}
			for pk, t := range sw.leechers {
				if t.Before(cutoff) {
					s.numLeechers--
					delete(sw.leechers, pk)
				}
			}
			ps.deleteSwarmIfEmpty(s, ih, sw)
		}
		s.Unlock()
		runtime.Gosched()
	}

	glog.V(2).Infof("storage/memory: garbage collection took %s", time.Since(start))
	return nil
}

// EvictUnwanted sweeps every shard for swarms that are already peerless and
// undownloaded, dropping them per evict_unwanted's policy gate. Swarms that
// go peerless via DeleteSeeder/DeleteLeecher/CollectGarbage are handled
// inline by deleteSwarmIfEmpty already; this sweep catches anything left
// over (for instance a swarm created by ImportPersistedCompleted with a
// zero counter that never gained a peer, so no delete ever touched it).
func (ps *peerStore) EvictUnwanted() error {
	if !ps.removePeerless {
		return nil
	}

	for _, s := range ps.shards {
		s.Lock()
		for ih, sw := range s.swarms {
			ps.deleteSwarmIfEmpty(s, ih, sw)
		}
		s.Unlock()
		runtime.Gosched()
	}
	return nil
}

func (ps *peerStore) GlobalMetrics() storage.GlobalMetrics {
	var m storage.GlobalMetrics
	for _, s := range ps.shards {
		s.RLock()
		m.Infohashes += len(s.swarms)
		m.Seeders += s.numSeeders
		m.Leechers += s.numLeechers
		s.RUnlock()
	}
	return m
}

func (ps *peerStore) PaginatedList(offset, limit int) []storage.TorrentSummary {
	all := make([]storage.TorrentSummary, 0, limit)
	for _, s := range ps.shards {
		s.RLock()
		for ih, sw := range s.swarms {
			all = append(all, storage.TorrentSummary{
				InfoHash:   ih,
				Seeders:    len(sw.seeders),
				Leechers:   len(sw.leechers),
				Downloaded: sw.downloaded,
			})
		}
		s.RUnlock()
	}

	sort.Slice(all, func(i, j int) bool { return all[i].InfoHash.Less(all[j].InfoHash) })

	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) || limit <= 0 {
		end = len(all)
	}
	return all[offset:end]
}

func (ps *peerStore) ImportPersistedCompleted(ih bittorrent.InfoHash, downloaded uint64) {
	s := ps.shardFor(ih)
	s.Lock()
	defer s.Unlock()

	if _, ok := s.swarms[ih]; ok {
		return
	}
	sw := newSwarm()
	sw.downloaded = downloaded
	s.swarms[ih] = sw
}

func (ps *peerStore) Stop() error {
	for _, s := range ps.shards {
		s.Lock()
		s.swarms = make(map[bittorrent.InfoHash]swarm)
		s.numSeeders = 0
		s.numLeechers = 0
		s.Unlock()
	}
	return nil
}
