// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package memory

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opentracker/chihaya/bittorrent"
	"github.com/opentracker/chihaya/storage"
)

func testPeer(id byte, ip string, port uint16) bittorrent.Peer {
	fam, _ := bittorrent.AddressFamilyOf(net.ParseIP(ip))
	var pid bittorrent.PeerID
	for i := range pid {
		pid[i] = id
	}
	return bittorrent.Peer{ID: pid, IP: fam, Port: port, UpdatedAt: time.Now()}
}

func testInfoHash(b byte) bittorrent.InfoHash {
	var ih bittorrent.InfoHash
	for i := range ih {
		ih[i] = b
	}
	return ih
}

func TestPutSeederThenScrape(t *testing.T) {
	ps := New(Config{ShardCount: 1})
	ih := testInfoHash(1)

	require.NoError(t, ps.PutSeeder(ih, testPeer(1, "203.0.113.5", 6881)))
	meta := ps.ScrapeSwarm(ih, bittorrent.IPv4)
	require.Equal(t, 1, meta.Complete)
	require.Equal(t, 0, meta.Incomplete)
}

func TestDeleteSeederRemovesPeer(t *testing.T) {
	ps := New(Config{ShardCount: 1})
	ih := testInfoHash(1)
	peer := testPeer(1, "203.0.113.5", 6881)

	require.NoError(t, ps.PutSeeder(ih, peer))
	require.NoError(t, ps.DeleteSeeder(ih, peer))

	meta := ps.ScrapeSwarm(ih, bittorrent.IPv4)
	require.Equal(t, 0, meta.Complete)
}

func TestDeleteSeederUnknownSwarmErrors(t *testing.T) {
	ps := New(Config{ShardCount: 1})
	err := ps.DeleteSeeder(testInfoHash(9), testPeer(1, "203.0.113.5", 6881))
	require.Equal(t, storage.ErrResourceDoesNotExist, err)
}

func TestGraduateLeecherMovesToSeederAndCountsDownload(t *testing.T) {
	ps := New(Config{ShardCount: 1})
	ih := testInfoHash(1)
	peer := testPeer(1, "203.0.113.5", 6881)

	require.NoError(t, ps.PutLeecher(ih, peer))
	require.NoError(t, ps.GraduateLeecher(ih, peer))

	meta := ps.ScrapeSwarm(ih, bittorrent.IPv4)
	require.Equal(t, 1, meta.Complete)
	require.Equal(t, 0, meta.Incomplete)
	require.Equal(t, uint32(1), meta.Downloaded)
}

func TestPutSeederRemovesStaleLeecherEntry(t *testing.T) {
	ps := New(Config{ShardCount: 1})
	ih := testInfoHash(1)
	peer := testPeer(1, "203.0.113.5", 6881)

	require.NoError(t, ps.PutLeecher(ih, peer))
	require.NoError(t, ps.PutSeeder(ih, peer))

	meta := ps.ScrapeSwarm(ih, bittorrent.IPv4)
	require.Equal(t, 1, meta.Complete)
	require.Equal(t, 0, meta.Incomplete)

	m := ps.GlobalMetrics()
	require.Equal(t, uint64(1), m.Seeders)
	require.Equal(t, uint64(0), m.Leechers)
}

func TestPutLeecherRemovesStaleSeederEntry(t *testing.T) {
	ps := New(Config{ShardCount: 1})
	ih := testInfoHash(1)
	peer := testPeer(1, "203.0.113.5", 6881)

	require.NoError(t, ps.PutSeeder(ih, peer))
	require.NoError(t, ps.PutLeecher(ih, peer))

	meta := ps.ScrapeSwarm(ih, bittorrent.IPv4)
	require.Equal(t, 0, meta.Complete)
	require.Equal(t, 1, meta.Incomplete)

	m := ps.GlobalMetrics()
	require.Equal(t, uint64(0), m.Seeders)
	require.Equal(t, uint64(1), m.Leechers)
}

func TestAnnouncePeersExcludesWrongFamily(t *testing.T) {
	ps := New(Config{ShardCount: 1})
	ih := testInfoHash(1)

	v4peer := testPeer(1, "203.0.113.5", 6881)
	v6peer := testPeer(2, "2001:db8::1", 6882)
	requester := testPeer(3, "203.0.113.6", 6883)

	require.NoError(t, ps.PutLeecher(ih, v4peer))
	require.NoError(t, ps.PutLeecher(ih, v6peer))

	peers, err := ps.AnnouncePeers(ih, true, 10, requester)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	require.Equal(t, bittorrent.IPv4, peers[0].IP.AddressFamily)
}

func TestAnnouncePeersExcludesRequester(t *testing.T) {
	ps := New(Config{ShardCount: 1})
	ih := testInfoHash(1)
	requester := testPeer(1, "203.0.113.5", 6881)
	other := testPeer(2, "203.0.113.6", 6882)

	require.NoError(t, ps.PutLeecher(ih, requester))
	require.NoError(t, ps.PutLeecher(ih, other))

	peers, err := ps.AnnouncePeers(ih, false, 10, requester)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	require.Equal(t, other.Port, peers[0].Port)
}

func TestAnnouncePeersExcludesSeederRequesterFromComplementaryList(t *testing.T) {
	ps := New(Config{ShardCount: 1})
	ih := testInfoHash(1)
	requester := testPeer(1, "203.0.113.5", 6881)
	other := testPeer(2, "203.0.113.6", 6882)

	require.NoError(t, ps.PutLeecher(ih, requester))
	require.NoError(t, ps.PutLeecher(ih, other))

	peers, err := ps.AnnouncePeers(ih, true, 10, requester)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	require.Equal(t, other.Port, peers[0].Port)
}

func TestCollectGarbageReapsStalePeers(t *testing.T) {
	ps := New(Config{ShardCount: 1})
	ih := testInfoHash(1)
	peer := testPeer(1, "203.0.113.5", 6881)
	peer.UpdatedAt = time.Unix(1_000, 0)

	require.NoError(t, ps.PutSeeder(ih, peer))
	require.NoError(t, ps.CollectGarbage(time.Unix(2_000, 0)))

	meta := ps.ScrapeSwarm(ih, bittorrent.IPv4)
	require.Equal(t, 0, meta.Complete)
}

func TestPaginatedListOrdersByInfoHash(t *testing.T) {
	ps := New(Config{ShardCount: 4})
	for _, b := range []byte{3, 1, 2} {
		require.NoError(t, ps.PutSeeder(testInfoHash(b), testPeer(b, "203.0.113.5", 6881)))
	}

	page := ps.PaginatedList(0, 10)
	require.Len(t, page, 3)
	require.True(t, page[0].InfoHash.Less(page[1].InfoHash))
	require.True(t, page[1].InfoHash.Less(page[2].InfoHash))
}

func TestPaginatedListRespectsOffsetAndLimit(t *testing.T) {
	ps := New(Config{ShardCount: 4})
	for _, b := range []byte{1, 2, 3, 4, 5} {
		require.NoError(t, ps.PutSeeder(testInfoHash(b), testPeer(b, "203.0.113.5", 6881)))
	}

	page := ps.PaginatedList(2, 2)
	require.Len(t, page, 2)
}

func TestImportPersistedCompletedSeedsCounterWithoutPeers(t *testing.T) {
	ps := New(Config{ShardCount: 1})
	ih := testInfoHash(1)

	ps.ImportPersistedCompleted(ih, 42)
	meta := ps.ScrapeSwarm(ih, bittorrent.IPv4)
	require.Equal(t, uint32(42), meta.Downloaded)
	require.Equal(t, 0, meta.Complete)
}

func TestImportPersistedCompletedLeavesExistingEntryUntouched(t *testing.T) {
	ps := New(Config{ShardCount: 1})
	ih := testInfoHash(1)
	peer := testPeer(1, "203.0.113.5", 6881)

	require.NoError(t, ps.PutLeecher(ih, peer))
	require.NoError(t, ps.GraduateLeecher(ih, peer))

	ps.ImportPersistedCompleted(ih, 42)

	meta := ps.ScrapeSwarm(ih, bittorrent.IPv4)
	require.Equal(t, uint32(1), meta.Downloaded)
}

func TestDeleteSeederKeepsPeerlessSwarmWhenPolicyDisabled(t *testing.T) {
	ps := New(Config{ShardCount: 1, RemovePeerlessTorrents: false})
	ih := testInfoHash(1)
	peer := testPeer(1, "203.0.113.5", 6881)

	require.NoError(t, ps.PutLeecher(ih, peer))
	require.NoError(t, ps.GraduateLeecher(ih, peer))
	require.NoError(t, ps.DeleteSeeder(ih, peer))

	meta := ps.ScrapeSwarm(ih, bittorrent.IPv4)
	require.Equal(t, uint32(1), meta.Downloaded)
}

func TestDeleteSeederPreservesDownloadedOfPeerlessSwarm(t *testing.T) {
	ps := New(Config{ShardCount: 1, RemovePeerlessTorrents: true})
	ih := testInfoHash(1)
	peer := testPeer(1, "203.0.113.5", 6881)

	require.NoError(t, ps.PutLeecher(ih, peer))
	require.NoError(t, ps.GraduateLeecher(ih, peer))
	require.NoError(t, ps.DeleteSeeder(ih, peer))

	meta := ps.ScrapeSwarm(ih, bittorrent.IPv4)
	require.Equal(t, uint32(1), meta.Downloaded, "downloaded counter must survive eviction of a completed swarm")
}

func TestDeleteSeederEvictsPeerlessUndownloadedSwarmWhenPolicyEnabled(t *testing.T) {
	ps := New(Config{ShardCount: 1, RemovePeerlessTorrents: true})
	ih := testInfoHash(1)
	peer := testPeer(1, "203.0.113.5", 6881)

	require.NoError(t, ps.PutSeeder(ih, peer))
	require.NoError(t, ps.DeleteSeeder(ih, peer))

	page := ps.PaginatedList(0, 10)
	require.Len(t, page, 0)
}

func TestGlobalMetricsCountsAcrossShards(t *testing.T) {
	ps := New(Config{ShardCount: 4})
	require.NoError(t, ps.PutSeeder(testInfoHash(1), testPeer(1, "203.0.113.5", 6881)))
	require.NoError(t, ps.PutLeecher(testInfoHash(2), testPeer(2, "203.0.113.6", 6882)))

	m := ps.GlobalMetrics()
	require.Equal(t, 2, m.Infohashes)
	require.Equal(t, uint64(1), m.Seeders)
	require.Equal(t, uint64(1), m.Leechers)
}

func TestEvictUnwantedRemovesPeerlessUndownloadedSwarm(t *testing.T) {
	ps := New(Config{ShardCount: 1, RemovePeerlessTorrents: true})
	ih := testInfoHash(1)

	ps.ImportPersistedCompleted(ih, 0)
	require.NoError(t, ps.EvictUnwanted())

	page := ps.PaginatedList(0, 10)
	require.Len(t, page, 0)
}

func TestEvictUnwantedKeepsDownloadedSwarm(t *testing.T) {
	ps := New(Config{ShardCount: 1, RemovePeerlessTorrents: true})
	ih := testInfoHash(1)

	ps.ImportPersistedCompleted(ih, 7)
	require.NoError(t, ps.EvictUnwanted())

	page := ps.PaginatedList(0, 10)
	require.Len(t, page, 1)
	require.Equal(t, uint64(7), page[0].Downloaded)
}

func TestEvictUnwantedNoopWhenPolicyDisabled(t *testing.T) {
	ps := New(Config{ShardCount: 1, RemovePeerlessTorrents: false})
	ih := testInfoHash(1)

	ps.ImportPersistedCompleted(ih, 0)
	require.NoError(t, ps.EvictUnwanted())

	page := ps.PaginatedList(0, 10)
	require.Len(t, page, 1)
}

func TestStopClearsAllShards(t *testing.T) {
	ps := New(Config{ShardCount: 1})
	require.NoError(t, ps.PutSeeder(testInfoHash(1), testPeer(1, "203.0.113.5", 6881)))
	require.NoError(t, ps.Stop())

	m := ps.GlobalMetrics()
	require.Equal(t, 0, m.Infohashes)
}
