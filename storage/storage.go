// Package storage abstracts the interactions of storing and manipulating
// swarm state so that it can be implemented by various backends.
package storage

import (
	"fmt"
	"time"

	"github.com/opentracker/chihaya/bittorrent"
)

// ErrResourceDoesNotExist is returned by delete methods if the requested
// resource does not exist.
var ErrResourceDoesNotExist = bittorrent.NotFoundError("resource does not exist")

// GlobalMetrics is an eventually-consistent snapshot of the whole
// PeerStore's state.
type GlobalMetrics struct {
	Infohashes int
	Seeders    uint64
	Leechers   uint64
}

// TorrentSummary describes a single swarm for the paginated listing
// endpoint.
type TorrentSummary struct {
	InfoHash   bittorrent.InfoHash
	Seeders    int
	Leechers   int
	Downloaded uint64
}

// PeerStore holds the state of a BitTorrent tracker: it maps info-hashes to
// swarms of peers, and answers the queries needed to fulfill announces and
// scrapes.
type PeerStore interface {
	// PutSeeder adds a seeder to the swarm identified by infoHash.
	PutSeeder(infoHash bittorrent.InfoHash, p bittorrent.Peer) error

	// DeleteSeeder removes a seeder from the swarm identified by infoHash.
	// If the swarm or peer does not exist, returns ErrResourceDoesNotExist.
	DeleteSeeder(infoHash bittorrent.InfoHash, p bittorrent.Peer) error

	// PutLeecher adds a leecher to the swarm identified by infoHash.
	PutLeecher(infoHash bittorrent.InfoHash, p bittorrent.Peer) error

	// DeleteLeecher removes a leecher from the swarm identified by
	// infoHash. If the swarm or peer does not exist, returns
	// ErrResourceDoesNotExist.
	DeleteLeecher(infoHash bittorrent.InfoHash, p bittorrent.Peer) error

	// GraduateLeecher promotes a leecher to a seeder in the swarm
	// identified by infoHash, incrementing the swarm's downloaded counter.
	// If the peer is not present as a leecher, it is added as a seeder.
	GraduateLeecher(infoHash bittorrent.InfoHash, p bittorrent.Peer) error

	// AnnouncePeers returns a best-effort list of peers from the swarm
	// identified by infoHash, capped at numWant, restricted to announcer's
	// address family, and never including announcer itself. A seeder is
	// given leechers only; a leecher is given seeders first, then other
	// leechers.
	AnnouncePeers(infoHash bittorrent.InfoHash, seeder bool, numWant int, announcer bittorrent.Peer) (peers []bittorrent.Peer, err error)

	// ScrapeSwarm returns the complete/incomplete/downloaded counts for
	// infoHash.
	ScrapeSwarm(infoHash bittorrent.InfoHash, addressFamily bittorrent.AddressFamily) bittorrent.SwarmMetadata

	// CollectGarbage deletes all peers that have not announced since
	// cutoff. It must be safe to call concurrently with the other methods
	// on this interface.
	CollectGarbage(cutoff time.Time) error

	// EvictUnwanted removes every swarm whose peer list is empty and whose
	// downloaded counter is zero, if the store was configured to do so.
	// It is a no-op otherwise.
	EvictUnwanted() error

	// GlobalMetrics returns an eventually-consistent snapshot of swarm
	// counts across the whole store.
	GlobalMetrics() GlobalMetrics

	// PaginatedList returns up to limit swarms, ordered by info-hash,
	// starting after the offset-th swarm.
	PaginatedList(offset, limit int) []TorrentSummary

	// ImportPersistedCompleted seeds a swarm's downloaded counter from a
	// previously-persisted value without creating peers, for use at boot
	// when PersistentCompleted is enabled.
	ImportPersistedCompleted(infoHash bittorrent.InfoHash, downloaded uint64)

	// Stop shuts the store down, releasing any background goroutines.
	Stop() error
}

// Driver constructs a PeerStore given a storage-specific configuration
// value.
type Driver func(interface{}) (PeerStore, error)

var drivers = make(map[string]Driver)

// Register makes a Driver available by the provided name. If Register is
// called twice with the same name, or if driver is nil, it panics.
func Register(name string, driver Driver) {
	if driver == nil {
		panic("storage: could not register nil Driver")
	}
	if _, dup := drivers[name]; dup {
		panic("storage: could not register duplicate Driver: " + name)
	}
	drivers[name] = driver
}

// Open creates an instance of the registered PeerStore by name.
func Open(name string, config interface{}) (PeerStore, error) {
	driver, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("storage: unknown driver %q (forgotten import?)", name)
	}
	return driver(config)
}
