// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package sql implements backend.Conn on top of PostgreSQL, persisting a
// tracker's auth keys, whitelist, and completed-download counters using a
// connect-then-migrate-versions shape, reduced to the three tables a
// tracker's policy layer actually needs.
package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/golang/glog"

	"github.com/opentracker/chihaya/backend"
	"github.com/opentracker/chihaya/bittorrent"
	"github.com/opentracker/chihaya/config"
)

const cfgVersionKey = "chihaya.schema_version"

// Conn is a backend.Conn backed by a PostgreSQL database.
type Conn struct {
	db *sql.DB
}

func (c *Conn) version() (version string, err error) {
	err = c.db.QueryRow(`SELECT val FROM config WHERE key = $1`, cfgVersionKey).Scan(&version)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return
}

func (c *Conn) setVersion(version string) error {
	_, err := c.db.Exec(`DELETE FROM config WHERE key = $1`, cfgVersionKey)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(`INSERT INTO config(key, val) VALUES ($1, $2)`, cfgVersionKey, version)
	return err
}

const latestVersion = "1"

// migrate brings a fresh or older database up to latestVersion.
func (c *Conn) migrate() error {
	if _, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS config (
		key VARCHAR(255) PRIMARY KEY,
		val VARCHAR(255) NOT NULL
	)`); err != nil {
		return err
	}

	version, err := c.version()
	if err != nil {
		return err
	}

	for version != latestVersion {
		switch version {
		case "":
			if err := c.upgradeToV1(); err != nil {
				return err
			}
			version = "1"
		default:
			return errors.New("sql: unknown schema version " + version)
		}
	}

	return nil
}

func (c *Conn) upgradeToV1() error {
	glog.Info("sql: creating schema version 1")

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tracker_keys (
			auth_key VARCHAR(255) PRIMARY KEY,
			expires_at BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS tracker_whitelist (
			infohash CHAR(40) PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS tracker_completed (
			infohash CHAR(40) PRIMARY KEY,
			downloaded BIGINT NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.Exec(stmt); err != nil {
			return err
		}
	}

	return c.setVersion("1")
}

// LoadKeys returns every auth key known to the database.
func (c *Conn) LoadKeys() ([]backend.Key, error) {
	rows, err := c.db.Query(`SELECT auth_key, expires_at FROM tracker_keys`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []backend.Key
	for rows.Next() {
		var key string
		var expiresAtUnix int64
		if err := rows.Scan(&key, &expiresAtUnix); err != nil {
			return nil, err
		}
		var expiresAt time.Time
		if expiresAtUnix > 0 {
			expiresAt = time.Unix(expiresAtUnix, 0)
		}
		keys = append(keys, backend.Key{Key: key, ExpiresAt: expiresAt})
	}
	return keys, rows.Err()
}

// SaveKey upserts an auth key.
func (c *Conn) SaveKey(key string, expiresAt time.Time) error {
	var expiresAtUnix int64
	if !expiresAt.IsZero() {
		expiresAtUnix = expiresAt.Unix()
	}
	_, err := c.db.Exec(`
		INSERT INTO tracker_keys (auth_key, expires_at) VALUES ($1, $2)
		ON CONFLICT (auth_key) DO UPDATE SET expires_at = excluded.expires_at
	`, key, expiresAtUnix)
	return err
}

// DeleteKey removes an auth key.
func (c *Conn) DeleteKey(key string) error {
	_, err := c.db.Exec(`DELETE FROM tracker_keys WHERE auth_key = $1`, key)
	return err
}

// LoadWhitelist returns every whitelisted info-hash.
func (c *Conn) LoadWhitelist() ([]bittorrent.InfoHash, error) {
	rows, err := c.db.Query(`SELECT infohash FROM tracker_whitelist`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []bittorrent.InfoHash
	for rows.Next() {
		var hex string
		if err := rows.Scan(&hex); err != nil {
			return nil, err
		}
		ih, err := bittorrent.NewInfoHashFromHex(hex)
		if err != nil {
			glog.Errorf("sql: skipping malformed whitelist row %q: %s", hex, err)
			continue
		}
		hashes = append(hashes, ih)
	}
	return hashes, rows.Err()
}

// AddWhitelisted whitelists an info-hash.
func (c *Conn) AddWhitelisted(infoHash bittorrent.InfoHash) error {
	_, err := c.db.Exec(`
		INSERT INTO tracker_whitelist (infohash) VALUES ($1)
		ON CONFLICT (infohash) DO NOTHING
	`, infoHash.HexString())
	return err
}

// RemoveWhitelisted un-whitelists an info-hash.
func (c *Conn) RemoveWhitelisted(infoHash bittorrent.InfoHash) error {
	_, err := c.db.Exec(`DELETE FROM tracker_whitelist WHERE infohash = $1`, infoHash.HexString())
	return err
}

// LoadPersistentCompleted returns the last-persisted downloaded counter for
// every swarm on record.
func (c *Conn) LoadPersistentCompleted() (map[bittorrent.InfoHash]uint64, error) {
	rows, err := c.db.Query(`SELECT infohash, downloaded FROM tracker_completed`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[bittorrent.InfoHash]uint64)
	for rows.Next() {
		var hex string
		var downloaded int64
		if err := rows.Scan(&hex, &downloaded); err != nil {
			return nil, err
		}
		ih, err := bittorrent.NewInfoHashFromHex(hex)
		if err != nil {
			glog.Errorf("sql: skipping malformed completed-counter row %q: %s", hex, err)
			continue
		}
		counts[ih] = uint64(downloaded)
	}
	return counts, rows.Err()
}

// SaveCompleted persists an info-hash's current downloaded counter.
func (c *Conn) SaveCompleted(infoHash bittorrent.InfoHash, downloaded uint64) error {
	_, err := c.db.Exec(`
		INSERT INTO tracker_completed (infohash, downloaded) VALUES ($1, $2)
		ON CONFLICT (infohash) DO UPDATE SET downloaded = excluded.downloaded
	`, infoHash.HexString(), int64(downloaded))
	return err
}

// Ping reports whether the database is reachable.
func (c *Conn) Ping() error {
	return c.db.Ping()
}

// Close closes the underlying database connection.
func (c *Conn) Close() error {
	return c.db.Close()
}

func newConn(cfg *config.DriverConfig) (backend.Conn, error) {
	url, ok := cfg.Params["url"]
	if !ok {
		return nil, config.ErrMissingRequiredParam
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("sql: failed to open database: %w", err)
	}

	c := &Conn{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sql: failed to migrate schema: %w", err)
	}

	return c, nil
}

func init() {
	backend.Register("sql", newConn)
}
