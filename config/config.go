// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package config implements the configuration for a BitTorrent tracker
package config

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"
)

// ErrMissingRequiredParam is used by drivers to indicate that an entry required
// to be within the DriverConfig.Params map is not present.
var ErrMissingRequiredParam = errors.New("A parameter that was required by a driver is not present")

// Duration wraps a time.Duration and adds JSON marshalling.
type Duration struct{ time.Duration }

// MarshalJSON transforms a duration into JSON.
func (d *Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON transform JSON into a Duration.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var str string
	err := json.Unmarshal(b, &str)
	d.Duration, err = time.ParseDuration(str)
	return err
}

// DriverConfig is the configuration used to connect to a backend.Driver.
type DriverConfig struct {
	Name   string            `json:"driver"`
	Params map[string]string `json:"params,omitempty"`
}

// Mode selects how the tracker authenticates and authorizes announces and
// scrapes.
type Mode string

const (
	// Public allows any peer to announce for any info-hash.
	Public Mode = "public"
	// Listed requires the info-hash to be on the whitelist.
	Listed Mode = "listed"
	// Private requires a valid, unexpired auth key in the announce path.
	Private Mode = "private"
	// PrivateListed requires both a valid auth key and a whitelisted
	// info-hash.
	PrivateListed Mode = "private_listed"
)

// RequiresAuth reports whether m requires a valid auth key on announce.
func (m Mode) RequiresAuth() bool {
	return m == Private || m == PrivateListed
}

// RequiresWhitelist reports whether m requires the info-hash to be
// whitelisted.
func (m Mode) RequiresWhitelist() bool {
	return m == Listed || m == PrivateListed
}

// NetConfig is the configuration used to tune networking behaviour.
type NetConfig struct {
	AllowIPSpoofing bool   `json:"allowIPSpoofing"`
	RealIPHeader    string `json:"realIPHeader"`
	OnReverseProxy  bool   `json:"onReverseProxy"`
	ExternalIP      string `json:"externalIP"`
	NumListeners    int    `json:"listeners"`
}

// StatsConfig is the configuration used to record runtime statistics.
type StatsConfig struct {
	BufferSize        int      `json:"statsBufferSize"`
	IncludeMem        bool     `json:"includeMemStats"`
	VerboseMem        bool     `json:"verboseMemStats"`
	MemUpdateInterval Duration `json:"memStatsInterval"`
}

// WhitelistConfig is the configuration used enable and store a whitelist of
// acceptable info-hashes.
type WhitelistConfig struct {
	ClientWhitelistEnabled bool     `json:"clientWhitelistEnabled"`
	ClientWhitelist        []string `json:"clientWhitelist,omitempty"`
}

// TrackerConfig is the configuration for tracker functionality.
type TrackerConfig struct {
	Mode Mode `json:"mode"`

	CreateOnAnnounce       bool     `json:"createOnAnnounce"`
	PersistentCompleted    bool     `json:"persistentCompleted"`
	RemovePeerlessTorrents bool     `json:"removePeerlessTorrents"`
	Announce               Duration `json:"announce"`
	MinAnnounce            Duration `json:"minAnnounce"`
	MaxPeerTimeout         Duration `json:"maxPeerTimeout"`
	ReapInterval           Duration `json:"reapInterval"`
	NumWantFallback        int      `json:"defaultNumWant"`
	MaxNumWant             int      `json:"maxNumWant"`
	MaxScrapeInfoHashes    int      `json:"maxScrapeInfoHashes"`
	TorrentMapShards       int      `json:"torrentMapShards"`

	ConnectionCookieLifetime Duration `json:"connectionCookieLifetime"`
	UDPMaxInFlight           int      `json:"udpMaxInFlight"`
	UDPShutdownGracePeriod   Duration `json:"udpShutdownGracePeriod"`

	NetConfig
	WhitelistConfig
}

// APIConfig is the configuration for an HTTP JSON API server.
type APIConfig struct {
	ListenAddr     string   `json:"apiListenAddr"`
	RequestTimeout Duration `json:"apiRequestTimeout"`
	ReadTimeout    Duration `json:"apiReadTimeout"`
	WriteTimeout   Duration `json:"apiWriteTimeout"`
	ListenLimit    int      `json:"apiListenLimit"`
}

// HTTPConfig is the configuration for the HTTP protocol.
type HTTPConfig struct {
	ListenAddr     string   `json:"httpListenAddr"`
	RequestTimeout Duration `json:"httpRequestTimeout"`
	ReadTimeout    Duration `json:"httpReadTimeout"`
	WriteTimeout   Duration `json:"httpWriteTimeout"`
	ListenLimit    int      `json:"httpListenLimit"`
}

// UDPConfig is the configuration for the UDP protocol.
type UDPConfig struct {
	ListenAddr     string `json:"udpListenAddr"`
	ReadBufferSize int    `json:"udpReadBufferSize"`
}

// Config is the global configuration for an instance of Chihaya.
type Config struct {
	TrackerConfig
	APIConfig
	HTTPConfig
	UDPConfig
	DriverConfig
	StatsConfig
}

// DefaultConfig is a configuration that can be used as a fallback value.
var DefaultConfig = Config{
	TrackerConfig: TrackerConfig{
		Mode: Public,

		CreateOnAnnounce:       true,
		PersistentCompleted:    false,
		RemovePeerlessTorrents: true,
		Announce:               Duration{30 * time.Minute},
		MinAnnounce:            Duration{15 * time.Minute},
		MaxPeerTimeout:         Duration{20 * time.Minute},
		ReapInterval:           Duration{60 * time.Second},
		NumWantFallback:        50,
		MaxNumWant:             100,
		MaxScrapeInfoHashes:    74,
		TorrentMapShards:       1024,

		ConnectionCookieLifetime: Duration{120 * time.Second},
		UDPMaxInFlight:           50,
		UDPShutdownGracePeriod:   Duration{90 * time.Second},

		NetConfig: NetConfig{
			AllowIPSpoofing: false,
			NumListeners:    1,
		},

		WhitelistConfig: WhitelistConfig{
			ClientWhitelistEnabled: false,
		},
	},

	APIConfig: APIConfig{
		ListenAddr:     "localhost:6880",
		RequestTimeout: Duration{10 * time.Second},
		ReadTimeout:    Duration{10 * time.Second},
		WriteTimeout:   Duration{10 * time.Second},
	},

	HTTPConfig: HTTPConfig{
		ListenAddr:     "localhost:6881",
		RequestTimeout: Duration{10 * time.Second},
		ReadTimeout:    Duration{10 * time.Second},
		WriteTimeout:   Duration{10 * time.Second},
	},

	UDPConfig: UDPConfig{
		ListenAddr:     "localhost:6882",
		ReadBufferSize: 65507,
	},

	DriverConfig: DriverConfig{
		Name: "noop",
	},

	StatsConfig: StatsConfig{
		BufferSize: 0,
		IncludeMem: true,
		VerboseMem: false,

		MemUpdateInterval: Duration{5 * time.Second},
	},
}

// Open is a shortcut to open a file, read it, and generate a Config.
// It supports relative and absolute paths. Given "", it returns DefaultConfig.
func Open(path string) (*Config, error) {
	if path == "" {
		return &DefaultConfig, nil
	}

	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return conf, nil
}

// Decode casts an io.Reader into a JSONDecoder and decodes it into a *Config.
func Decode(r io.Reader) (*Config, error) {
	conf := DefaultConfig
	err := json.NewDecoder(r).Decode(&conf)
	return &conf, err
}
