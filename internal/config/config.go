// Package config loads the server's runtime configuration from a JSON file,
// following the teacher's own config.json convention (loadRuleset in
// common.go): read the file, fall back to hard-coded defaults on any error,
// and warn rather than fail so a missing or malformed file never prevents
// the server from starting.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is every tunable the server reads at startup.
type Config struct {
	// SnapshotDir is where LocalSnapshotter writes tournament snapshots.
	SnapshotDir string `json:"snapshot_dir"`
	// EventLogDir is where EventLogger writes per-tournament/player logs.
	EventLogDir string `json:"event_log_dir"`
	// DictionaryPath points at the newline-delimited word list C5 loads.
	DictionaryPath string `json:"dictionary_path"`
	// CloudConnectionString is a Postgres DSN for the cloud mirror and
	// poller; empty disables both (local-only mode).
	CloudConnectionString string `json:"cloud_connection_string"`
	// CloudQueueSize bounds the cloud mirror's async write channel.
	CloudQueueSize int `json:"cloud_queue_size"`
	// CloudRetries is how many times a cloud write is retried before
	// falling back to the unsynced cache.
	CloudRetries int `json:"cloud_retries"`
	// UnsyncedCacheCapacity bounds how many (tournament, player, round)
	// plays the unsynced cache holds before it starts evicting synced
	// entries, or rejecting inserts once none are synced.
	UnsyncedCacheCapacity int `json:"unsynced_cache_capacity"`
	// PollInterval is the poller's sweep cadence.
	PollInterval time.Duration `json:"poll_interval_ms"`
	// RoundTimerSeconds overrides the default 180-second submission
	// deadline, mostly for tests and exhibition play.
	RoundTimerSeconds int `json:"round_timer_seconds"`
}

// Default returns the compiled-in configuration used when config.json is
// absent or unreadable.
func Default() Config {
	return Config{
		SnapshotDir:           "data/snapshots",
		EventLogDir:           "data/logs",
		DictionaryPath:        "dictionary.txt",
		CloudQueueSize:        1000,
		CloudRetries:          3,
		UnsyncedCacheCapacity: 10000,
		PollInterval:          500 * time.Millisecond,
		RoundTimerSeconds:     180,
	}
}

// rawConfig mirrors Config but with PollInterval as a plain millisecond
// integer, matching the JSON field's "_ms" name.
type rawConfig struct {
	SnapshotDir           string `json:"snapshot_dir"`
	EventLogDir           string `json:"event_log_dir"`
	DictionaryPath        string `json:"dictionary_path"`
	CloudConnectionString string `json:"cloud_connection_string"`
	CloudQueueSize        int    `json:"cloud_queue_size"`
	CloudRetries          int    `json:"cloud_retries"`
	UnsyncedCacheCapacity int    `json:"unsynced_cache_capacity"`
	PollIntervalMS        int    `json:"poll_interval_ms"`
	RoundTimerSeconds     int    `json:"round_timer_seconds"`
}

// Load reads path (typically "config.json") and overlays it on Default().
// Any error — missing file, malformed JSON — is reported on stderr and the
// defaults are used, mirroring loadRuleset's "never fail to start" posture.
func Load(path string) Config {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s is malformed (%v) — using default configuration\n", path, err)
		return cfg
	}

	if raw.SnapshotDir != "" {
		cfg.SnapshotDir = raw.SnapshotDir
	}
	if raw.EventLogDir != "" {
		cfg.EventLogDir = raw.EventLogDir
	}
	if raw.DictionaryPath != "" {
		cfg.DictionaryPath = raw.DictionaryPath
	}
	if raw.CloudConnectionString != "" {
		cfg.CloudConnectionString = raw.CloudConnectionString
	}
	if raw.CloudQueueSize > 0 {
		cfg.CloudQueueSize = raw.CloudQueueSize
	}
	if raw.CloudRetries > 0 {
		cfg.CloudRetries = raw.CloudRetries
	}
	if raw.UnsyncedCacheCapacity > 0 {
		cfg.UnsyncedCacheCapacity = raw.UnsyncedCacheCapacity
	}
	if raw.PollIntervalMS > 0 {
		cfg.PollInterval = time.Duration(raw.PollIntervalMS) * time.Millisecond
	}
	if raw.RoundTimerSeconds > 0 {
		cfg.RoundTimerSeconds = raw.RoundTimerSeconds
	}
	return cfg
}
