// Package config loads the replica configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Retention bounds the per-record history kept on disk. Zero values
// disable the corresponding limit.
type Retention struct {
	MaxEntries int           `yaml:"max_entries"`
	MaxAge     time.Duration `yaml:"max_age"`
	Interval   time.Duration `yaml:"interval"`
}

// Logging controls the structured logger.
type Logging struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level"`
}

// Config is the full replica configuration.
type Config struct {
	// PeerID identifies this replica in vector clocks and field states.
	// It must be stable across restarts; changing it makes old writes
	// look like another replica's.
	PeerID string `yaml:"peer_id"`
	// DBPath is the SQLite database file.
	DBPath    string    `yaml:"db_path"`
	Retention Retention `yaml:"retention"`
	Logging   Logging   `yaml:"logging"`
}

// Default returns the configuration used when no file is present. The
// peer id falls back to the hostname.
func Default() Config {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return Config{
		PeerID: host,
		DBPath: "accord.db",
		Retention: Retention{
			Interval: time.Hour,
		},
		Logging: Logging{Level: "info"},
	}
}

// Load reads the configuration file at path, layered over the defaults
// and under the ACCORD_PEER_ID and ACCORD_DB_PATH environment
// overrides. An empty path loads defaults and environment only; a named
// file that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("ACCORD_PEER_ID"); v != "" {
		cfg.PeerID = v
	}
	if v := os.Getenv("ACCORD_DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	if c.PeerID == "" {
		return errors.New("config: peer_id must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("config: db_path must not be empty")
	}
	if c.Retention.MaxEntries < 0 {
		return errors.New("config: retention.max_entries must not be negative")
	}
	if c.Retention.MaxAge < 0 {
		return errors.New("config: retention.max_age must not be negative")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Logging.Level)
	}
	return nil
}
