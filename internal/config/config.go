// Package config loads runtime configuration for applications embedding
// the sync engine.
//
// Sources and precedence:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags:
//
//	-a string   base URL of the package distribution CDN
//	-d string   sqlite DSN of the local database
//	-k string   path to the pinned package signing key (PEM)
//	-t int      risk request timeout (seconds)
package config

import "time"

// Config holds the runtime settings of the sync engine.
type Config struct {
	// CDNBaseURL is the root of the package distribution CDN.
	CDNBaseURL string

	// Countries to synchronize, e.g. ["DE", "EUR"].
	Countries []string

	// DatabaseDSN is the sqlite DSN of the local package database.
	DatabaseDSN string

	// PublicKeyPath points to the PEM file with the pinned package
	// signing key.
	PublicKeyPath string

	// RiskRequestTimeout bounds one full risk cycle wall-clock.
	RiskRequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.CDNBaseURL = "https://svc90.main.px.t-online.de"
	c.Countries = []string{"DE", "EUR"}
	c.DatabaseDSN = "file:exposurekit.db"
	c.PublicKeyPath = "signing.pem"
	c.RiskRequestTimeout = 5 * time.Minute
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
