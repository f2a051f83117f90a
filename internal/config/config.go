// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

// Package config loads server configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values for every setting
//  2. Config File: optional YAML file (CONFIG_PATH or config.yaml)
//  3. Environment Variables: override any mapped setting
//
// Example config.yaml:
//
//	server:
//	  port: 9999
//	cache:
//	  dir: data/cache
//	  max_age: 24h
//	  unbounded_max_age: 1h
//	mockup:
//	  dir: "data mockup"
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Device  DeviceConfig  `koanf:"device"`
	Cache   CacheConfig   `koanf:"cache"`
	Mockup  MockupConfig  `koanf:"mockup"`
	Sync    SyncConfig    `koanf:"sync"`
	Breaker BreakerConfig `koanf:"breaker"`
	API     APIConfig     `koanf:"api"`
	Journal JournalConfig `koanf:"journal"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds the TCP protocol listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxConnections  int           `koanf:"max_connections"`
	MaxLineBytes    int           `koanf:"max_line_bytes"`

	// RequestsPerSecond limits requests on a single connection. 0 disables.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	RequestBurst      int     `koanf:"request_burst"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DeviceConfig controls how terminals are read.
type DeviceConfig struct {
	// Driver selects the Device Reader: "mockup" replays fixture files,
	// "none" rejects every device request.
	Driver         string        `koanf:"driver"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`

	// MinYear drops device records older than this year during collection.
	MinYear int `koanf:"min_year"`
}

// CacheConfig controls the per-machine persistent cache.
type CacheConfig struct {
	Dir string `koanf:"dir"`

	// MaxAge forces a refetch when the last sync is older than this.
	MaxAge time.Duration `koanf:"max_age"`

	// UnboundedMaxAge is the shorter ceiling for requests without dates.
	UnboundedMaxAge time.Duration `koanf:"unbounded_max_age"`

	// EpochYear is the lower year bound used by the load integrity report.
	EpochYear int `koanf:"epoch_year"`

	BackupRetentionDays int `koanf:"backup_retention_days"`
}

// MockupConfig locates fixture files for the MOCKUP_* operations.
type MockupConfig struct {
	Dir string `koanf:"dir"`
}

// SyncConfig controls scheduled prefetch of configured machines.
type SyncConfig struct {
	Enabled  bool            `koanf:"enabled"`
	Interval time.Duration   `koanf:"interval"`
	Lookback time.Duration   `koanf:"lookback"`
	Machines []MachineTarget `koanf:"machines"`
}

// MachineTarget addresses one terminal.
type MachineTarget struct {
	Number int    `koanf:"number"`
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
}

// BreakerConfig tunes the per-machine device circuit breaker.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `koanf:"consecutive_failures"`
	OpenTimeout         time.Duration `koanf:"open_timeout"`
	HalfOpenRequests    uint32        `koanf:"half_open_requests"`
}

// APIConfig holds the HTTP status API settings.
type APIConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Host           string   `koanf:"host"`
	Port           int      `koanf:"port"`
	RateLimit      int      `koanf:"rate_limit"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Addr returns host:port for the HTTP server.
func (a APIConfig) Addr() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// JournalConfig controls the event journal.
type JournalConfig struct {
	Enabled bool          `koanf:"enabled"`
	Path    string        `koanf:"path"`
	TTL     time.Duration `koanf:"ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	Caller bool `koanf:"caller"`

	// File receives a JSON copy of every entry when set.
	File string `koanf:"file"`
}

// Load reads configuration from defaults, the optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	cfg, err := LoadWithKoanf()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
