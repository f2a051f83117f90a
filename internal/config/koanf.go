// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/suncall-kjtech/config.yaml",
}

// ConfigPathEnvVar names the environment variable holding the config path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              9999,
			ReadTimeout:       300 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxConnections:    64,
			MaxLineBytes:      64 * 1024,
			RequestsPerSecond: 5,
			RequestBurst:      10,
		},
		Device: DeviceConfig{
			Driver:         "mockup",
			ConnectTimeout: 5 * time.Second,
			MinYear:        2024,
		},
		Cache: CacheConfig{
			Dir:                 "data/cache",
			MaxAge:              24 * time.Hour,
			UnboundedMaxAge:     time.Hour,
			EpochYear:           2025,
			BackupRetentionDays: 7,
		},
		Mockup: MockupConfig{
			Dir: "data mockup",
		},
		Sync: SyncConfig{
			Enabled:  false,
			Interval: time.Hour,
			Lookback: 30 * 24 * time.Hour,
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: 3,
			OpenTimeout:         time.Minute,
			HalfOpenRequests:    1,
		},
		API: APIConfig{
			Enabled:   true,
			Host:      "127.0.0.1",
			Port:      9998,
			RateLimit: 120,
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    "data/journal",
			TTL:     7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Defaults
//  2. Config File (optional YAML)
//  3. Environment Variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	if err := processMachineTargets(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing config path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"api.allowed_origins",
}

// processSliceFields splits comma-separated env values for slice settings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := splitCSV(strVal)
		if len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// processMachineTargets expands SYNC_MACHINES, written as
// "1@10.0.0.5:4370,2@10.0.0.6:4370", into the structured list.
func processMachineTargets(k *koanf.Koanf) error {
	strVal, ok := k.Get("sync.machines").(string)
	if !ok {
		return nil
	}
	targets := make([]interface{}, 0)
	for _, item := range splitCSV(strVal) {
		t, err := ParseMachineTarget(item)
		if err != nil {
			return fmt.Errorf("SYNC_MACHINES: %w", err)
		}
		targets = append(targets, map[string]interface{}{
			"number": t.Number,
			"host":   t.Host,
			"port":   t.Port,
		})
	}
	if err := k.Set("sync.machines", targets); err != nil {
		return fmt.Errorf("failed to set sync.machines: %w", err)
	}
	return nil
}

// ParseMachineTarget parses "number@host:port".
func ParseMachineTarget(s string) (MachineTarget, error) {
	num, addr, ok := strings.Cut(strings.TrimSpace(s), "@")
	if !ok {
		return MachineTarget{}, fmt.Errorf("machine target %q: want number@host:port", s)
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return MachineTarget{}, fmt.Errorf("machine target %q: bad number: %w", s, err)
	}
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return MachineTarget{}, fmt.Errorf("machine target %q: missing port", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return MachineTarget{}, fmt.Errorf("machine target %q: bad port: %w", s, err)
	}
	return MachineTarget{Number: n, Host: host, Port: port}, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envTransformFunc maps environment variable names to koanf paths. Unmapped
// variables are dropped so the process environment cannot leak into config.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"server_host":                "server.host",
		"server_port":                "server.port",
		"server_read_timeout":        "server.read_timeout",
		"server_write_timeout":       "server.write_timeout",
		"server_shutdown_timeout":    "server.shutdown_timeout",
		"server_max_connections":     "server.max_connections",
		"server_max_line_bytes":      "server.max_line_bytes",
		"server_requests_per_second": "server.requests_per_second",
		"server_request_burst":       "server.request_burst",

		"device_driver":          "device.driver",
		"device_connect_timeout": "device.connect_timeout",
		"device_min_year":        "device.min_year",

		"cache_dir":                   "cache.dir",
		"cache_max_age":               "cache.max_age",
		"cache_unbounded_max_age":     "cache.unbounded_max_age",
		"cache_epoch_year":            "cache.epoch_year",
		"cache_backup_retention_days": "cache.backup_retention_days",

		"mockup_dir": "mockup.dir",

		"sync_enabled":  "sync.enabled",
		"sync_interval": "sync.interval",
		"sync_lookback": "sync.lookback",
		"sync_machines": "sync.machines",

		"breaker_consecutive_failures": "breaker.consecutive_failures",
		"breaker_open_timeout":         "breaker.open_timeout",
		"breaker_half_open_requests":   "breaker.half_open_requests",

		"api_enabled":         "api.enabled",
		"api_host":            "api.host",
		"api_port":            "api.port",
		"api_rate_limit":      "api.rate_limit",
		"api_allowed_origins": "api.allowed_origins",

		"journal_enabled": "journal.enabled",
		"journal_path":    "journal.path",
		"journal_ttl":     "journal.ttl",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
		"log_file":   "logging.file",
	}

	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
