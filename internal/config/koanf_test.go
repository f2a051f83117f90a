// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points CONFIG_PATH at a missing file and moves into an empty
// directory so no stray config.yaml is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv(ConfigPathEnvVar, filepath.Join(dir, "missing.yaml"))
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 300*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 300s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want 30s", cfg.Server.WriteTimeout)
	}
	if cfg.Device.ConnectTimeout != 5*time.Second {
		t.Errorf("Device.ConnectTimeout = %v, want 5s", cfg.Device.ConnectTimeout)
	}
	if cfg.Cache.MaxAge != 24*time.Hour {
		t.Errorf("Cache.MaxAge = %v, want 24h", cfg.Cache.MaxAge)
	}
	if cfg.Cache.UnboundedMaxAge != time.Hour {
		t.Errorf("Cache.UnboundedMaxAge = %v, want 1h", cfg.Cache.UnboundedMaxAge)
	}
	if cfg.Cache.EpochYear != 2025 {
		t.Errorf("Cache.EpochYear = %d, want 2025", cfg.Cache.EpochYear)
	}
	if cfg.Cache.BackupRetentionDays != 7 {
		t.Errorf("Cache.BackupRetentionDays = %d, want 7", cfg.Cache.BackupRetentionDays)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"SERVER_PORT":         "server.port",
		"CACHE_MAX_AGE":       "cache.max_age",
		"LOG_LEVEL":           "logging.level",
		"SYNC_MACHINES":       "sync.machines",
		"MOCKUP_DIR":          "mockup.dir",
		"HOME":                "",
		"PATH":                "",
		"API_ALLOWED_ORIGINS": "api.allowed_origins",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	isolate(t)
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("CACHE_UNBOUNDED_MAX_AGE", "2h")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("API_ALLOWED_ORIGINS", "http://a.local, http://b.local")
	t.Setenv("SYNC_ENABLED", "true")
	t.Setenv("SYNC_MACHINES", "1@10.0.0.5:4370,2@10.0.0.6:5005")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Cache.UnboundedMaxAge != 2*time.Hour {
		t.Errorf("Cache.UnboundedMaxAge = %v, want 2h", cfg.Cache.UnboundedMaxAge)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if len(cfg.API.AllowedOrigins) != 2 || cfg.API.AllowedOrigins[1] != "http://b.local" {
		t.Errorf("API.AllowedOrigins = %v", cfg.API.AllowedOrigins)
	}
	if len(cfg.Sync.Machines) != 2 {
		t.Fatalf("Sync.Machines = %v, want 2 entries", cfg.Sync.Machines)
	}
	if m := cfg.Sync.Machines[1]; m.Number != 2 || m.Host != "10.0.0.6" || m.Port != 5005 {
		t.Errorf("Sync.Machines[1] = %+v", m)
	}

	// Unset values keep defaults.
	if cfg.Cache.MaxAge != 24*time.Hour {
		t.Errorf("Cache.MaxAge = %v, want 24h (default)", cfg.Cache.MaxAge)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	dir := isolate(t)

	content := `
server:
  port: 8888
  host: "127.0.0.1"
cache:
  dir: "/var/lib/kjtech/cache"
  epoch_year: 2024
sync:
  enabled: true
  interval: 30m
  machines:
    - number: 3
      host: 192.168.1.201
      port: 4370
logging:
  level: warn
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 8888 || cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server = %s, want 127.0.0.1:8888", cfg.Server.Addr())
	}
	if cfg.Cache.Dir != "/var/lib/kjtech/cache" || cfg.Cache.EpochYear != 2024 {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Sync.Interval != 30*time.Minute || len(cfg.Sync.Machines) != 1 || cfg.Sync.Machines[0].Number != 3 {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want error (env override)", cfg.Logging.Level)
	}
}

func TestLoadWithKoanfValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad port", map[string]string{"SERVER_PORT": "70000"}, "SERVER_PORT"},
		{"bad driver", map[string]string{"DEVICE_DRIVER": "sdk"}, "DEVICE_DRIVER"},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"sync without machines", map[string]string{"SYNC_ENABLED": "true"}, "SYNC_MACHINES"},
		{"bad machine target", map[string]string{"SYNC_MACHINES": "one@host:1"}, "SYNC_MACHINES"},
		{"same ports", map[string]string{"API_PORT": "9999", "API_HOST": "0.0.0.0"}, "API_PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadWithKoanf()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %s", err, tt.wantErr)
			}
		})
	}
}

func TestParseMachineTarget(t *testing.T) {
	got, err := ParseMachineTarget(" 12@10.1.1.1:4370 ")
	if err != nil {
		t.Fatalf("ParseMachineTarget: %v", err)
	}
	if got != (MachineTarget{Number: 12, Host: "10.1.1.1", Port: 4370}) {
		t.Errorf("ParseMachineTarget = %+v", got)
	}

	for _, bad := range []string{"10.1.1.1:4370", "x@h:1", "1@host", "1@host:p"} {
		if _, err := ParseMachineTarget(bad); err == nil {
			t.Errorf("ParseMachineTarget(%q) should fail", bad)
		}
	}
}
