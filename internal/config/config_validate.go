// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package config

import (
	"fmt"
	"time"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

var validDeviceDrivers = map[string]bool{
	"mockup": true,
	"none":   true,
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateJournal(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if err := validatePort(c.Server.Port, "SERVER_PORT"); err != nil {
		return err
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("SERVER_READ_TIMEOUT must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT must be positive")
	}
	if c.Server.MaxConnections < 1 {
		return fmt.Errorf("SERVER_MAX_CONNECTIONS must be at least 1")
	}
	if c.Server.MaxLineBytes < 256 {
		return fmt.Errorf("SERVER_MAX_LINE_BYTES must be at least 256")
	}
	if c.Server.RequestsPerSecond < 0 {
		return fmt.Errorf("SERVER_REQUESTS_PER_SECOND must not be negative")
	}
	if c.Server.RequestsPerSecond > 0 && c.Server.RequestBurst < 1 {
		return fmt.Errorf("SERVER_REQUEST_BURST must be at least 1 when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validateDevice() error {
	if !validDeviceDrivers[c.Device.Driver] {
		return fmt.Errorf("DEVICE_DRIVER must be one of: mockup, none")
	}
	if c.Device.ConnectTimeout <= 0 {
		return fmt.Errorf("DEVICE_CONNECT_TIMEOUT must be positive")
	}
	if c.Device.MinYear < 2000 {
		return fmt.Errorf("DEVICE_MIN_YEAR must be 2000 or later")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.Dir == "" {
		return fmt.Errorf("CACHE_DIR is required")
	}
	if c.Cache.MaxAge <= 0 || c.Cache.UnboundedMaxAge <= 0 {
		return fmt.Errorf("CACHE_MAX_AGE and CACHE_UNBOUNDED_MAX_AGE must be positive")
	}
	if c.Cache.EpochYear < 2000 {
		return fmt.Errorf("CACHE_EPOCH_YEAR must be 2000 or later")
	}
	if c.Cache.BackupRetentionDays < 1 {
		return fmt.Errorf("CACHE_BACKUP_RETENTION_DAYS must be at least 1")
	}
	return nil
}

func (c *Config) validateSync() error {
	if !c.Sync.Enabled {
		return nil
	}
	if c.Sync.Interval < time.Minute {
		return fmt.Errorf("SYNC_INTERVAL must be at least 1m")
	}
	if len(c.Sync.Machines) == 0 {
		return fmt.Errorf("SYNC_MACHINES is required when SYNC_ENABLED=true")
	}
	for _, m := range c.Sync.Machines {
		if m.Number < 1 || m.Host == "" {
			return fmt.Errorf("sync machine %d: number and host are required", m.Number)
		}
		if err := validatePort(m.Port, fmt.Sprintf("sync machine %d port", m.Number)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateAPI() error {
	if !c.API.Enabled {
		return nil
	}
	if err := validatePort(c.API.Port, "API_PORT"); err != nil {
		return err
	}
	if c.API.Port == c.Server.Port && c.API.Host == c.Server.Host {
		return fmt.Errorf("API_PORT must differ from SERVER_PORT")
	}
	return nil
}

func (c *Config) validateJournal() error {
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("JOURNAL_PATH is required when JOURNAL_ENABLED=true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

func validatePort(port int, name string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535", name)
	}
	return nil
}
