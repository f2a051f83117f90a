// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package main

import (
	"net/http"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/api"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/cache"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/config"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/device"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/sync"
)

// newCacheRegistry builds the machine caches and reloads those persisted
// by a previous run.
func newCacheRegistry(cfg *config.Config, pub events.Publisher) *cache.Registry {
	caches := cache.NewRegistry(cache.Options{
		Dir: cfg.Cache.Dir,
		Policy: cache.Policy{
			MaxAge:          cfg.Cache.MaxAge,
			UnboundedMaxAge: cfg.Cache.UnboundedMaxAge,
		},
		EpochYear:           cfg.Cache.EpochYear,
		BackupRetentionDays: cfg.Cache.BackupRetentionDays,
		Events:              pub,
	})

	found, err := caches.Discover()
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to scan cache directory")
	}
	logging.Info().Int("machines", found).Str("dir", caches.Dir()).Msg("Machine caches loaded")
	for _, s := range caches.Stats() {
		logging.Info().Msg(s.String())
	}
	return caches
}

// newDeviceReader selects the Device Reader for GETLOGS and GETUSERS.
func newDeviceReader(cfg *config.Config) device.Reader {
	switch cfg.Device.Driver {
	case "mockup":
		logging.Info().Str("dir", cfg.Mockup.Dir).Msg("Device driver: fixture replay")
		return device.NewFixtureReader(cfg.Mockup.Dir)
	default:
		logging.Warn().Str("driver", cfg.Device.Driver).Msg("No device driver available, device requests will fail")
		return device.Unavailable{}
	}
}

// newSources returns the device source and the fixture source used by the
// MOCKUP_* operations. Each has its own breakers.
func newSources(cfg *config.Config, pub events.Publisher) (*sync.DeviceSource, *sync.DeviceSource) {
	dev := sync.NewDeviceSource("device", newDeviceReader(cfg), cfg.Device, cfg.Breaker, pub)
	mock := sync.NewDeviceSource("mockup", device.NewFixtureReader(cfg.Mockup.Dir), cfg.Device, cfg.Breaker, pub)
	return dev, mock
}

func newHTTPServer(cfg *config.Config, h *api.Handler) *http.Server {
	mw := api.DefaultMiddlewareConfig()
	mw.AllowedOrigins = cfg.API.AllowedOrigins
	mw.RateLimitRequests = cfg.API.RateLimit

	return &http.Server{
		Addr:              cfg.API.Addr(),
		Handler:           api.NewRouter(h, mw),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
