// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

// Command server runs the attendance log relay.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, config.yaml, environment)
//  2. Logging (zerolog)
//  3. Event bus and, if enabled, the BadgerDB event journal
//  4. Machine caches, reloaded from the cache directory
//  5. Device readers ("device" per device.driver, "mockup" over fixtures)
//  6. TCP relay, bound before the supervisor starts so a taken port fails fast
//  7. Prefetch scheduler, WebSocket hub and HTTP status API
//  8. Supervisor tree until SIGINT or SIGTERM
//
// Example:
//
//	SERVER_PORT=9999 DEVICE_DRIVER=mockup MOCKUP_DIR="data mockup" ./server
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/api"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/config"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/journal"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/metrics"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/server"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/supervisor"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/supervisor/services"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/sync"
	ws "github.com/Ramayana87/Server-Suncall-KJTech/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		File:      cfg.Logging.File,
		Timestamp: true,
	}); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize logging")
	}

	logging.Info().
		Str("version", api.Version).
		Str("relay_addr", cfg.Server.Addr()).
		Str("device_driver", cfg.Device.Driver).
		Str("cache_dir", cfg.Cache.Dir).
		Msg("Starting attendance relay")
	metrics.AppInfo.WithLabelValues(api.Version, runtime.Version()).Set(1)

	bus := events.NewBus()
	defer bus.Close()

	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		jrnl, err = journal.Open(journal.Config{Path: cfg.Journal.Path, TTL: cfg.Journal.TTL})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open event journal")
		}
		defer func() {
			if err := jrnl.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing event journal")
			}
		}()
	}

	caches := newCacheRegistry(cfg, bus)
	deviceSource, mockupSource := newSources(cfg, bus)
	svc := sync.NewService(caches, deviceSource, mockupSource)

	relay := server.New(server.ConfigFrom(cfg.Server), svc, bus)
	if err := relay.Listen(); err != nil {
		logging.Fatal().Err(err).Msg("Failed to bind relay listener")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout + 5*time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddRelayService(services.NewRelayServerService(relay))
	if cfg.Sync.Enabled {
		tree.AddRelayService(services.NewPrefetchService(sync.NewManager(svc, cfg.Sync, bus)))
	}
	if jrnl != nil {
		tree.AddDataService(services.NewJournalService(jrnl, bus))
	}

	hub := ws.NewHub(cfg.API.AllowedOrigins)
	tree.AddMessagingService(services.NewWebSocketHubService(hub, bus))

	if cfg.API.Enabled {
		deps := api.Deps{
			Caches:    caches,
			Relay:     relay,
			Refresher: svc,
			Breakers:  deviceSource,
			Bus:       bus,
			WebSocket: hub,
		}
		if jrnl != nil {
			deps.Journal = jrnl
		}
		tree.AddAPIService(services.NewHTTPServerService(newHTTPServer(cfg, api.NewHandler(deps)), cfg.Server.ShutdownTimeout))
	} else {
		logging.Info().Msg("Status API disabled (API_ENABLED=false)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	go trackUptime(ctx, time.Now())

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, s := range unstopped {
		logging.Warn().Str("service", s.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("Relay stopped gracefully")
}

func trackUptime(ctx context.Context, start time.Time) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		metrics.AppUptime.Set(time.Since(start).Seconds())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
