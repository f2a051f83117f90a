// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/config"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/device"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/metrics"
)

// DefaultPrefetchInterval is used when sync.interval is unset.
const DefaultPrefetchInterval = 30 * time.Minute

// Refresher forces a cache refresh of one target.
type Refresher interface {
	Refresh(ctx context.Context, target device.Target, from, to *time.Time) (int, error)
}

// Manager periodically refreshes the caches of configured machines so
// that client requests find them warm.
type Manager struct {
	refresher Refresher
	targets   []device.Target
	interval  time.Duration
	lookback  time.Duration
	events    events.Publisher
	now       func() time.Time

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	lastRun  time.Time
}

// NewManager creates a prefetch manager for cfg.Machines.
func NewManager(refresher Refresher, cfg config.SyncConfig, pub events.Publisher) *Manager {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPrefetchInterval
	}
	targets := make([]device.Target, 0, len(cfg.Machines))
	for _, m := range cfg.Machines {
		targets = append(targets, device.Target{Machine: m.Number, Host: m.Host, Port: m.Port})
	}

	logging.Info().
		Int("machines", len(targets)).
		Dur("interval", interval).
		Dur("lookback", cfg.Lookback).
		Msg("Prefetch manager config loaded")

	return &Manager{
		refresher: refresher,
		targets:   targets,
		interval:  interval,
		lookback:  cfg.Lookback,
		events:    events.OrDiscard(pub),
		now:       time.Now,
	}
}

// Start runs an initial prefetch in the background and then one every
// interval until ctx is done or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("prefetch manager is already running")
	}
	m.running = true
	m.stopChan = make(chan struct{})

	logging.Info().Msg("Starting prefetch manager...")
	m.wg.Add(1)
	go m.loop(ctx, m.stopChan)
	return nil
}

// Stop ends the loop and waits for an in-flight prefetch to finish.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()
	logging.Info().Msg("Prefetch manager stopped")
	return nil
}

func (m *Manager) loop(ctx context.Context, stop <-chan struct{}) {
	defer m.wg.Done()

	_ = m.RunOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			_ = m.RunOnce(ctx)
		}
	}
}

// RunOnce refreshes every target in turn and joins the failures. One
// machine failing does not stop the others.
func (m *Manager) RunOnce(ctx context.Context) error {
	var from *time.Time
	if m.lookback > 0 {
		f := m.now().Add(-m.lookback)
		from = &f
	}

	var errs []error
	for _, target := range m.targets {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		added, err := m.refresher.Refresh(ctx, target, from, nil)
		metrics.RecordPrefetch(target.Machine, err)
		if err != nil {
			logging.Warn().Err(err).Int("machine", target.Machine).Msg("Prefetch failed")
			errs = append(errs, err)
			continue
		}
		m.events.Publish(events.New(events.TypePrefetch, target.Machine, "prefetch complete").
			With("added", added))
	}

	m.mu.Lock()
	m.lastRun = m.now()
	m.mu.Unlock()
	return errors.Join(errs...)
}

// LastRun returns when RunOnce last completed.
func (m *Manager) LastRun() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRun
}
