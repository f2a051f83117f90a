// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package sync

import (
	"context"
	"sync"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/config"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/device"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/metrics"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
)

// Source reads the filtered log of one terminal.
type Source interface {
	Name() string
	Collect(ctx context.Context, target device.Target, from, to *time.Time) ([]models.LogRecord, error)
}

// DeviceSource reads terminals through a device.Reader. Reads of the same
// machine are serialized; different machines proceed in parallel.
type DeviceSource struct {
	name     string
	reader   device.Reader
	opts     device.CollectOptions
	breakers *breakerSet
	events   events.Publisher

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

// NewDeviceSource creates a source named name (used in metrics and breaker
// names) over reader.
func NewDeviceSource(name string, reader device.Reader, devCfg config.DeviceConfig, brkCfg config.BreakerConfig, pub events.Publisher) *DeviceSource {
	return &DeviceSource{
		name:   name,
		reader: reader,
		opts: device.CollectOptions{
			MinYear:        devCfg.MinYear,
			ConnectTimeout: devCfg.ConnectTimeout,
		},
		breakers: newBreakerSet(name, brkCfg, pub),
		events:   events.OrDiscard(pub),
		locks:    make(map[int]*sync.Mutex),
	}
}

// Name returns the source name.
func (s *DeviceSource) Name() string {
	return s.name
}

// Collect reads the records of target inside [from, to].
func (s *DeviceSource) Collect(ctx context.Context, target device.Target, from, to *time.Time) ([]models.LogRecord, error) {
	lock := s.machineLock(target.Machine)
	lock.Lock()

	// An abandoned connect keeps the machine locked until it resolves.
	var settled <-chan struct{}
	defer func() {
		if settled == nil {
			lock.Unlock()
			return
		}
		go func() {
			<-settled
			lock.Unlock()
		}()
	}()

	opts := s.opts
	opts.From, opts.To = from, to

	start := time.Now()
	res, err := s.breakers.execute(target.Machine, func() (device.CollectResult, error) {
		r, err := device.Collect(ctx, s.reader, target, opts)
		settled = r.Settled
		return r, err
	})
	elapsed := time.Since(start)
	metrics.RecordDeviceRead(s.name, len(res.Records), res.Skipped, res.Invalid, elapsed, err)

	if err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("source", s.name).
			Int("machine", target.Machine).
			Dur("duration", elapsed).
			Msg("Device read failed")
		return nil, err
	}

	s.events.Publish(events.New(events.TypeDeviceRead, target.Machine, "read "+s.name+" log").
		With("source", s.name).
		With("total", res.Total).
		With("kept", len(res.Records)).
		With("duration_ms", elapsed.Milliseconds()))
	return res.Records, nil
}

// BreakerState reports the circuit breaker state of machine.
func (s *DeviceSource) BreakerState(machine int) string {
	return s.breakers.state(machine)
}

func (s *DeviceSource) machineLock(machine int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[machine]
	if !ok {
		l = &sync.Mutex{}
		s.locks[machine] = l
	}
	return l
}
