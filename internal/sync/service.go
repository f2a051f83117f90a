// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/cache"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/device"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/protocol"
)

// Service answers protocol requests.
type Service struct {
	caches *cache.Registry
	device Source
	mockup Source
}

// NewService wires the cache registry and the two record sources.
func NewService(caches *cache.Registry, dev, mockup Source) *Service {
	return &Service{caches: caches, device: dev, mockup: mockup}
}

// Handle dispatches req. For GETLOGS a failed device read still returns the
// cached records together with an error wrapping cache.ErrFetchFailed.
func (s *Service) Handle(ctx context.Context, req protocol.Request) ([]models.LogRecord, error) {
	switch req.Op {
	case protocol.OpGetLogs:
		return s.GetLogs(ctx, req.Target, req.From, req.To)
	case protocol.OpGetUsers:
		return s.users(ctx, s.device, req)
	case protocol.OpMockupGetLogs:
		return s.mockup.Collect(ctx, req.Target, req.From, req.To)
	case protocol.OpMockupGetUsers:
		return s.users(ctx, s.mockup, req)
	default:
		return nil, fmt.Errorf("unsupported operation %s", req.Op)
	}
}

// GetLogs returns the records of target in [from, to] through the cache.
func (s *Service) GetLogs(ctx context.Context, target device.Target, from, to *time.Time) ([]models.LogRecord, error) {
	c, err := s.caches.Get(target.Machine)
	if err != nil {
		return nil, err
	}
	return c.GetWithCache(ctx, s.fetcher(target), from, to)
}

// Refresh forces a device read of target and merges it into the cache.
func (s *Service) Refresh(ctx context.Context, target device.Target, from, to *time.Time) (int, error) {
	c, err := s.caches.Get(target.Machine)
	if err != nil {
		return 0, err
	}
	return c.Refresh(ctx, s.fetcher(target), from, to)
}

func (s *Service) fetcher(target device.Target) cache.FetchFunc {
	return func(ctx context.Context, from, to *time.Time) ([]models.LogRecord, error) {
		return s.device.Collect(ctx, target, from, to)
	}
}

func (s *Service) users(ctx context.Context, src Source, req protocol.Request) ([]models.LogRecord, error) {
	records, err := src.Collect(ctx, req.Target, req.From, req.To)
	if err != nil {
		return nil, err
	}
	users := UniqueFingerprintUsers(records)
	logging.Ctx(ctx).Debug().
		Str("source", src.Name()).
		Int("machine", req.Target.Machine).
		Int("records", len(records)).
		Int("users", len(users)).
		Msg("Resolved fingerprint users")
	return users, nil
}
