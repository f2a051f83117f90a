// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package services

import (
	"context"
	"fmt"
)

// StartStopManager matches *sync.Manager.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// PrefetchService adapts the prefetch scheduler's Start/Stop lifecycle.
type PrefetchService struct {
	manager StartStopManager
	name    string
}

// NewPrefetchService wraps manager.
func NewPrefetchService(manager StartStopManager) *PrefetchService {
	return &PrefetchService{manager: manager, name: "prefetch-manager"}
}

// Serve implements suture.Service. Stop waits for an in-flight prefetch
// round to finish.
func (s *PrefetchService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("prefetch manager start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("prefetch manager stop failed: %w", err)
	}
	return ctx.Err()
}

func (s *PrefetchService) String() string {
	return s.name
}
