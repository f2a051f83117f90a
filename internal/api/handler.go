// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/cache"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/device"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/journal"
)

// Version is reported by the health endpoint. Set at build time with
// -ldflags "-X .../internal/api.Version=...".
var Version = "dev"

// Refresher forces a device read into a machine cache.
type Refresher interface {
	Refresh(ctx context.Context, target device.Target, from, to *time.Time) (int, error)
}

// BreakerReporter reports the device circuit breaker state of a machine.
type BreakerReporter interface {
	BreakerState(machine int) string
}

// EventStore serves journal history.
type EventStore interface {
	List(ctx context.Context, q journal.Query) ([]events.Event, error)
	Stats() journal.Stats
}

// RelayStatus reports on the TCP relay listener.
type RelayStatus interface {
	Addr() net.Addr
	ActiveConnections() int
}

// SubscriberCounter reports how many observers the event bus feeds.
type SubscriberCounter interface {
	SubscriberCount() int
}

// Deps are the collaborators of the API handlers. Caches and Relay are
// required; the rest may be nil and the matching endpoints degrade.
type Deps struct {
	Caches    *cache.Registry
	Relay     RelayStatus
	Refresher Refresher
	Breakers  BreakerReporter
	Journal   EventStore
	Bus       SubscriberCounter
	WebSocket http.Handler
}

// Handler holds the API handlers.
type Handler struct {
	deps      Deps
	startTime time.Time
}

// NewHandler creates the handlers.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps, startTime: time.Now()}
}
