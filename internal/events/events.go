// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

// Package events carries status notifications from the protocol server and
// the cache to observers (the WebSocket hub and the journal).
//
// Producers call Publish and never block: a subscriber whose buffer is full
// misses the event and the drop is counted. Nothing in the core depends on
// an observer being present.
package events

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current event schema version.
const SchemaVersion = 1

// Event types.
const (
	TypeConnOpened    = "conn.opened"
	TypeConnClosed    = "conn.closed"
	TypeRequest       = "protocol.request"
	TypeCacheHit      = "cache.hit"
	TypeCacheMiss     = "cache.miss"
	TypeCacheSynced   = "cache.synced"
	TypeCacheCleared  = "cache.cleared"
	TypeCacheReset    = "cache.integrity_reset"
	TypeDeviceRead    = "device.read"
	TypeFetchFailed   = "device.fetch_failed"
	TypeBreakerState  = "breaker.state"
	TypePrefetch      = "sync.prefetch"
	TypeServerStarted = "server.started"
	TypeServerStopped = "server.stopped"
)

// Event is one status notification.
type Event struct {
	SchemaVersion int                    `json:"schema_version"`
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	Timestamp     time.Time              `json:"timestamp"`
	Machine       int                    `json:"machine,omitempty"`
	ConnID        string                 `json:"conn_id,omitempty"`
	Message       string                 `json:"message,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
}

// New creates an event of the given type stamped with an id and the
// current time.
func New(eventType string, machine int, message string) Event {
	return Event{
		SchemaVersion: SchemaVersion,
		ID:            uuid.NewString(),
		Type:          eventType,
		Timestamp:     time.Now().UTC(),
		Machine:       machine,
		Message:       message,
	}
}

// With returns a copy of e with key set in Data.
func (e Event) With(key string, value interface{}) Event {
	data := make(map[string]interface{}, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	e.Data = data
	return e
}

// Publisher accepts events.
type Publisher interface {
	Publish(Event)
}

type discard struct{}

func (discard) Publish(Event) {}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

// OrDiscard returns p, or Discard when p is nil.
func OrDiscard(p Publisher) Publisher {
	if p == nil {
		return Discard
	}
	return p
}
