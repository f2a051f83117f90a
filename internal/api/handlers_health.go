// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package api

import (
	"net/http"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
)

func (h *Handler) listenerRunning() bool {
	return h.deps.Relay != nil && h.deps.Relay.Addr() != nil
}

// Health returns the overall relay status. It answers 200 even when
// degraded so that dashboards can always read the body.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	running := h.listenerRunning()
	status := "healthy"
	if !running {
		status = "degraded"
	}

	health := models.HealthStatus{
		Status:          status,
		Version:         Version,
		ListenerRunning: running,
		JournalEnabled:  h.deps.Journal != nil,
		Uptime:          time.Since(h.startTime).Seconds(),
	}
	if h.deps.Relay != nil {
		health.ActiveConns = int64(h.deps.Relay.ActiveConnections())
	}
	if h.deps.Caches != nil {
		health.CachedMachines = len(h.deps.Caches.Machines())
	}
	if h.deps.Bus != nil {
		health.EventSubscribers = h.deps.Bus.SubscriberCount()
	}

	respondSuccess(w, http.StatusOK, health)
}

// HealthLive answers 200 while the process is alive.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady answers 200 once the relay listener is bound, 503 before.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if !h.listenerRunning() {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Relay listener is not running", nil)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"ready": true,
		"addr":  h.deps.Relay.Addr().String(),
	})
}
