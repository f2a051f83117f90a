// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/backup"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/cache"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/device"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/validation"
)

// CacheDetail is the per-machine view returned by GET /cache/{machine}.
type CacheDetail struct {
	models.CacheStats
	BreakerState string            `json:"breaker_state,omitempty"`
	Backups      []backup.Snapshot `json:"backups"`
}

// RefreshRequest holds the parameters of a forced refresh.
type RefreshRequest struct {
	Machine int    `validate:"min=1,max=9999"`
	Host    string `validate:"required,hostname|ip"`
	Port    int    `validate:"min=1,max=65535"`
	From    string `validate:"omitempty,wiretime"`
	To      string `validate:"omitempty,wiretime"`
}

// RefreshResult reports the outcome of a forced refresh.
type RefreshResult struct {
	Machine int `json:"machine"`
	Fetched int `json:"fetched"`
	Total   int `json:"total_records"`
}

func machineParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	machine, err := strconv.Atoi(chi.URLParam(r, "machine"))
	if err != nil || machine < 1 {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "machine must be a positive integer", nil)
		return 0, false
	}
	return machine, true
}

func (h *Handler) lookupCache(w http.ResponseWriter, r *http.Request) (*cache.AttendanceCache, bool) {
	machine, ok := machineParam(w, r)
	if !ok {
		return nil, false
	}
	c, ok := h.deps.Caches.Lookup(machine)
	if !ok {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "no cache for machine "+strconv.Itoa(machine), nil)
		return nil, false
	}
	return c, true
}

// CacheList returns stats for every machine cache.
func (h *Handler) CacheList(w http.ResponseWriter, r *http.Request) {
	stats := h.deps.Caches.Stats()
	if stats == nil {
		stats = []models.CacheStats{}
	}
	respondSuccess(w, http.StatusOK, stats)
}

// CacheGet returns stats, backups and breaker state for one machine.
func (h *Handler) CacheGet(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookupCache(w, r)
	if !ok {
		return
	}

	detail := CacheDetail{CacheStats: c.Stats(), Backups: []backup.Snapshot{}}
	if h.deps.Breakers != nil {
		detail.BreakerState = h.deps.Breakers.BreakerState(c.Machine())
	}
	snapshots, err := c.Backups()
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to list backups", err)
		return
	}
	if snapshots != nil {
		detail.Backups = snapshots
	}
	respondSuccess(w, http.StatusOK, detail)
}

// CacheClear empties one machine cache.
func (h *Handler) CacheClear(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookupCache(w, r)
	if !ok {
		return
	}
	if err := c.Clear(); err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to clear cache", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"machine": c.Machine(), "cleared": true})
}

// CacheClearAll empties every machine cache.
func (h *Handler) CacheClearAll(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.deps.Caches.ClearAll()
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to clear some caches", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"cleared": cleared})
}

// CacheRefresh reads the device and merges the result into the cache,
// ignoring the freshness policy. Query parameters: host, port (default
// 4370), from, to.
func (h *Handler) CacheRefresh(w http.ResponseWriter, r *http.Request) {
	if h.deps.Refresher == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Refresh is not available", nil)
		return
	}
	machine, ok := machineParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	req := RefreshRequest{
		Machine: machine,
		Host:    q.Get("host"),
		Port:    device.DefaultPort,
		From:    q.Get("from"),
		To:      q.Get("to"),
	}
	if raw := q.Get("port"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "port must be an integer", nil)
			return
		}
		req.Port = port
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	// Both bounds passed the wiretime check above.
	from, _ := models.ParseWireTime(req.From)
	to, _ := models.ParseWireTime(req.To)
	target := device.Target{Machine: req.Machine, Host: req.Host, Port: req.Port}

	fetched, err := h.deps.Refresher.Refresh(r.Context(), target, from, to)
	if err != nil {
		if errors.Is(err, cache.ErrFetchFailed) {
			respondError(w, http.StatusBadGateway, ErrCodeDeviceUnavailable, "Device read failed", err)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Refresh failed", err)
		return
	}

	result := RefreshResult{Machine: machine, Fetched: fetched}
	if c, ok := h.deps.Caches.Lookup(machine); ok {
		result.Total = c.Len()
	}
	respondSuccess(w, http.StatusOK, result)
}
