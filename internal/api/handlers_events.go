// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package api

import (
	"net/http"
	"strconv"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/journal"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/validation"
)

// EventsRequest holds the journal query parameters.
type EventsRequest struct {
	Machine int    `validate:"omitempty,min=1,max=9999"`
	Type    string `validate:"omitempty,max=64"`
	Since   string `validate:"omitempty,wiretime"`
	Limit   int    `validate:"omitempty,min=1,max=1000"`
}

// EventsResponse is the body of GET /events.
type EventsResponse struct {
	Events []events.Event `json:"events"`
	Count  int            `json:"count"`
	Stats  journal.Stats  `json:"journal"`
}

func queryInt(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

// Events lists journal entries, newest first.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if h.deps.Journal == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Event journal is disabled", nil)
		return
	}

	machine, ok := queryInt(r, "machine")
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "machine must be an integer", nil)
		return
	}
	limit, ok := queryInt(r, "limit")
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "limit must be an integer", nil)
		return
	}

	req := EventsRequest{
		Machine: machine,
		Type:    r.URL.Query().Get("type"),
		Since:   r.URL.Query().Get("since"),
		Limit:   limit,
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	q := journal.Query{Machine: req.Machine, Type: req.Type, Limit: req.Limit}
	if since, _ := models.ParseWireTime(req.Since); since != nil {
		q.Since = *since
	}

	list, err := h.deps.Journal.List(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to read event journal", err)
		return
	}
	respondSuccess(w, http.StatusOK, EventsResponse{
		Events: list,
		Count:  len(list),
		Stats:  h.deps.Journal.Stats(),
	})
}
