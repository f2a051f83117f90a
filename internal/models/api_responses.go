// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package models

import "time"

// APIResponse is the envelope returned by every status API endpoint.
//
//	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}
//	{"status":"error","error":{"code":"NOT_FOUND","message":"..."},"metadata":{...}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus is returned by the health endpoint.
type HealthStatus struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	ListenerRunning  bool    `json:"listener_running"`
	ActiveConns      int64   `json:"active_connections"`
	CachedMachines   int     `json:"cached_machines"`
	JournalEnabled   bool    `json:"journal_enabled"`
	EventSubscribers int     `json:"event_subscribers"`
	Uptime           float64 `json:"uptime_seconds"`
}
