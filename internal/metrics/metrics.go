// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

// Package metrics exposes Prometheus collectors for the relay server.
//
// Collectors are registered on the default registry through promauto and
// served by the status API at /metrics. Callers use the Record* helpers so
// label values stay consistent across packages.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Protocol Server Metrics
	ProtocolRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protocol_requests_total",
			Help: "Total number of protocol requests by operation and result",
		},
		[]string{"operation", "result"}, // result: "ok", "invalid", "error"
	)

	ProtocolRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "protocol_request_duration_seconds",
			Help:    "Duration of protocol requests in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"operation"},
	)

	ProtocolActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "protocol_active_connections",
			Help: "Current number of open protocol connections",
		},
	)

	ProtocolConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protocol_connections_total",
			Help: "Total number of accepted or rejected protocol connections",
		},
		[]string{"result"}, // "accepted", "rejected"
	)

	ProtocolRateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "protocol_rate_limit_hits_total",
			Help: "Total number of requests delayed by the per-connection rate limiter",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of requests served from the machine cache",
		},
		[]string{"machine"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of requests that triggered a fetch",
		},
		[]string{"machine", "reason"}, // reason: sync policy decision
	)

	CacheRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_records",
			Help: "Current number of records held by a machine cache",
		},
		[]string{"machine"},
	)

	CacheIntegrityResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_integrity_resets_total",
			Help: "Total number of caches discarded by the load integrity check",
		},
		[]string{"machine"},
	)

	CachePersistErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_persist_errors_total",
			Help: "Total number of failed cache writes",
		},
		[]string{"machine"},
	)

	// Device Metrics
	DeviceReadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "device_read_duration_seconds",
			Help:    "Duration of full log reads from a device or fixture",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"source"}, // "device", "mockup"
	)

	DeviceRecordsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_records_read_total",
			Help: "Total number of records read by outcome",
		},
		[]string{"source", "outcome"}, // outcome: "kept", "skipped", "invalid"
	)

	DeviceReadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_read_errors_total",
			Help: "Total number of failed device reads",
		},
		[]string{"source"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Prefetch Metrics
	PrefetchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefetch_runs_total",
			Help: "Total number of scheduled prefetch runs per machine",
		},
		[]string{"machine", "result"},
	)

	PrefetchLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "prefetch_last_success_timestamp",
			Help: "Unix timestamp of the last successful prefetch",
		},
		[]string{"machine"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of status API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of status API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of status events published",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total number of events dropped because a subscriber was full",
		},
	)

	JournalWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_writes_total",
			Help: "Total number of journal writes by result",
		},
		[]string{"result"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordProtocolRequest records one handled request line.
func RecordProtocolRequest(operation, result string, duration time.Duration) {
	ProtocolRequestsTotal.WithLabelValues(operation, result).Inc()
	ProtocolRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// TrackConnection adjusts the active connection gauge.
func TrackConnection(inc bool) {
	if inc {
		ProtocolActiveConnections.Inc()
		ProtocolConnectionsTotal.WithLabelValues("accepted").Inc()
	} else {
		ProtocolActiveConnections.Dec()
	}
}

// RecordRejectedConnection counts a connection refused at capacity.
func RecordRejectedConnection() {
	ProtocolConnectionsTotal.WithLabelValues("rejected").Inc()
}

// RecordCacheDecision records the sync policy outcome for a machine.
func RecordCacheDecision(machine int, fetch bool, reason string) {
	m := strconv.Itoa(machine)
	if fetch {
		CacheMisses.WithLabelValues(m, reason).Inc()
		return
	}
	CacheHits.WithLabelValues(m).Inc()
}

// SetCacheRecords publishes the current record count of a machine cache.
func SetCacheRecords(machine, count int) {
	CacheRecords.WithLabelValues(strconv.Itoa(machine)).Set(float64(count))
}

// RecordIntegrityReset counts a discarded cache.
func RecordIntegrityReset(machine int) {
	CacheIntegrityResets.WithLabelValues(strconv.Itoa(machine)).Inc()
}

// RecordPersistError counts a failed cache write.
func RecordPersistError(machine int) {
	CachePersistErrors.WithLabelValues(strconv.Itoa(machine)).Inc()
}

// RecordDeviceRead records a completed full log read.
func RecordDeviceRead(source string, kept, skipped, invalid int, duration time.Duration, err error) {
	DeviceReadDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err != nil {
		DeviceReadErrors.WithLabelValues(source).Inc()
		return
	}
	DeviceRecordsRead.WithLabelValues(source, "kept").Add(float64(kept))
	DeviceRecordsRead.WithLabelValues(source, "skipped").Add(float64(skipped))
	DeviceRecordsRead.WithLabelValues(source, "invalid").Add(float64(invalid))
}

// RecordPrefetch records one scheduled prefetch of a machine.
func RecordPrefetch(machine int, err error) {
	m := strconv.Itoa(machine)
	if err != nil {
		PrefetchRuns.WithLabelValues(m, "error").Inc()
		return
	}
	PrefetchRuns.WithLabelValues(m, "success").Inc()
	PrefetchLastSuccess.WithLabelValues(m).SetToCurrentTime()
}

// RecordAPIRequest records a status API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordJournalWrite records the outcome of a journal append.
func RecordJournalWrite(err error) {
	if err != nil {
		JournalWrites.WithLabelValues("error").Inc()
		return
	}
	JournalWrites.WithLabelValues("ok").Inc()
}
