// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the chi router for the status API.
func NewRouter(h *Handler, cfg MiddlewareConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg.AllowedOrigins))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		r.Use(APISecurityHeaders)
		r.Use(PrometheusMetrics)
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Route("/health", func(r chi.Router) {
			r.Get("/", h.Health)
			r.Get("/live", h.HealthLive)
			r.Get("/ready", h.HealthReady)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/", h.CacheList)
			r.Delete("/", h.CacheClearAll)
			r.Get("/{machine}", h.CacheGet)
			r.Delete("/{machine}", h.CacheClear)
			r.Post("/{machine}/refresh", h.CacheRefresh)
		})

		r.Get("/events", h.Events)
	})

	if h.deps.WebSocket != nil {
		r.Get("/ws", h.deps.WebSocket.ServeHTTP)
	}
	r.Handle("/metrics", promhttp.Handler())

	return r
}
