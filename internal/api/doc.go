// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

/*
Package api provides the HTTP status API that runs next to the TCP relay.

The relay protocol itself is line based TCP (see internal/server). This
package exposes operator views of the same process over HTTP:

 1. Health (/api/v1/health, /live, /ready)
 2. Caches (/api/v1/cache):
    - GET    /api/v1/cache                   stats for every machine cache
    - DELETE /api/v1/cache                   clear every cache
    - GET    /api/v1/cache/{machine}         stats, backups and breaker state
    - DELETE /api/v1/cache/{machine}         clear one cache
    - POST   /api/v1/cache/{machine}/refresh force a device read into the cache
 3. Events (/api/v1/events): journal history with machine, type, since
    and limit filters
 4. WebSocket (/ws): live event stream
 5. Prometheus metrics (/metrics)

Every JSON response uses models.APIResponse:

	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}

Middleware: request IDs with logging context, real IP, panic recovery,
CORS (go-chi/cors), per-IP rate limiting (go-chi/httprate) and request
metrics.
*/
package api
