// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

/*
Package sync connects protocol requests to attendance data.

Key Components:

  - Service: dispatches a decoded protocol.Request. GETLOGS goes through the
    per-machine cache, GETUSERS reads the device live, and the MOCKUP_*
    operations read fixture files directly.
  - DeviceSource: runs device.Collect for a target behind a per-machine
    circuit breaker and records read metrics.
  - Manager: optional scheduled prefetch that refreshes configured machines
    through the same cache path as client requests.

Circuit Breaker:

Each machine gets its own sony/gobreaker breaker. After
breaker.consecutive_failures failed reads the breaker opens and requests
for that machine are answered from cache without touching the device until
breaker.open_timeout elapses. Other machines are unaffected.

Usage Example:

	src := sync.NewDeviceSource("device", reader, cfg.Device, cfg.Breaker, bus)
	svc := sync.NewService(registry, src, mockup, bus)
	records, err := svc.Handle(ctx, req)
*/
package sync
