// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

/*
Package services adapts relay components to suture's Serve(ctx) error
pattern.

  - RelayServerService: the TCP protocol server (Listen + Serve, restartable)
  - HTTPServerService: *http.Server with graceful shutdown
  - PrefetchService: a Start/Stop scheduler such as sync.Manager
  - WebSocketHubService and JournalService: event bus consumers that take
    a fresh subscription on every (re)start

Every wrapper implements fmt.Stringer so suture logs it by name.
*/
package services
