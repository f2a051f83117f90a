// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

/*
Package supervisor runs the relay's long-lived services under suture v4.

The tree isolates failures by layer:

	RootSupervisor ("suncall-relay")
	├── DataSupervisor ("data-layer")
	│   └── JournalService (if journal.enabled)
	├── RelaySupervisor ("relay-layer")
	│   ├── RelayServerService (TCP protocol listener)
	│   └── PrefetchService (if sync.enabled)
	├── MessagingSupervisor ("messaging-layer")
	│   └── WebSocketHubService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService (if api.enabled)

A crashed hub or journal is restarted without touching open relay
connections, and a failing HTTP listener never stops the TCP relay.

Supervisor events (start, failure, backoff) are logged through
sutureslog into the zerolog backed slog handler from internal/logging.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddRelayService(services.NewRelayServerService(srv))
	tree.AddAPIService(services.NewHTTPServerService(httpSrv, 10*time.Second))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}
*/
package supervisor
