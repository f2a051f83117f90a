// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

/*
Package websocket streams relay status events to browser and CLI clients.

The Hub consumes an events feed (normally a subscription on events.Bus)
and fans each event out to every connected Client. A client may narrow the
stream to one terminal with the machine query parameter:

	ws://host:8080/ws?machine=3

Message format:

	{"type": "cache.synced", "data": {"id": "...", "machine": 3, ...}}

Clients can send {"type": "ping"} and receive {"type": "pong"}. The server
also sends protocol-level pings every 54 seconds and drops clients that do
not answer within 60 seconds.

A slow client whose send buffer fills up is disconnected rather than
slowing the hub down.
*/
package websocket
