// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

/*
Package models defines the data structures shared across the attendance relay.

Key Components:

  - LogRecord: one attendance/access event as reported by a terminal, with
    derived keys (TimeKey, IDKey, DedupKey) and display decoders
  - GrantFlag: boolean access outcome encoded as 1/0 on the wire
  - CacheState: per-machine synchronization metadata persisted next to the
    cached record set
  - CacheStats: read-only snapshot of a machine cache for status surfaces
  - APIResponse: envelope used by the HTTP status API

Wire Compatibility:

LogRecord field names follow the terminal SDK naming (vEnrollNumber, vYear,
...) because existing consumers decode them case-sensitively:

	{"no":1,"vEnrollNumber":42,"vGranted":1,"vMethod":4,"vDoorMode":1,
	 "vFunNumber":40,"vSensor":0,"vYear":2025,"vMonth":3,"vDay":14,
	 "vHour":8,"vMinute":1,"vSecond":7,"userName":""}

The vSecond field packs two values: bits 0-7 hold the seconds and bit 8 is
the "photo captured" flag. Every derived timestamp masks with 0xFF first.
*/
package models
