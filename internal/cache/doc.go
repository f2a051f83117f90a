// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

/*
Package cache keeps a persistent, incrementally merged copy of each
terminal's attendance log so that most requests never touch the device.

# Overview

One AttendanceCache exists per machine number. It owns:
  - the merged record set, deduplicated by enroll number and timestamp and
    sorted by the record date-time
  - a CacheState with sync metadata (last sync, date horizon, counts)
  - two files in the cache directory and a daily backup of the record file
  - a mutex that serializes every operation on that machine

Different machines never share a lock and proceed concurrently.

# Files

	data/cache/cache_machine_3.json          record array
	data/cache/cache_machine_3.state         CacheState object
	data/cache/backup/cache_machine_3_20260115.json

Both files are written through a temporary file and a rename. On load the
record count must match state.TotalRecords; otherwise the whole cache is
discarded.

# Sync Policy

GetWithCache asks Policy.ShouldFetch whether the request can be served from
memory. The rules, first match wins:

	1. empty cache                                  fetch (empty)
	2. last sync older than MaxAge (24h)            fetch (stale)
	3. to date after the latest cached day          fetch (after_horizon)
	4. from date before the earliest cached day     fetch (before_horizon)
	5. no bounds and last sync older than 1h        fetch (unbounded_stale)
	6. otherwise                                    serve (fresh)

A request inside the known horizon is served from cache even if the device
changed that period out of band (for example after a clock correction).

# Usage

	reg := cache.NewRegistry(cache.Options{Dir: cfg.Cache.Dir, Policy: policy})
	c, err := reg.Get(3)
	records, err := c.GetWithCache(ctx, fetch, from, to)

A fetch error is logged and the cached slice is still returned together
with the error, so callers can decide whether partial data is acceptable.
*/
package cache
