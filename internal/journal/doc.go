// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

// Package journal keeps a bounded history of relay events in BadgerDB.
//
// The journal subscribes to the event bus and stores every event with a
// native Badger TTL, so old entries expire without a compaction pass. It
// backs the /api/v1/events endpoint and survives restarts, which lets an
// operator see what the relay did before the last crash.
//
// Keys are ordered by time:
//
//	event:<unix nanos, big endian>:<event id>
//
// # Usage
//
//	j, err := journal.Open(journal.Config{Path: "data/journal", TTL: 72 * time.Hour})
//	if err != nil {
//	    return err
//	}
//	defer j.Close()
//
//	feed, cancel := bus.Subscribe(256)
//	defer cancel()
//	go j.Run(ctx, feed)
//
//	recent, err := j.List(ctx, journal.Query{Machine: 3, Limit: 50})
//
// The journal is an observer. A failed write is logged and counted and
// never reaches the protocol path.
package journal
