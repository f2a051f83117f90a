// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

// Package backup keeps daily snapshots of the machine cache files.
//
// # Overview
//
// Before a cache file is overwritten, the Rotator copies the current file
// into a backup directory under a name carrying the calendar day:
//
//	backup/cache_machine_3_20260115.json
//
// At most one snapshot is taken per prefix per day. Taking a new snapshot
// also prunes snapshots older than the retention window (7 days by
// default). The day embedded in the file name decides the age, so copying
// the directory elsewhere does not reset retention.
//
// # Usage
//
//	r := backup.NewRotator(filepath.Join(cacheDir, "backup"), 7)
//	if _, err := r.Snapshot(cacheFile, "cache_machine_3"); err != nil {
//	    logging.Warn().Err(err).Msg("Backup failed")
//	}
//
// Snapshot failures never block the write they precede; callers log and
// continue.
package backup
