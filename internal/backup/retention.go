// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
)

// shouldDeleteByAge returns true if the snapshot is older than the
// retention window.
func shouldDeleteByAge(s Snapshot, retentionDays int, now time.Time) bool {
	if retentionDays <= 0 {
		return false
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	return s.Day.Before(cutoff)
}

// Prune deletes snapshots for prefix that fall outside the retention
// window and returns how many were removed.
func (r *Rotator) Prune(prefix string) (int, error) {
	snapshots, err := r.List(prefix)
	if err != nil {
		return 0, err
	}

	now := r.now()
	deleted := 0
	var firstErr error
	for _, s := range snapshots {
		if !shouldDeleteByAge(s, r.retentionDays, now) {
			continue
		}
		if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
			logging.Warn().Err(err).Str("backup", filepath.Base(s.Path)).Msg("Failed to delete backup")
			if firstErr == nil {
				firstErr = fmt.Errorf("delete %s: %w", s.Path, err)
			}
			continue
		}
		deleted++
		logging.Info().Str("backup", filepath.Base(s.Path)).Msg("Deleted old backup")
	}
	return deleted, firstErr
}
