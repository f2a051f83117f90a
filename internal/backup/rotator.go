// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
)

// DayLayout is the date stamp embedded in snapshot file names.
const DayLayout = "20060102"

// DefaultRetentionDays is used when a Rotator is built with a non-positive
// retention.
const DefaultRetentionDays = 7

// Snapshot describes one backup file on disk.
type Snapshot struct {
	Path string    `json:"path"`
	Day  time.Time `json:"day"`
	Size int64     `json:"size"`
}

// Rotator copies files into a backup directory once per day and prunes
// old copies.
type Rotator struct {
	dir           string
	retentionDays int
	now           func() time.Time
}

// NewRotator creates a Rotator writing into dir.
func NewRotator(dir string, retentionDays int) *Rotator {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Rotator{dir: dir, retentionDays: retentionDays, now: time.Now}
}

// Dir returns the backup directory.
func (r *Rotator) Dir() string {
	return r.dir
}

// SnapshotPath returns the path today's snapshot of prefix would use.
func (r *Rotator) SnapshotPath(prefix string) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s.json", prefix, r.now().Format(DayLayout)))
}

// Snapshot copies src into today's snapshot for prefix. It returns false
// without error when src does not exist or today's snapshot is already
// present. A new snapshot triggers Prune.
func (r *Rotator) Snapshot(src, prefix string) (bool, error) {
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", src, err)
	}

	dst := r.SnapshotPath(prefix)
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return false, fmt.Errorf("create backup directory: %w", err)
	}
	if err := copyFile(src, dst); err != nil {
		return false, err
	}

	logging.Info().
		Str("backup", filepath.Base(dst)).
		Msg("Backup created")

	if _, err := r.Prune(prefix); err != nil {
		logging.Warn().Err(err).Str("prefix", prefix).Msg("Failed to prune old backups")
	}
	return true, nil
}

// List returns the snapshots for prefix, oldest first. Files whose name
// does not carry a valid day stamp are ignored.
func (r *Rotator) List(prefix string) ([]Snapshot, error) {
	matches, err := filepath.Glob(filepath.Join(r.dir, prefix+"_*.json"))
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	snapshots := make([]Snapshot, 0, len(matches))
	for _, path := range matches {
		day, ok := parseSnapshotDay(filepath.Base(path), prefix)
		if !ok {
			continue
		}
		s := Snapshot{Path: path, Day: day}
		if info, err := os.Stat(path); err == nil {
			s.Size = info.Size()
		}
		snapshots = append(snapshots, s)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Day.Before(snapshots[j].Day)
	})
	return snapshots, nil
}

func parseSnapshotDay(name, prefix string) (time.Time, bool) {
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix+"_"), ".json")
	if len(stamp) != len(DayLayout) {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(DayLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// copyFile writes src to a temporary file next to dst and renames it into
// place, so a crash never leaves a truncated snapshot.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src) //nolint:gosec // path is built from the cache directory
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".backup-*")
	if err != nil {
		return fmt.Errorf("create temp backup: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync backup: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close backup: %w", err)
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("rename backup: %w", err)
	}
	return nil
}
