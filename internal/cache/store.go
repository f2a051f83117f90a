// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/metrics"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
)

// ErrIntegrity reports persisted files that disagree with each other.
var ErrIntegrity = errors.New("cache integrity check failed")

// Persist writes the record set and state to disk, taking the daily backup
// of the previous record file first.
func (c *AttendanceCache) Persist() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistLocked()
}

func (c *AttendanceCache) persistLocked() error {
	if _, err := c.rotator.Snapshot(c.dataPath, c.prefix); err != nil {
		logging.Warn().Err(err).Int("machine", c.machine).Msg("Failed to backup cache")
	}

	records := c.records
	if records == nil {
		records = []models.LogRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := writeFileAtomic(c.dataPath, data); err != nil {
		return err
	}

	state, err := json.MarshalIndent(c.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := writeFileAtomic(c.statePath, state); err != nil {
		return err
	}

	logging.Debug().Int("machine", c.machine).Int("records", len(records)).Msg("Cache saved")
	return nil
}

// Load replaces the in-memory cache with the persisted copy. A count
// mismatch between the files resets the cache and returns ErrIntegrity.
func (c *AttendanceCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

func (c *AttendanceCache) loadLocked() error {
	log := logging.With().Int("machine", c.machine).Logger()

	if !fileExists(c.dataPath) || !fileExists(c.statePath) {
		log.Info().Msg("No existing cache found, starting fresh")
		c.records = nil
		c.state = models.CacheState{}
		return nil
	}

	records, state, err := c.readFiles()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load cache")
		c.records = nil
		c.state = models.CacheState{}
		return err
	}

	if err := c.verifyIntegrity(records, state); err != nil {
		log.Error().Err(err).Msg("Cache integrity check failed, clearing cache")
		metrics.RecordIntegrityReset(c.machine)
		c.events.Publish(events.New(events.TypeCacheReset, c.machine, err.Error()))
		if clearErr := c.clearLocked(); clearErr != nil {
			return errors.Join(err, clearErr)
		}
		return err
	}

	c.records = records
	c.state = state
	metrics.SetCacheRecords(c.machine, len(records))
	log.Info().
		Int("records", len(records)).
		Time("last_sync", state.LastSyncTime).
		Msg("Cache loaded")
	return nil
}

func (c *AttendanceCache) readFiles() ([]models.LogRecord, models.CacheState, error) {
	var records []models.LogRecord
	var state models.CacheState

	data, err := os.ReadFile(c.dataPath)
	if err != nil {
		return nil, state, fmt.Errorf("read records: %w", err)
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, state, fmt.Errorf("decode records: %w", err)
	}

	raw, err := os.ReadFile(c.statePath)
	if err != nil {
		return nil, state, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, state, fmt.Errorf("decode state: %w", err)
	}
	return records, state, nil
}

// verifyIntegrity fails on a count mismatch. Records with years outside
// [epochYear, now+1] are only reported.
func (c *AttendanceCache) verifyIntegrity(records []models.LogRecord, state models.CacheState) error {
	if len(records) != state.TotalRecords {
		return fmt.Errorf("%w: count mismatch (data: %d, state: %d)", ErrIntegrity, len(records), state.TotalRecords)
	}

	maxYear := time.Now().Year() + 1
	implausible := 0
	for i := range records {
		if records[i].Year < c.epochYear || records[i].Year > maxYear {
			implausible++
		}
	}
	if implausible > 0 {
		logging.Warn().
			Int("machine", c.machine).
			Int("records", implausible).
			Int("epoch_year", c.epochYear).
			Msg("Integrity check warning: records with implausible dates")
	}
	return nil
}

// writeFileAtomic writes data to a temporary file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
