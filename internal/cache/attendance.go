// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/backup"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/metrics"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
)

// DefaultEpochYear is the lower year bound of the load integrity report.
const DefaultEpochYear = 2025

// ErrFetchFailed wraps an error returned by a FetchFunc.
var ErrFetchFailed = errors.New("fetch failed")

// FetchFunc retrieves records for a date range. Nil bounds are unbounded.
type FetchFunc func(ctx context.Context, from, to *time.Time) ([]models.LogRecord, error)

// Options configures caches created by a Registry or New.
type Options struct {
	Dir                 string
	Policy              Policy
	EpochYear           int
	BackupRetentionDays int
	Events              events.Publisher
}

func (o Options) withDefaults() Options {
	if o.Dir == "" {
		o.Dir = filepath.Join("data", "cache")
	}
	if o.Policy.MaxAge <= 0 {
		o.Policy.MaxAge = DefaultMaxAge
	}
	if o.Policy.UnboundedMaxAge <= 0 {
		o.Policy.UnboundedMaxAge = DefaultUnboundedMaxAge
	}
	if o.EpochYear <= 0 {
		o.EpochYear = DefaultEpochYear
	}
	if o.BackupRetentionDays <= 0 {
		o.BackupRetentionDays = backup.DefaultRetentionDays
	}
	o.Events = events.OrDiscard(o.Events)
	return o
}

// AttendanceCache is the merged record set of one machine.
type AttendanceCache struct {
	machine   int
	prefix    string
	dataPath  string
	statePath string
	policy    Policy
	epochYear int
	rotator   *backup.Rotator
	events    events.Publisher

	mu      sync.Mutex
	records []models.LogRecord
	state   models.CacheState
}

// New creates the cache for machine and loads any persisted copy.
func New(machine int, opts Options) (*AttendanceCache, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	prefix := fmt.Sprintf("cache_machine_%d", machine)
	c := &AttendanceCache{
		machine:   machine,
		prefix:    prefix,
		dataPath:  filepath.Join(opts.Dir, prefix+".json"),
		statePath: filepath.Join(opts.Dir, prefix+".state"),
		policy:    opts.Policy,
		epochYear: opts.EpochYear,
		rotator:   backup.NewRotator(filepath.Join(opts.Dir, "backup"), opts.BackupRetentionDays),
		events:    opts.Events,
	}

	c.mu.Lock()
	c.loadLocked()
	c.mu.Unlock()
	return c, nil
}

// Machine returns the machine number the cache belongs to.
func (c *AttendanceCache) Machine() int {
	return c.machine
}

// GetWithCache returns the records in [from, to], fetching from the source
// first when the sync policy requires it. The whole decide, fetch, merge and
// persist sequence runs under the machine lock.
//
// When fetch fails the cached records are still returned alongside an error
// wrapping ErrFetchFailed.
func (c *AttendanceCache) GetWithCache(ctx context.Context, fetch FetchFunc, from, to *time.Time) ([]models.LogRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	log := logging.Ctx(ctx).With().Int("machine", c.machine).Logger()

	shouldFetch, reason := c.policy.ShouldFetch(c.state, from, to)
	metrics.RecordCacheDecision(c.machine, shouldFetch, string(reason))

	if !shouldFetch {
		result, invalid := FilterByRange(c.records, from, to)
		log.Info().
			Int("returned", len(result)).
			Int("invalid_dates", invalid).
			Dur("duration", time.Since(start)).
			Msg("Cache HIT")
		c.events.Publish(events.New(events.TypeCacheHit, c.machine, "served from cache").
			With("returned", len(result)))
		return result, nil
	}

	log.Info().Str("reason", string(reason)).Msg("Cache MISS: fetching new data")
	c.events.Publish(events.New(events.TypeCacheMiss, c.machine, "fetching from source").
		With("reason", string(reason)))

	if _, err := c.syncLocked(ctx, fetch, from, to); err != nil {
		result, _ := FilterByRange(c.records, from, to)
		return result, err
	}

	result, invalid := FilterByRange(c.records, from, to)
	log.Info().
		Int("returned", len(result)).
		Int("invalid_dates", invalid).
		Dur("duration", time.Since(start)).
		Msg("Served after sync")
	return result, nil
}

// Refresh fetches [from, to] from the source and merges it regardless of
// the sync policy. It returns the number of records added.
func (c *AttendanceCache) Refresh(ctx context.Context, fetch FetchFunc, from, to *time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncLocked(ctx, fetch, from, to)
}

// syncLocked runs fetch, merges a non-empty result, updates the state and
// persists. An empty result leaves the state untouched.
func (c *AttendanceCache) syncLocked(ctx context.Context, fetch FetchFunc, from, to *time.Time) (int, error) {
	log := logging.Ctx(ctx).With().Int("machine", c.machine).Logger()

	fresh, err := fetch(ctx, from, to)
	if err != nil {
		log.Warn().Err(err).Msg("Fetch failed, serving cached data")
		c.events.Publish(events.New(events.TypeFetchFailed, c.machine, err.Error()))
		return 0, fmt.Errorf("%w: machine %d: %w", ErrFetchFailed, c.machine, err)
	}

	if len(fresh) == 0 {
		log.Info().Msg("No new data from source")
		return 0, nil
	}

	added, duplicates := c.mergeLocked(fresh)
	c.updateStateLocked()

	if err := c.persistLocked(); err != nil {
		metrics.RecordPersistError(c.machine)
		log.Error().Err(err).Msg("Failed to save cache")
	}

	log.Info().
		Int("fetched", len(fresh)).
		Int("added", added).
		Int("duplicates", duplicates).
		Int("total", c.state.TotalRecords).
		Msg("Synced")
	c.events.Publish(events.New(events.TypeCacheSynced, c.machine, "merged new records").
		With("added", added).
		With("total", c.state.TotalRecords))
	return added, nil
}

// Merge adds records whose dedup key is not yet present, keeps the set
// sorted and updates the state when anything was added. It does not
// persist. It returns how many records were added and how many were
// skipped as duplicates.
func (c *AttendanceCache) Merge(records []models.LogRecord) (added, duplicates int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	added, duplicates = c.mergeLocked(records)
	if added > 0 {
		c.updateStateLocked()
	}
	return added, duplicates
}

func (c *AttendanceCache) mergeLocked(incoming []models.LogRecord) (added, duplicates int) {
	c.records, added, duplicates = MergeRecords(c.records, incoming)
	if duplicates > 0 {
		logging.Debug().Int("machine", c.machine).Int("duplicates", duplicates).Msg("Skipped duplicate records")
	}
	return added, duplicates
}

// MergeRecords appends the incoming records whose dedup key is absent from
// existing (first seen wins, including within incoming) and sorts the
// result by date-time. existing may be reused as the backing array.
func MergeRecords(existing, incoming []models.LogRecord) (merged []models.LogRecord, added, duplicates int) {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for i := range existing {
		seen[existing[i].DedupKey()] = struct{}{}
	}

	merged = existing
	for i := range incoming {
		key := incoming[i].DedupKey()
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, incoming[i])
		added++
	}

	slices.SortStableFunc(merged, func(a, b models.LogRecord) int {
		return models.CompareRecords(&a, &b)
	})
	return merged, added, duplicates
}

// FilterByRange returns the records inside [from, to], both inclusive. With
// no bounds it returns a copy of every record. When a bound is set, records
// whose components do not form a calendar date are excluded and counted.
func FilterByRange(records []models.LogRecord, from, to *time.Time) (result []models.LogRecord, invalid int) {
	if from == nil && to == nil {
		return slices.Clone(records), 0
	}

	result = make([]models.LogRecord, 0)
	for i := range records {
		t, ok := records[i].Time()
		if !ok {
			invalid++
			continue
		}
		if from != nil && t.Before(*from) {
			continue
		}
		if to != nil && t.After(*to) {
			continue
		}
		result = append(result, records[i])
	}
	return result, invalid
}

func (c *AttendanceCache) updateStateLocked() {
	now := time.Now()
	c.state.TotalRecords = len(c.records)
	c.state.LastSyncTime = now
	c.state.CachedAtTimestamp = now
	metrics.SetCacheRecords(c.machine, len(c.records))

	if len(c.records) == 0 {
		return
	}

	var earliest, latest *time.Time
	maxNo := c.state.LastKnownSequenceNo
	for i := range c.records {
		if c.records[i].No > maxNo {
			maxNo = c.records[i].No
		}
		t, ok := c.records[i].Time()
		if !ok {
			continue
		}
		if earliest == nil || t.Before(*earliest) {
			e := t
			earliest = &e
		}
		if latest == nil || t.After(*latest) {
			l := t
			latest = &l
		}
	}
	c.state.LastKnownSequenceNo = maxNo
	if earliest != nil {
		c.state.EarliestRecordDate = earliest
		c.state.LatestRecordDate = latest
	}
}

// Clear empties the cache and deletes both files. Backups are kept.
func (c *AttendanceCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearLocked()
}

func (c *AttendanceCache) clearLocked() error {
	c.records = nil
	c.state = models.CacheState{}
	metrics.SetCacheRecords(c.machine, 0)

	var errs []error
	for _, path := range []string{c.dataPath, c.statePath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		logging.Error().Err(err).Int("machine", c.machine).Msg("Failed to clear cache files")
		return fmt.Errorf("clear cache files: %w", err)
	}

	logging.Info().Int("machine", c.machine).Msg("Cache cleared")
	c.events.Publish(events.New(events.TypeCacheCleared, c.machine, "cache cleared"))
	return nil
}

// Stats returns a snapshot of the cache metadata.
func (c *AttendanceCache) Stats() models.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := models.CacheStats{
		MachineNumber:       c.machine,
		TotalRecords:        c.state.TotalRecords,
		EarliestRecordDate:  c.state.EarliestRecordDate,
		LatestRecordDate:    c.state.LatestRecordDate,
		LastKnownSequenceNo: c.state.LastKnownSequenceNo,
	}
	if !c.state.LastSyncTime.IsZero() {
		t := c.state.LastSyncTime
		stats.LastSyncTime = &t
	}
	if !c.state.CachedAtTimestamp.IsZero() {
		t := c.state.CachedAtTimestamp
		stats.CachedAt = &t
	}
	return stats
}

// State returns a copy of the sync metadata.
func (c *AttendanceCache) State() models.CacheState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Len returns the number of cached records.
func (c *AttendanceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Backups lists the daily snapshots of this machine's record file.
func (c *AttendanceCache) Backups() ([]backup.Snapshot, error) {
	return c.rotator.List(c.prefix)
}
