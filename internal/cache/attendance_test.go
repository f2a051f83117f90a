// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
)

func rec(enroll, y, m, d, h, mi, s int) models.LogRecord {
	return models.LogRecord{
		EnrollNumber: enroll,
		Granted:      true,
		Method:       models.MethodByFinger,
		Year:         y,
		Month:        m,
		Day:          d,
		Hour:         h,
		Minute:       mi,
		Second:       s,
	}
}

func newTestCache(t *testing.T, dir string) *AttendanceCache {
	t.Helper()
	c, err := New(1, Options{Dir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func januaryBatch() []models.LogRecord {
	return []models.LogRecord{
		rec(12, 2024, 1, 15, 8, 0, 5),
		rec(7, 2024, 1, 3, 17, 45, 0),
		rec(12, 2024, 1, 3, 8, 1, 0),
		rec(3, 2024, 1, 28, 9, 30, 59),
		rec(7, 2024, 1, 15, 8, 0, 5),
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	c := newTestCache(t, t.TempDir())
	batch := januaryBatch()

	added, dups := c.Merge(batch)
	if added != len(batch) || dups != 0 {
		t.Fatalf("first merge added=%d dups=%d", added, dups)
	}
	added, dups = c.Merge(batch)
	if added != 0 || dups != len(batch) {
		t.Errorf("second merge added=%d dups=%d", added, dups)
	}
	if c.Len() != len(batch) {
		t.Errorf("Len = %d, want %d", c.Len(), len(batch))
	}
	if c.State().TotalRecords != len(batch) {
		t.Errorf("TotalRecords = %d", c.State().TotalRecords)
	}
}

func TestMergeDuplicatesLeaveStateUnchanged(t *testing.T) {
	c := newTestCache(t, t.TempDir())
	batch := januaryBatch()
	c.Merge(batch)
	before := c.State()

	time.Sleep(10 * time.Millisecond)
	if added, _ := c.Merge(batch); added != 0 {
		t.Fatalf("added = %d, want 0", added)
	}
	if added, _ := c.Merge(nil); added != 0 {
		t.Fatalf("added = %d, want 0", added)
	}

	after := c.State()
	if !after.LastSyncTime.Equal(before.LastSyncTime) || !after.CachedAtTimestamp.Equal(before.CachedAtTimestamp) {
		t.Errorf("state advanced: last sync %v -> %v", before.LastSyncTime, after.LastSyncTime)
	}
}

func TestMergeFirstSeenWins(t *testing.T) {
	first := rec(5, 2024, 1, 1, 8, 0, 0)
	first.UserName = "first"
	second := rec(5, 2024, 1, 1, 8, 0, 0)
	second.UserName = "second"

	merged, added, dups := MergeRecords(nil, []models.LogRecord{first, second})
	if added != 1 || dups != 1 || merged[0].UserName != "first" {
		t.Errorf("merged=%v added=%d dups=%d", merged, added, dups)
	}

	// The photo flag does not change the dedup key.
	photo := rec(5, 2024, 1, 1, 8, 0, 0x100)
	merged, added, _ = MergeRecords(merged, []models.LogRecord{photo})
	if added != 0 || len(merged) != 1 {
		t.Errorf("photo-flagged duplicate added: %v", merged)
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	batch := januaryBatch()
	reversed := make([]models.LogRecord, len(batch))
	for i := range batch {
		reversed[len(batch)-1-i] = batch[i]
	}
	rotated := append(append([]models.LogRecord{}, batch[2:]...), batch[:2]...)

	a, _, _ := MergeRecords(nil, batch)
	b, _, _ := MergeRecords(nil, reversed)
	cc, _, _ := MergeRecords(nil, rotated)

	for i := range a {
		if a[i] != b[i] || a[i] != cc[i] {
			t.Fatalf("order differs at %d: %v / %v / %v", i, a[i], b[i], cc[i])
		}
	}
	for i := 1; i < len(a); i++ {
		if models.CompareRecords(&a[i-1], &a[i]) > 0 {
			t.Errorf("records not ascending at %d", i)
		}
	}
	if a[0].Day != 3 || a[0].EnrollNumber != 12 || a[len(a)-1].Day != 28 {
		t.Errorf("unexpected order: %v", a)
	}
}

func TestFilterByRange(t *testing.T) {
	records := []models.LogRecord{
		rec(1, 2023, 12, 31, 10, 0, 0),
		rec(2, 2024, 1, 15, 10, 0, 0),
		rec(3, 2024, 2, 1, 10, 0, 0),
	}
	from := localTime(2024, 1, 1, 0, 0, 0)
	to := localTime(2024, 1, 31, 23, 59, 59)

	got, invalid := FilterByRange(records, from, to)
	if len(got) != 1 || got[0].EnrollNumber != 2 || invalid != 0 {
		t.Errorf("FilterByRange = %v (invalid %d), want only the 2024-01-15 record", got, invalid)
	}
}

func TestFilterByRangeBounds(t *testing.T) {
	records := []models.LogRecord{
		rec(1, 2024, 1, 1, 0, 0, 0),
		rec(2, 2024, 1, 31, 23, 59, 59),
		rec(3, 2024, 2, 30, 8, 0, 0), // not a calendar date
	}

	all, invalid := FilterByRange(records, nil, nil)
	if len(all) != 3 || invalid != 0 {
		t.Errorf("unbounded returned %d (invalid %d), want all 3", len(all), invalid)
	}
	all[0].UserName = "mutated"
	if records[0].UserName != "" {
		t.Error("unbounded result must be a copy")
	}

	got, invalid := FilterByRange(records, localTime(2024, 1, 1, 0, 0, 0), localTime(2024, 1, 31, 23, 59, 59))
	if len(got) != 2 {
		t.Errorf("inclusive bounds returned %d, want 2", len(got))
	}
	if invalid != 1 {
		t.Errorf("invalid = %d, want 1", invalid)
	}

	got, _ = FilterByRange(records, localTime(2024, 1, 2, 0, 0, 0), nil)
	if len(got) != 1 || got[0].EnrollNumber != 2 {
		t.Errorf("from-only returned %v", got)
	}
}

func TestPersistAndReload(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, dir)
	batch := januaryBatch()
	batch[0].No = 41
	c.Merge(batch)
	if err := c.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	reloaded := newTestCache(t, dir)
	if reloaded.Len() != len(batch) {
		t.Fatalf("reloaded Len = %d, want %d", reloaded.Len(), len(batch))
	}
	state := reloaded.State()
	if state.LastKnownSequenceNo != 41 {
		t.Errorf("LastKnownSequenceNo = %d, want 41", state.LastKnownSequenceNo)
	}
	if state.EarliestRecordDate == nil || state.EarliestRecordDate.Day() != 3 {
		t.Errorf("EarliestRecordDate = %v", state.EarliestRecordDate)
	}
	if state.LatestRecordDate == nil || state.LatestRecordDate.Day() != 28 {
		t.Errorf("LatestRecordDate = %v", state.LatestRecordDate)
	}
}

func TestPersistCreatesDailyBackup(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, dir)
	c.Merge(januaryBatch()[:1])
	if err := c.Persist(); err != nil {
		t.Fatal(err)
	}
	if backups, _ := c.Backups(); len(backups) != 0 {
		t.Fatalf("first persist has nothing to back up, got %v", backups)
	}

	c.Merge(januaryBatch())
	if err := c.Persist(); err != nil {
		t.Fatal(err)
	}
	if err := c.Persist(); err != nil {
		t.Fatal(err)
	}
	backups, err := c.Backups()
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 1 {
		t.Fatalf("backups = %d, want exactly 1 per day", len(backups))
	}

	var snap []models.LogRecord
	data, _ := os.ReadFile(backups[0].Path)
	if err := json.Unmarshal(data, &snap); err != nil || len(snap) != 1 {
		t.Errorf("backup should hold the previous file: %d records, err %v", len(snap), err)
	}
}

func TestLoadIntegrityMismatchResets(t *testing.T) {
	dir := t.TempDir()
	records := make([]models.LogRecord, 49)
	for i := range records {
		records[i] = rec(i+1, 2025, 3, 1, 8, 0, 0)
	}
	data, _ := json.Marshal(records)
	state, _ := json.Marshal(models.CacheState{TotalRecords: 50, LastSyncTime: time.Now()})

	dataPath := filepath.Join(dir, "cache_machine_1.json")
	statePath := filepath.Join(dir, "cache_machine_1.state")
	if err := os.WriteFile(dataPath, data, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(statePath, state, 0o600); err != nil {
		t.Fatal(err)
	}

	c := newTestCache(t, dir)
	if c.Len() != 0 || c.State().TotalRecords != 0 {
		t.Errorf("cache should be reset, Len=%d", c.Len())
	}
	if fileExists(dataPath) || fileExists(statePath) {
		t.Error("cache files should be deleted after a failed integrity check")
	}
	if err := c.Load(); err != nil {
		t.Errorf("Load after reset should start fresh, got %v", err)
	}
}

func TestLoadImplausibleYearsKept(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, dir)
	c.Merge([]models.LogRecord{rec(1, 2019, 1, 1, 0, 0, 0), rec(2, 2025, 1, 1, 0, 0, 0)})
	if err := c.Persist(); err != nil {
		t.Fatal(err)
	}
	if reloaded := newTestCache(t, dir); reloaded.Len() != 2 {
		t.Errorf("implausible years must not invalidate the cache, Len=%d", reloaded.Len())
	}
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "cache_machine_1.json"), []byte("{not json"), 0o600)
	_ = os.WriteFile(filepath.Join(dir, "cache_machine_1.state"), []byte("{}"), 0o600)

	c := newTestCache(t, dir)
	if c.Len() != 0 {
		t.Errorf("corrupt cache should load empty, Len=%d", c.Len())
	}
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, dir)
	c.Merge(januaryBatch())
	if err := c.Persist(); err != nil {
		t.Fatal(err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if c.Len() != 0 || c.Stats().LastSyncTime != nil {
		t.Errorf("cache not cleared: %+v", c.Stats())
	}
	if fileExists(filepath.Join(dir, "cache_machine_1.json")) {
		t.Error("record file should be removed")
	}
}

func TestGetWithCache(t *testing.T) {
	c := newTestCache(t, t.TempDir())
	var calls atomic.Int32
	fetch := func(_ context.Context, _, _ *time.Time) ([]models.LogRecord, error) {
		calls.Add(1)
		return januaryBatch(), nil
	}
	from := localTime(2024, 1, 1, 0, 0, 0)
	to := localTime(2024, 1, 20, 23, 59, 59)

	got, err := c.GetWithCache(context.Background(), fetch, from, to)
	if err != nil {
		t.Fatalf("GetWithCache: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("empty cache should fetch once, calls=%d", calls.Load())
	}
	if len(got) != 4 {
		t.Errorf("returned %d records, want 4 (the 28th is out of range)", len(got))
	}

	got, err = c.GetWithCache(context.Background(), fetch, localTime(2024, 1, 10, 0, 0, 0), to)
	if err != nil || calls.Load() != 1 {
		t.Errorf("request inside horizon should hit cache: calls=%d err=%v", calls.Load(), err)
	}
	if len(got) != 2 {
		t.Errorf("returned %d records, want 2", len(got))
	}

	_, _ = c.GetWithCache(context.Background(), fetch, from, localTime(2024, 3, 1, 0, 0, 0))
	if calls.Load() != 2 {
		t.Errorf("request past horizon should fetch, calls=%d", calls.Load())
	}
	if c.Len() != 5 {
		t.Errorf("refetch of same batch must not duplicate, Len=%d", c.Len())
	}
}

func TestGetWithCacheFetchError(t *testing.T) {
	c := newTestCache(t, t.TempDir())
	c.Merge(januaryBatch())
	c.state.LastSyncTime = time.Now().Add(-48 * time.Hour)

	boom := errors.New("connect timeout")
	got, err := c.GetWithCache(context.Background(), func(context.Context, *time.Time, *time.Time) ([]models.LogRecord, error) {
		return nil, boom
	}, nil, nil)

	if !errors.Is(err, ErrFetchFailed) || !errors.Is(err, boom) {
		t.Errorf("err = %v, want ErrFetchFailed wrapping the cause", err)
	}
	if len(got) != 5 {
		t.Errorf("cached records should still be served, got %d", len(got))
	}
}

func TestGetWithCacheEmptyFetch(t *testing.T) {
	c := newTestCache(t, t.TempDir())
	got, err := c.GetWithCache(context.Background(), func(context.Context, *time.Time, *time.Time) ([]models.LogRecord, error) {
		return nil, nil
	}, nil, nil)
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
	if c.State().TotalRecords != 0 {
		t.Error("state should stay empty")
	}
}

func TestGetWithCacheSerializesFetches(t *testing.T) {
	c := newTestCache(t, t.TempDir())
	var calls atomic.Int32
	fetch := func(_ context.Context, _, _ *time.Time) ([]models.LogRecord, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return januaryBatch(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetWithCache(context.Background(), fetch, localTime(2024, 1, 5, 0, 0, 0), localTime(2024, 1, 20, 0, 0, 0))
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("fetch ran %d times, want 1", calls.Load())
	}
}

func TestGetWithCachePublishesEvents(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(16)
	defer cancel()

	c, err := New(2, Options{Dir: t.TempDir(), Events: bus})
	if err != nil {
		t.Fatal(err)
	}
	_, _ = c.GetWithCache(context.Background(), func(context.Context, *time.Time, *time.Time) ([]models.LogRecord, error) {
		return januaryBatch(), nil
	}, nil, nil)

	var types []string
	for len(ch) > 0 {
		types = append(types, (<-ch).Type)
	}
	if len(types) != 2 || types[0] != events.TypeCacheMiss || types[1] != events.TypeCacheSynced {
		t.Errorf("events = %v", types)
	}
}

func TestRefreshIgnoresPolicy(t *testing.T) {
	c := newTestCache(t, t.TempDir())
	c.Merge(januaryBatch())

	var calls atomic.Int32
	fetch := func(_ context.Context, _, _ *time.Time) ([]models.LogRecord, error) {
		calls.Add(1)
		return []models.LogRecord{rec(40, 2024, 1, 29, 8, 0, 0)}, nil
	}

	added, err := c.Refresh(context.Background(), fetch, nil, nil)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if calls.Load() != 1 || added != 1 || c.Len() != 6 {
		t.Errorf("calls=%d added=%d len=%d", calls.Load(), added, c.Len())
	}

	fail := func(context.Context, *time.Time, *time.Time) ([]models.LogRecord, error) {
		return nil, errors.New("offline")
	}
	if _, err := c.Refresh(context.Background(), fail, nil, nil); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("err = %v, want ErrFetchFailed", err)
	}
	if c.Len() != 6 {
		t.Errorf("failed refresh changed the cache, len=%d", c.Len())
	}
}
