// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordProtocolRequest(t *testing.T) {
	before := testutil.ToFloat64(ProtocolRequestsTotal.WithLabelValues("GETLOGS", "ok"))

	RecordProtocolRequest("GETLOGS", "ok", 20*time.Millisecond)
	RecordProtocolRequest("GETLOGS", "ok", 40*time.Millisecond)

	after := testutil.ToFloat64(ProtocolRequestsTotal.WithLabelValues("GETLOGS", "ok"))
	if after-before != 2 {
		t.Errorf("expected 2 requests recorded, got %v", after-before)
	}
}

func TestTrackConnection(t *testing.T) {
	base := testutil.ToFloat64(ProtocolActiveConnections)
	accepted := testutil.ToFloat64(ProtocolConnectionsTotal.WithLabelValues("accepted"))

	TrackConnection(true)
	TrackConnection(true)
	if got := testutil.ToFloat64(ProtocolActiveConnections) - base; got != 2 {
		t.Errorf("active connections delta = %v, want 2", got)
	}
	TrackConnection(false)
	TrackConnection(false)
	if got := testutil.ToFloat64(ProtocolActiveConnections); got != base {
		t.Errorf("active connections = %v, want %v", got, base)
	}
	if got := testutil.ToFloat64(ProtocolConnectionsTotal.WithLabelValues("accepted")) - accepted; got != 2 {
		t.Errorf("accepted delta = %v, want 2", got)
	}

	rejected := testutil.ToFloat64(ProtocolConnectionsTotal.WithLabelValues("rejected"))
	RecordRejectedConnection()
	if got := testutil.ToFloat64(ProtocolConnectionsTotal.WithLabelValues("rejected")) - rejected; got != 1 {
		t.Errorf("rejected delta = %v, want 1", got)
	}
}

func TestRecordCacheDecision(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits.WithLabelValues("7"))
	misses := testutil.ToFloat64(CacheMisses.WithLabelValues("7", "stale"))

	RecordCacheDecision(7, false, "fresh")
	RecordCacheDecision(7, true, "stale")
	RecordCacheDecision(7, true, "stale")

	if got := testutil.ToFloat64(CacheHits.WithLabelValues("7")) - hits; got != 1 {
		t.Errorf("hits delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("7", "stale")) - misses; got != 2 {
		t.Errorf("misses delta = %v, want 2", got)
	}
}

func TestSetCacheRecords(t *testing.T) {
	SetCacheRecords(3, 120)
	if got := testutil.ToFloat64(CacheRecords.WithLabelValues("3")); got != 120 {
		t.Errorf("cache records = %v, want 120", got)
	}
}

func TestRecordDeviceRead(t *testing.T) {
	kept := testutil.ToFloat64(DeviceRecordsRead.WithLabelValues("mockup", "kept"))
	skipped := testutil.ToFloat64(DeviceRecordsRead.WithLabelValues("mockup", "skipped"))
	errs := testutil.ToFloat64(DeviceReadErrors.WithLabelValues("mockup"))

	RecordDeviceRead("mockup", 10, 3, 1, time.Second, nil)
	RecordDeviceRead("mockup", 0, 0, 0, time.Second, errors.New("connect failed"))

	if got := testutil.ToFloat64(DeviceRecordsRead.WithLabelValues("mockup", "kept")) - kept; got != 10 {
		t.Errorf("kept delta = %v, want 10", got)
	}
	if got := testutil.ToFloat64(DeviceRecordsRead.WithLabelValues("mockup", "skipped")) - skipped; got != 3 {
		t.Errorf("skipped delta = %v, want 3", got)
	}
	if got := testutil.ToFloat64(DeviceReadErrors.WithLabelValues("mockup")) - errs; got != 1 {
		t.Errorf("errors delta = %v, want 1", got)
	}
}

func TestRecordPrefetch(t *testing.T) {
	RecordPrefetch(4, nil)
	if testutil.ToFloat64(PrefetchLastSuccess.WithLabelValues("4")) == 0 {
		t.Error("last success timestamp should be set")
	}

	before := testutil.ToFloat64(PrefetchRuns.WithLabelValues("4", "error"))
	RecordPrefetch(4, errors.New("boom"))
	if got := testutil.ToFloat64(PrefetchRuns.WithLabelValues("4", "error")) - before; got != 1 {
		t.Errorf("error runs delta = %v, want 1", got)
	}
}

func TestRecordJournalWrite(t *testing.T) {
	ok := testutil.ToFloat64(JournalWrites.WithLabelValues("ok"))
	RecordJournalWrite(nil)
	if got := testutil.ToFloat64(JournalWrites.WithLabelValues("ok")) - ok; got != 1 {
		t.Errorf("ok delta = %v, want 1", got)
	}
}
