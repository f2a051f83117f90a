// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package models

import (
	"fmt"
	"time"
)

// CacheState is the synchronization metadata of one machine cache. It is
// persisted next to the record set and rewritten after every merge.
type CacheState struct {
	TotalRecords        int        `json:"totalRecords"`
	LastSyncTime        time.Time  `json:"lastSyncTime"`
	CachedAtTimestamp   time.Time  `json:"cachedAtTimestamp"`
	EarliestRecordDate  *time.Time `json:"earliestRecordDate"`
	LatestRecordDate    *time.Time `json:"latestRecordDate"`
	LastKnownSequenceNo int        `json:"lastKnownSequenceNo"`
}

// CacheStats is a point-in-time view of a machine cache.
type CacheStats struct {
	MachineNumber       int        `json:"machine_number"`
	TotalRecords        int        `json:"total_records"`
	LastSyncTime        *time.Time `json:"last_sync_time,omitempty"`
	CachedAt            *time.Time `json:"cached_at,omitempty"`
	EarliestRecordDate  *time.Time `json:"earliest_record_date,omitempty"`
	LatestRecordDate    *time.Time `json:"latest_record_date,omitempty"`
	LastKnownSequenceNo int        `json:"last_known_sequence_no"`
}

// String renders the stats the way operators read them in logs.
func (s CacheStats) String() string {
	day := func(t *time.Time) string {
		if t == nil {
			return "N/A"
		}
		return t.Format("2006-01-02")
	}
	lastSync := "never"
	if s.LastSyncTime != nil {
		lastSync = s.LastSyncTime.Format(TimeKeyLayout)
	}
	return fmt.Sprintf("machine %d: %d records, last sync: %s, date range: %s to %s",
		s.MachineNumber, s.TotalRecords, lastSync, day(s.EarliestRecordDate), day(s.LatestRecordDate))
}
