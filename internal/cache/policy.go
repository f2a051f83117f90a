// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package cache

import (
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
)

// Reason explains a sync policy decision.
type Reason string

const (
	ReasonEmpty          Reason = "empty"
	ReasonStale          Reason = "stale"
	ReasonAfterHorizon   Reason = "after_horizon"
	ReasonBeforeHorizon  Reason = "before_horizon"
	ReasonUnboundedStale Reason = "unbounded_stale"
	ReasonFresh          Reason = "fresh"
)

// Default staleness ceilings.
const (
	DefaultMaxAge          = 24 * time.Hour
	DefaultUnboundedMaxAge = time.Hour
)

// Policy decides whether a request must refetch from the device.
type Policy struct {
	// MaxAge forces a fetch for any request once the last sync is older.
	MaxAge time.Duration

	// UnboundedMaxAge applies to requests without any date bound.
	UnboundedMaxAge time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// DefaultPolicy returns the 24h / 1h policy.
func DefaultPolicy() Policy {
	return Policy{MaxAge: DefaultMaxAge, UnboundedMaxAge: DefaultUnboundedMaxAge}
}

func (p Policy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// ShouldFetch applies the rules in order and returns the first match.
func (p Policy) ShouldFetch(state models.CacheState, from, to *time.Time) (bool, Reason) {
	if state.TotalRecords == 0 {
		return true, ReasonEmpty
	}

	age := p.now().Sub(state.LastSyncTime)
	if age > p.MaxAge {
		return true, ReasonStale
	}

	if to != nil && state.LatestRecordDate != nil &&
		dateOnly(*to).After(dateOnly(*state.LatestRecordDate)) {
		return true, ReasonAfterHorizon
	}

	if from != nil && state.EarliestRecordDate != nil &&
		dateOnly(*from).Before(dateOnly(*state.EarliestRecordDate)) {
		return true, ReasonBeforeHorizon
	}

	if from == nil && to == nil && age > p.UnboundedMaxAge {
		return true, ReasonUnboundedStale
	}

	return false, ReasonFresh
}

// dateOnly truncates t to midnight in the local zone.
func dateOnly(t time.Time) time.Time {
	t = t.In(time.Local)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}
