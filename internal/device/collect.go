// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
)

// DefaultMinYear drops device records older than this year.
const DefaultMinYear = 2024

// CollectOptions filters a device read. Nil bounds are unbounded.
type CollectOptions struct {
	From           *time.Time
	To             *time.Time
	MinYear        int
	ConnectTimeout time.Duration

	// Now supplies the upper year bound of Valid. Defaults to time.Now.
	Now func() time.Time
}

// CollectResult is the outcome of one full log read.
type CollectResult struct {
	Records []models.LogRecord
	Total   int
	Skipped int
	Invalid int

	// Settled is non-nil when the connect timed out while still pending.
	// It is closed once the late connect has resolved and been undone.
	Settled <-chan struct{}
}

// Collect reads the whole log of target and keeps records that are Valid,
// fall in the requested range and are not older than MinYear. Kept records
// are numbered from 1 in read order. The read is not interrupted once
// started.
func Collect(ctx context.Context, r Reader, target Target, opts CollectOptions) (CollectResult, error) {
	if opts.MinYear <= 0 {
		opts.MinYear = DefaultMinYear
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var res CollectResult
	settled, err := Connect(ctx, r, target, opts.ConnectTimeout)
	if err != nil {
		res.Settled = settled
		return res, err
	}
	defer r.Disconnect(target.Machine)

	if err := r.BeginReadLog(target.Machine); err != nil {
		return res, fmt.Errorf("%w: begin: %w", ErrReadLog, err)
	}
	if err := r.LoadLogBuffer(target.Machine); err != nil {
		return res, fmt.Errorf("%w: load buffer: %w", ErrReadLog, err)
	}

	now := opts.Now()
	res.Records = make([]models.LogRecord, 0)
	for {
		rec, err := r.NextRecord(target.Machine)
		if errors.Is(err, ErrEndOfData) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("%w: record %d: %w", ErrReadLog, res.Total+1, err)
		}
		res.Total++

		switch keep(&rec, opts, now) {
		case verdictKeep:
			rec.No = len(res.Records) + 1
			res.Records = append(res.Records, rec)
		case verdictInvalid:
			res.Invalid++
		default:
			res.Skipped++
		}
	}

	logging.Ctx(ctx).Info().
		Int("machine", target.Machine).
		Int("total", res.Total).
		Int("kept", len(res.Records)).
		Int("skipped", res.Skipped).
		Int("invalid", res.Invalid).
		Msg("Read log data")
	return res, nil
}

type verdict int

const (
	verdictKeep verdict = iota
	verdictSkip
	verdictInvalid
)

func keep(rec *models.LogRecord, opts CollectOptions, now time.Time) verdict {
	if !rec.Valid(now) || rec.Year < opts.MinYear {
		return verdictSkip
	}
	if opts.From != nil && rec.Year < opts.From.Year() {
		return verdictSkip
	}
	if opts.To != nil && rec.Year > opts.To.Year() {
		return verdictSkip
	}

	t, ok := rec.Time()
	if !ok {
		return verdictInvalid
	}
	if opts.From != nil && t.Before(*opts.From) {
		return verdictSkip
	}
	if opts.To != nil && t.After(*opts.To) {
		return verdictSkip
	}
	return verdictKeep
}
