// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package device

import (
	"context"
	"errors"
	"sync"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
)

var errNotConnected = errors.New("machine not connected")

// FixtureReader replays fixture files as if they were a terminal's log.
// Host and port are ignored; the machine number selects the files.
type FixtureReader struct {
	dir string

	mu       sync.Mutex
	sessions map[int]*fixtureSession
}

type fixtureSession struct {
	records []models.LogRecord
	pos     int
	loaded  bool
}

// NewFixtureReader creates a reader over dir.
func NewFixtureReader(dir string) *FixtureReader {
	return &FixtureReader{dir: dir, sessions: make(map[int]*fixtureSession)}
}

// Dir returns the fixture directory.
func (r *FixtureReader) Dir() string {
	return r.dir
}

func (r *FixtureReader) Connect(ctx context.Context, machine int, _ string, _ int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := FixtureFiles(r.dir, machine); err != nil {
		return err
	}
	r.mu.Lock()
	r.sessions[machine] = &fixtureSession{}
	r.mu.Unlock()
	return nil
}

func (r *FixtureReader) BeginReadLog(machine int) error {
	_, err := r.session(machine)
	return err
}

func (r *FixtureReader) LoadLogBuffer(machine int) error {
	s, err := r.session(machine)
	if err != nil {
		return err
	}
	records, stats, err := LoadFixtures(r.dir, machine)
	if err != nil {
		return err
	}
	logging.Debug().
		Int("machine", machine).
		Int("files", stats.Files).
		Int("lines", stats.Lines).
		Int("invalid", stats.Invalid).
		Msg("Loaded fixture log")

	r.mu.Lock()
	s.records, s.pos, s.loaded = records, 0, true
	r.mu.Unlock()
	return nil
}

func (r *FixtureReader) NextRecord(machine int) (models.LogRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[machine]
	if !ok || !s.loaded {
		return models.LogRecord{}, errNotConnected
	}
	if s.pos >= len(s.records) {
		return models.LogRecord{}, ErrEndOfData
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

func (r *FixtureReader) Disconnect(machine int) {
	r.mu.Lock()
	delete(r.sessions, machine)
	r.mu.Unlock()
}

func (r *FixtureReader) session(machine int) (*fixtureSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[machine]
	if !ok {
		return nil, errNotConnected
	}
	return s, nil
}
