// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package journal

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/metrics"
)

const (
	// DefaultTTL is how long an event stays in the journal.
	DefaultTTL = 72 * time.Hour

	// DefaultLimit caps List results when the query gives no limit.
	DefaultLimit = 100

	// MaxLimit is the largest accepted query limit.
	MaxLimit = 1000

	// DefaultGCInterval is the value log GC period used by Run.
	DefaultGCInterval = 10 * time.Minute

	prefixEvent = "event:"
	gcRatio     = 0.5
	closeWait   = 30 * time.Second
)

var (
	// ErrClosed is returned by operations on a closed journal.
	ErrClosed = errors.New("journal closed")

	// ErrNilEvent is returned when an event has no ID.
	ErrNilEvent = errors.New("event has no id")
)

// Config configures a journal.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// TTL is the lifetime of each entry. Zero means DefaultTTL.
	TTL time.Duration

	// InMemory keeps the database in memory only.
	InMemory bool

	// SyncWrites forces fsync after every write.
	SyncWrites bool
}

// Query filters List results. Zero values match everything.
type Query struct {
	Machine int
	Type    string
	Since   time.Time
	Limit   int
}

// Stats reports journal counters.
type Stats struct {
	Writes      int64     `json:"writes"`
	WriteErrors int64     `json:"write_errors"`
	LastWrite   time.Time `json:"last_write,omitempty"`
	LastGC      time.Time `json:"last_gc,omitempty"`
	TTL         string    `json:"ttl"`
}

// Journal stores events in BadgerDB.
type Journal struct {
	db  *badger.DB
	ttl time.Duration

	writes      atomic.Int64
	writeErrors atomic.Int64

	mu        sync.RWMutex
	closed    bool
	lastWrite time.Time
	lastGC    time.Time
}

// Open opens (or creates) the journal database.
func Open(cfg Config) (*Journal, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("journal path is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = 16 << 20
	opts.NumCompactors = 2
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("ttl", ttl).
		Msg("Journal opened")
	return &Journal{db: db, ttl: ttl}, nil
}

func eventKey(ev events.Event) []byte {
	key := make([]byte, 0, len(prefixEvent)+8+1+len(ev.ID))
	key = append(key, prefixEvent...)
	key = binary.BigEndian.AppendUint64(key, uint64(ev.Timestamp.UnixNano()))
	key = append(key, ':')
	return append(key, ev.ID...)
}

// Record stores one event.
func (j *Journal) Record(ev events.Event) error {
	j.mu.RLock()
	closed := j.closed
	j.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if ev.ID == "" {
		return ErrNilEvent
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(eventKey(ev), data).WithTTL(j.ttl))
	})
	metrics.RecordJournalWrite(err)
	if err != nil {
		j.writeErrors.Add(1)
		return fmt.Errorf("write to BadgerDB: %w", err)
	}

	j.writes.Add(1)
	j.mu.Lock()
	j.lastWrite = time.Now()
	j.mu.Unlock()
	return nil
}

// List returns matching events, newest first.
func (j *Journal) List(ctx context.Context, q Query) ([]events.Event, error) {
	j.mu.RLock()
	closed := j.closed
	j.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	out := make([]events.Event, 0, min(limit, 64))
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixEvent)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the last key sharing the prefix.
		start := append([]byte(prefixEvent), bytes.Repeat([]byte{0xFF}, 9)...)
		for it.Seek(start); it.Valid(); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var ev events.Event
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Skipping unreadable journal entry")
				continue
			}
			if !q.Since.IsZero() && ev.Timestamp.Before(q.Since) {
				// Keys are time ordered, so nothing older can match.
				return nil
			}
			if q.Machine != 0 && ev.Machine != q.Machine {
				continue
			}
			if q.Type != "" && ev.Type != q.Type {
				continue
			}
			out = append(out, ev)
			if len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Run records events from feed until ctx is done or feed is closed. It also
// runs value log GC periodically.
func (j *Journal) Run(ctx context.Context, feed <-chan events.Event) error {
	ticker := time.NewTicker(DefaultGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-feed:
			if !ok {
				return nil
			}
			if err := j.Record(ev); err != nil {
				if errors.Is(err, ErrClosed) {
					return err
				}
				logging.Warn().Err(err).Str("event_type", ev.Type).Msg("Journal write failed")
			}
		case <-ticker.C:
			j.collectGarbage()
		}
	}
}

func (j *Journal) collectGarbage() {
	for {
		if err := j.db.RunValueLogGC(gcRatio); err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
				logging.Debug().Err(err).Msg("Journal value log GC stopped")
			}
			break
		}
	}
	j.mu.Lock()
	j.lastGC = time.Now()
	j.mu.Unlock()
}

// Stats returns journal counters.
func (j *Journal) Stats() Stats {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Stats{
		Writes:      j.writes.Load(),
		WriteErrors: j.writeErrors.Load(),
		LastWrite:   j.lastWrite,
		LastGC:      j.lastGC,
		TTL:         j.ttl.String(),
	}
}

// Close closes the database. It is safe to call more than once.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- j.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Journal closed")
		return nil
	case <-time.After(closeWait):
		return fmt.Errorf("badgerdb close timeout after %v", closeWait)
	}
}
