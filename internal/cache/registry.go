// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package cache

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
)

// Registry hands out one AttendanceCache per machine number, creating
// caches on first use.
type Registry struct {
	opts Options

	mu     sync.Mutex
	caches map[int]*AttendanceCache
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:   opts.withDefaults(),
		caches: make(map[int]*AttendanceCache),
	}
}

// Dir returns the cache directory.
func (r *Registry) Dir() string {
	return r.opts.Dir
}

// Get returns the cache for machine, loading it from disk the first time.
func (r *Registry) Get(machine int) (*AttendanceCache, error) {
	if machine < 1 {
		return nil, fmt.Errorf("invalid machine number %d", machine)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.caches[machine]; ok {
		return c, nil
	}
	c, err := New(machine, r.opts)
	if err != nil {
		return nil, err
	}
	r.caches[machine] = c
	return c, nil
}

// Lookup returns an already instantiated cache without creating one.
func (r *Registry) Lookup(machine int) (*AttendanceCache, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[machine]
	return c, ok
}

// Machines returns the instantiated machine numbers in ascending order.
func (r *Registry) Machines() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	machines := make([]int, 0, len(r.caches))
	for m := range r.caches {
		machines = append(machines, m)
	}
	sort.Ints(machines)
	return machines
}

// Stats returns the statistics of every instantiated cache.
func (r *Registry) Stats() []models.CacheStats {
	machines := r.Machines()
	stats := make([]models.CacheStats, 0, len(machines))
	for _, m := range machines {
		if c, ok := r.Lookup(m); ok {
			stats = append(stats, c.Stats())
		}
	}
	return stats
}

// ClearAll clears every instantiated cache and returns how many were
// cleared. It keeps going after a failure and joins the errors.
func (r *Registry) ClearAll() (int, error) {
	var errs []error
	cleared := 0
	for _, m := range r.Machines() {
		c, ok := r.Lookup(m)
		if !ok {
			continue
		}
		if err := c.Clear(); err != nil {
			errs = append(errs, fmt.Errorf("machine %d: %w", m, err))
			continue
		}
		cleared++
	}
	return cleared, errors.Join(errs...)
}

// Discover loads every cache that has a state file in the cache directory
// and returns how many were found.
func (r *Registry) Discover() (int, error) {
	matches, err := filepath.Glob(filepath.Join(r.opts.Dir, "cache_machine_*.state"))
	if err != nil {
		return 0, fmt.Errorf("scan cache directory: %w", err)
	}

	found := 0
	for _, path := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "cache_machine_"), ".state")
		machine, err := strconv.Atoi(name)
		if err != nil || machine < 1 {
			continue
		}
		if _, err := r.Get(machine); err != nil {
			logging.Warn().Err(err).Int("machine", machine).Msg("Failed to open cache")
			continue
		}
		found++
	}
	return found, nil
}
