// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package sync

import (
	"errors"
	"fmt"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/config"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/device"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/metrics"
)

// Breaker defaults used when the configuration leaves a field at zero.
const (
	DefaultBreakerFailures  = 3
	DefaultBreakerTimeout   = 2 * time.Minute
	DefaultHalfOpenRequests = 1
)

// breakerSet lazily creates one circuit breaker per machine.
//
// The breakers use real time for their open timeout. Tests that need to
// observe recovery should configure a short OpenTimeout.
type breakerSet struct {
	prefix   string
	settings config.BreakerConfig
	events   events.Publisher

	mu       sync.Mutex
	breakers map[int]*gobreaker.CircuitBreaker[device.CollectResult]
}

func newBreakerSet(prefix string, cfg config.BreakerConfig, pub events.Publisher) *breakerSet {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultBreakerTimeout
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = DefaultHalfOpenRequests
	}
	return &breakerSet{
		prefix:   prefix,
		settings: cfg,
		events:   events.OrDiscard(pub),
		breakers: make(map[int]*gobreaker.CircuitBreaker[device.CollectResult]),
	}
}

func (s *breakerSet) name(machine int) string {
	return fmt.Sprintf("%s-machine-%d", s.prefix, machine)
}

func (s *breakerSet) get(machine int) *gobreaker.CircuitBreaker[device.CollectResult] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[machine]; ok {
		return cb
	}

	cbName := s.name(machine)
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	threshold := s.settings.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker[device.CollectResult](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: s.settings.HalfOpenRequests,
		Timeout:     s.settings.OpenTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= threshold
			if shouldTrip {
				logging.Warn().
					Int("machine", machine).
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Int("machine", machine).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}

			s.events.Publish(events.New(events.TypeBreakerState, machine, name+" "+toStr).
				With("from", fromStr).
				With("to", toStr))
		},
	})
	s.breakers[machine] = cb
	return cb
}

// execute runs fn behind the breaker of machine.
func (s *breakerSet) execute(machine int, fn func() (device.CollectResult, error)) (device.CollectResult, error) {
	cb := s.get(machine)
	result, err := cb.Execute(fn)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "rejected").Inc()
			logging.Warn().Err(err).Int("machine", machine).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "failure").Inc()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cb.Name()).Set(float64(cb.Counts().ConsecutiveFailures))
		}
		return result, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cb.Name()).Set(0)
	return result, nil
}

// state returns the breaker state of machine, "closed" when none exists yet.
func (s *breakerSet) state(machine int) string {
	s.mu.Lock()
	cb, ok := s.breakers[machine]
	s.mu.Unlock()
	if !ok {
		return stateToString(gobreaker.StateClosed)
	}
	return stateToString(cb.State())
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
