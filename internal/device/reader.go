// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

// Package device reads attendance logs from fingerprint terminals.
//
// The vendor SDK is hidden behind Reader, which mirrors the SDK call
// sequence: connect, begin a log read, load the log buffer, pull records
// until the end of data, disconnect. Collect drives that sequence and
// applies the record filters; callers never talk to a Reader directly.
//
// Two Reader implementations ship with the server: FixtureReader replays
// tab-separated fixture files so the whole stack runs without hardware, and
// Unavailable rejects every connection.
package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
)

const (
	// DefaultConnectTimeout bounds how long Connect may take.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultPort is the factory TCP port of the terminals.
	DefaultPort = 4370
)

var (
	// ErrConnect reports a failed or timed out connection.
	ErrConnect = errors.New("device connect failed")

	// ErrReadLog reports a failure to start or load the log read.
	ErrReadLog = errors.New("device log read failed")

	// ErrEndOfData is returned by NextRecord after the last record.
	ErrEndOfData = errors.New("end of data")

	// ErrUnavailable is returned when no device driver is configured.
	ErrUnavailable = errors.New("device driver unavailable")
)

// Target addresses one terminal.
type Target struct {
	Machine int    `json:"machine" validate:"min=1,max=9999"`
	Host    string `json:"host" validate:"required,hostname|ip"`
	Port    int    `json:"port" validate:"min=1,max=65535"`
}

// Addr returns host:port.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	return fmt.Sprintf("machine %d (%s)", t.Machine, t.Addr())
}

// Reader is the terminal SDK surface the server needs. Implementations are
// not required to be safe for concurrent use on the same machine number.
type Reader interface {
	Connect(ctx context.Context, machine int, host string, port int) error
	BeginReadLog(machine int) error
	LoadLogBuffer(machine int) error
	NextRecord(machine int) (models.LogRecord, error)
	Disconnect(machine int)
}

// Connect opens a connection with a deadline. When the deadline passes
// first, the error is returned at once and the pending connect is awaited
// in the background; any connection it eventually opens is closed. The
// returned channel is then non-nil and closed once that cleanup is done.
// Until it is closed the machine must not be connected again, or the
// cleanup would tear down the newer session.
func Connect(ctx context.Context, r Reader, target Target, timeout time.Duration) (<-chan struct{}, error) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- r.Connect(ctx, target.Machine, target.Host, target.Port)
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConnect, target, err)
		}
		return nil, nil
	case <-ctx.Done():
		settled := make(chan struct{})
		go func() {
			defer close(settled)
			if err := <-done; err == nil {
				r.Disconnect(target.Machine)
			}
		}()
		return settled, fmt.Errorf("%w: %s: %w", ErrConnect, target, ctx.Err())
	}
}

// Unavailable is a Reader for deployments without a device driver.
type Unavailable struct{}

func (Unavailable) Connect(context.Context, int, string, int) error { return ErrUnavailable }
func (Unavailable) BeginReadLog(int) error                          { return ErrUnavailable }
func (Unavailable) LoadLogBuffer(int) error                         { return ErrUnavailable }
func (Unavailable) NextRecord(int) (models.LogRecord, error)        { return models.LogRecord{}, ErrEndOfData }
func (Unavailable) Disconnect(int)                                  {}
