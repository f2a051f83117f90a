// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

// Package client talks to the relay's TCP protocol. Every request opens its
// own connection, sends one request line, reads the payload and EXIT lines
// and closes with EXIT.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/device"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/protocol"
)

// Default timeouts.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 300 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultChunkDays    = 30
	DefaultRecentDays   = 7
)

// Client is a relay client. The zero value is not usable; use New.
type Client struct {
	Addr         string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Mockup switches every request to its MOCKUP_* operation.
	Mockup bool
}

// New returns a client for the relay at addr with default timeouts.
func New(addr string) *Client {
	return &Client{
		Addr:         addr,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Do sends req and returns the decoded records. Cancelling ctx aborts the
// exchange by closing the connection.
func (c *Client) Do(ctx context.Context, req protocol.Request) ([]models.LogRecord, error) {
	d := net.Dialer{Timeout: c.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.Addr, err)
	}
	defer nc.Close()
	stop := context.AfterFunc(ctx, func() { _ = nc.Close() })
	defer stop()

	line := req.Format()
	if err := nc.SetWriteDeadline(time.Now().Add(c.WriteTimeout)); err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(nc, "%s\n", line); err != nil {
		return nil, c.wrap(ctx, "send request", err)
	}

	if err := nc.SetReadDeadline(time.Now().Add(c.ReadTimeout)); err != nil {
		return nil, err
	}
	records, err := protocol.ReadResponse(bufio.NewReader(nc))
	if err != nil {
		var serr *protocol.ServerError
		if errors.As(err, &serr) {
			return nil, err
		}
		return nil, c.wrap(ctx, "read response", err)
	}

	_ = nc.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	_, _ = fmt.Fprintf(nc, "%s\n", protocol.ExitCommand)

	logging.Ctx(ctx).Debug().Str("request", line).Int("records", len(records)).Msg("Received response")
	return records, nil
}

func (c *Client) wrap(ctx context.Context, what string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", what, ctxErr)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (c *Client) op(logs bool) protocol.Operation {
	switch {
	case logs && c.Mockup:
		return protocol.OpMockupGetLogs
	case logs:
		return protocol.OpGetLogs
	case c.Mockup:
		return protocol.OpMockupGetUsers
	default:
		return protocol.OpGetUsers
	}
}

// GetLogs requests the records of target in [from, to]. Nil bounds are
// unbounded.
func (c *Client) GetLogs(ctx context.Context, target device.Target, from, to *time.Time) ([]models.LogRecord, error) {
	return c.Do(ctx, protocol.Request{Op: c.op(true), Target: target, From: from, To: to})
}

// GetUsers requests the unique fingerprint users of target.
func (c *Client) GetUsers(ctx context.Context, target device.Target) ([]models.LogRecord, error) {
	return c.Do(ctx, protocol.Request{Op: c.op(false), Target: target})
}

// GetRecent requests the records of the last days days up to now.
func (c *Client) GetRecent(ctx context.Context, target device.Target, days int) ([]models.LogRecord, error) {
	if days <= 0 {
		days = DefaultRecentDays
	}
	to := time.Now()
	from := to.AddDate(0, 0, -days)
	return c.GetLogs(ctx, target, &from, &to)
}

// GetLogsInChunks splits [from, to] into windows of chunkDays days and
// requests them one after another: [cursor, min(cursor+chunkDays, to)],
// then cursor moves one day past the window end, until cursor reaches to.
// On a failure the records gathered so far are returned with the error.
func (c *Client) GetLogsInChunks(ctx context.Context, target device.Target, from, to time.Time, chunkDays int) ([]models.LogRecord, error) {
	if chunkDays <= 0 {
		chunkDays = DefaultChunkDays
	}
	log := logging.Ctx(ctx)

	all := make([]models.LogRecord, 0)
	for cursor := from; cursor.Before(to); {
		end := cursor.AddDate(0, 0, chunkDays)
		if end.After(to) {
			end = to
		}

		start, stop := cursor, end
		log.Info().
			Str("from", start.Format(time.DateOnly)).
			Str("to", stop.Format(time.DateOnly)).
			Msg("Fetching chunk")
		records, err := c.GetLogs(ctx, target, &start, &stop)
		if err != nil {
			return all, fmt.Errorf("chunk %s..%s: %w", start.Format(time.DateOnly), stop.Format(time.DateOnly), err)
		}
		all = append(all, records...)
		cursor = end.AddDate(0, 0, 1)
	}

	log.Info().Int("records", len(all)).Msg("Chunked fetch complete")
	return all, nil
}
