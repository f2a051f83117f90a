// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/cache"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/metrics"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/protocol"
)

const (
	busyPayload     = "Server busy"
	lineTooLong     = "Line too long"
	internalFailure = "Internal error"
	invalidOp       = "INVALID"
)

// conn is one client connection.
type conn struct {
	srv     *Server
	nc      net.Conn
	id      string
	busy    atomic.Bool
	limiter *rate.Limiter
}

func newConn(s *Server, nc net.Conn) *conn {
	c := &conn{srv: s, nc: nc, id: logging.GenerateConnID()}
	if s.cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.RequestBurst)
	}
	return c
}

// interruptIfIdle wakes a connection blocked waiting for a request line.
func (c *conn) interruptIfIdle() {
	if !c.busy.Load() {
		_ = c.nc.SetReadDeadline(time.Now())
	}
}

func (s *Server) serveConn(parent context.Context, c *conn) {
	ctx := logging.ContextWithConnID(context.WithoutCancel(parent), c.id)
	log := logging.Ctx(ctx).With().Str("remote", c.nc.RemoteAddr().String()).Logger()

	metrics.TrackConnection(true)
	opened := time.Now()
	log.Info().Msg("Client connected")
	s.events.Publish(connEvent(events.TypeConnOpened, c.id, "client connected"))

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Connection handler panicked")
		}
		_ = c.nc.Close()
		metrics.TrackConnection(false)
		s.untrack(c)
		log.Info().Dur("duration", time.Since(opened)).Msg("Client disconnected")
		s.events.Publish(connEvent(events.TypeConnClosed, c.id, "client disconnected"))
	}()

	reader := bufio.NewReaderSize(c.nc, 4096)
	for {
		c.busy.Store(false)
		if err := c.nc.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return
		}
		if s.closing.Load() {
			return
		}

		line, err := protocol.ReadLine(reader, s.cfg.MaxLineBytes)
		if err != nil {
			if errors.Is(err, protocol.ErrLineTooLong) {
				log.Warn().Int("max_bytes", s.cfg.MaxLineBytes).Msg("Request line too long")
				_ = s.writePayload(c, protocol.ErrorPayload(lineTooLong))
			} else if !isClosedConn(err) {
				log.Debug().Err(err).Msg("Read ended")
			}
			return
		}
		c.busy.Store(true)

		if protocol.IsExit(line) {
			log.Debug().Msg("Client sent EXIT")
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			metrics.ProtocolRateLimitHits.Inc()
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
		}

		payload := s.dispatch(ctx, line)
		if err := s.writePayload(c, payload); err != nil {
			log.Warn().Err(err).Msg("Failed to write response")
			return
		}
	}
}

// dispatch turns one request line into a payload line. It never fails:
// parse errors become an error payload and handler errors are logged while
// whatever records the handler returned are still sent.
func (s *Server) dispatch(ctx context.Context, line string) []byte {
	start := time.Now()
	log := logging.Ctx(ctx)

	req, err := protocol.ParseRequest(line)
	if err != nil {
		log.Warn().Err(err).Msg("Invalid request")
		metrics.RecordProtocolRequest(invalidOp, "invalid", time.Since(start))
		return []byte(protocol.InvalidFormatPayload)
	}

	log.Info().Str("op", req.Op.String()).Bool("legacy", req.Legacy).Str("request", req.String()).Msg("Request received")

	records, herr := s.handle(ctx, req)
	result := "ok"
	if herr != nil {
		result = "error"
		ev := log.Warn().Err(herr).Str("op", req.Op.String()).Int("machine", req.Target.Machine)
		if errors.Is(herr, cache.ErrFetchFailed) {
			ev.Int("cached", len(records)).Msg("Device unavailable, answered from cache")
		} else {
			ev.Msg("Request failed, answering with empty result")
		}
	}

	payload, err := protocol.EncodeRecords(records)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		metrics.RecordProtocolRequest(req.Op.String(), "error", time.Since(start))
		return protocol.ErrorPayload(internalFailure)
	}

	elapsed := time.Since(start)
	metrics.RecordProtocolRequest(req.Op.String(), result, elapsed)
	log.Info().
		Str("op", req.Op.String()).
		Int("machine", req.Target.Machine).
		Int("records", len(records)).
		Int("bytes", len(payload)).
		Dur("duration", elapsed).
		Msg("Request served")

	ev := events.New(events.TypeRequest, req.Target.Machine, req.Op.String()).
		With("records", len(records)).
		With("result", result).
		With("duration_ms", elapsed.Milliseconds())
	ev.ConnID = logging.ConnIDFromContext(ctx)
	s.events.Publish(ev)
	return payload
}

// handle calls the handler and converts a panic into an error so that one
// bad request does not take down the connection.
func (s *Server) handle(ctx context.Context, req protocol.Request) (records []models.LogRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Handler panicked")
			records, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler.Handle(ctx, req)
}

func (s *Server) writePayload(c *conn, payload []byte) error {
	if err := c.nc.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return protocol.WriteResponse(c.nc, payload)
}

func (s *Server) reject(nc net.Conn) {
	metrics.RecordRejectedConnection()
	logging.Warn().
		Str("remote", nc.RemoteAddr().String()).
		Int("max_connections", s.cfg.MaxConnections).
		Msg("Connection rejected, server at capacity")
	_ = nc.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	_ = protocol.WriteResponse(nc, protocol.ErrorPayload(busyPayload))
	_ = nc.Close()
}

func isClosedConn(err error) bool {
	var ne net.Error
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || (errors.As(err, &ne) && ne.Timeout())
}

func connEvent(eventType, connID, msg string) events.Event {
	ev := events.New(eventType, 0, msg)
	ev.ConnID = connID
	return ev
}
