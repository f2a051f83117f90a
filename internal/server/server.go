// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

// Package server runs the TCP relay: one goroutine per client connection,
// each reading request lines and answering with a payload line and EXIT.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/config"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/protocol"
)

// Defaults applied to zero Config fields.
const (
	DefaultReadTimeout     = 300 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxLineBytes    = 4096
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("server closed")

// Handler answers decoded requests. A non-nil error with records means
// the records are still served.
type Handler interface {
	Handle(ctx context.Context, req protocol.Request) ([]models.LogRecord, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req protocol.Request) ([]models.LogRecord, error)

func (f HandlerFunc) Handle(ctx context.Context, req protocol.Request) ([]models.LogRecord, error) {
	return f(ctx, req)
}

// Config tunes the listener and connections.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// MaxConnections caps concurrent clients; 0 means unlimited.
	MaxConnections int
	MaxLineBytes   int

	// RequestsPerSecond limits one connection; 0 disables the limiter.
	RequestsPerSecond float64
	RequestBurst      int
}

// ConfigFrom converts the server section of the application config.
func ConfigFrom(cfg config.ServerConfig) Config {
	return Config{
		Addr:              cfg.Addr(),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ShutdownTimeout:   cfg.ShutdownTimeout,
		MaxConnections:    cfg.MaxConnections,
		MaxLineBytes:      cfg.MaxLineBytes,
		RequestsPerSecond: cfg.RequestsPerSecond,
		RequestBurst:      cfg.RequestBurst,
	}
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = DefaultMaxLineBytes
	}
	if c.RequestsPerSecond > 0 && c.RequestBurst <= 0 {
		c.RequestBurst = 1
	}
	return c
}

// Server is the TCP relay.
type Server struct {
	cfg     Config
	handler Handler
	events  events.Publisher
	sem     chan struct{}

	mu       sync.Mutex
	listener net.Listener
	conns    map[*conn]struct{}
	wg       sync.WaitGroup
	closing  atomic.Bool
}

// New creates a server. Call Listen and Serve, or ListenAndServe.
func New(cfg Config, h Handler, pub events.Publisher) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:     cfg,
		handler: h,
		events:  events.OrDiscard(pub),
		conns:   make(map[*conn]struct{}),
	}
	if cfg.MaxConnections > 0 {
		s.sem = make(chan struct{}, cfg.MaxConnections)
	}
	return s
}

// Listen binds the configured address. A server that was shut down can
// Listen and Serve again.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.closing.Store(false)
	return nil
}

// Addr returns the bound address, or nil when not listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe binds and serves until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts connections until ctx is done or Shutdown is called. When
// ctx ends Serve performs the shutdown itself.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server is not listening")
	}

	logging.Info().Str("addr", ln.Addr().String()).Msg("Protocol server listening")
	s.events.Publish(events.New(events.TypeServerStarted, 0, "listening on "+ln.Addr().String()))

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
			defer cancel()
			_ = s.Shutdown(shutdownCtx)
		case <-stopWatch:
		}
	}()

	var tempDelay time.Duration
	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.closing.Load() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				tempDelay = nextDelay(tempDelay)
				logging.Warn().Err(err).Dur("retry_in", tempDelay).Msg("Accept error")
				time.Sleep(tempDelay)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		tempDelay = 0

		if !s.acquire() {
			s.reject(nc)
			continue
		}
		c := s.track(nc)
		if c == nil {
			s.release()
			_ = nc.Close()
			continue
		}
		go s.serveConn(ctx, c)
	}
}

func nextDelay(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}

// Shutdown stops accepting, lets busy connections finish their current
// response and closes idle ones. Connections still open when ctx ends are
// closed forcibly.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	for c := range s.conns {
		c.interruptIfIdle()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		s.mu.Lock()
		remaining := len(s.conns)
		for c := range s.conns {
			_ = c.nc.Close()
		}
		s.mu.Unlock()
		logging.Warn().Int("connections", remaining).Msg("Shutdown timeout, closed remaining connections")
		<-done
		err = ctx.Err()
	}

	logging.Info().Msg("Protocol server stopped")
	s.events.Publish(events.New(events.TypeServerStopped, 0, "protocol server stopped"))
	return err
}

// ActiveConnections returns the number of open client connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) acquire() bool {
	if s.sem == nil {
		return true
	}
	select {
	case s.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Server) release() {
	if s.sem != nil {
		<-s.sem
	}
}

func (s *Server) track(nc net.Conn) *conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return nil
	}
	c := newConn(s, nc)
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return c
}

func (s *Server) untrack(c *conn) {
	s.release()
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}
