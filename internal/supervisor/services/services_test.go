// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
)

type fakeRelay struct {
	mu        sync.Mutex
	addr      net.Addr
	listenErr error
	listens   int
}

func (f *fakeRelay) Listen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listens++
	if f.listenErr != nil {
		return f.listenErr
	}
	f.addr = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9999}
	return nil
}

func (f *fakeRelay) Addr() net.Addr {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addr
}

func (f *fakeRelay) Serve(ctx context.Context) error {
	<-ctx.Done()
	f.mu.Lock()
	f.addr = nil
	f.mu.Unlock()
	return errors.New("server closed")
}

func TestRelayServerServiceBindsWhenNeeded(t *testing.T) {
	relay := &fakeRelay{}
	svc := NewRelayServerService(relay)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve = %v, want deadline exceeded", err)
	}
	if relay.listens != 1 {
		t.Errorf("Listen called %d times, want 1", relay.listens)
	}
	if svc.String() != "relay-server" {
		t.Errorf("String = %q", svc.String())
	}
}

func TestRelayServerServiceListenError(t *testing.T) {
	relay := &fakeRelay{listenErr: errors.New("address in use")}
	err := NewRelayServerService(relay).Serve(context.Background())
	if err == nil || !errors.Is(err, relay.listenErr) {
		t.Errorf("Serve = %v, want wrapped listen error", err)
	}
}

type fakeHTTPServer struct {
	listenErr    error
	shutdownErr  error
	shutdownCall atomic.Bool
	stop         chan struct{}
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{stop: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	f.shutdownCall.Store(true)
	close(f.stop)
	return f.shutdownErr
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := newFakeHTTPServer()
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if !srv.shutdownCall.Load() {
		t.Error("Shutdown was not called")
	}
}

func TestHTTPServerServiceListenError(t *testing.T) {
	srv := newFakeHTTPServer()
	srv.listenErr = errors.New("bind failed")
	err := NewHTTPServerService(srv, 0).Serve(context.Background())
	if err == nil || !errors.Is(err, srv.listenErr) {
		t.Errorf("Serve = %v, want wrapped bind error", err)
	}
}

type fakeManager struct {
	started, stopped atomic.Int32
	startErr         error
}

func (f *fakeManager) Start(context.Context) error {
	f.started.Add(1)
	return f.startErr
}

func (f *fakeManager) Stop() error {
	f.stopped.Add(1)
	return nil
}

func TestPrefetchService(t *testing.T) {
	m := &fakeManager{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := NewPrefetchService(m).Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve = %v", err)
	}
	if m.started.Load() != 1 || m.stopped.Load() != 1 {
		t.Errorf("started %d stopped %d, want 1 and 1", m.started.Load(), m.stopped.Load())
	}

	m = &fakeManager{startErr: errors.New("already running")}
	if err := NewPrefetchService(m).Serve(context.Background()); err == nil {
		t.Error("start error should be returned")
	}
}

type recordingRunner struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recordingRunner) Run(ctx context.Context, feed <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-feed:
			if !ok {
				return nil
			}
			r.mu.Lock()
			r.got = append(r.got, ev)
			r.mu.Unlock()
		}
	}
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestJournalServiceConsumesBus(t *testing.T) {
	bus := events.NewBus()
	runner := &recordingRunner{}
	svc := NewJournalService(runner, bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("service did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}
	bus.Publish(events.New(events.TypeCacheHit, 1, "hit"))
	for runner.count() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("event not consumed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}
	if bus.SubscriberCount() != 0 {
		t.Error("subscription was not released")
	}
}

func TestFeedServiceStopsWhenBusCloses(t *testing.T) {
	bus := events.NewBus()
	bus.Close()
	err := NewJournalService(&recordingRunner{}, bus).Serve(context.Background())
	if !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve = %v, want ErrDoNotRestart", err)
	}
}
