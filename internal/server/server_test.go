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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/cache"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/config"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/device"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/protocol"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/sync"
)

func startServer(t *testing.T, cfg Config, h Handler) *Server {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	s := New(cfg, h, nil)
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		<-done
	})
	return s
}

type client struct {
	t  *testing.T
	nc net.Conn
	r  *bufio.Reader
}

func dial(t *testing.T, s *Server) *client {
	t.Helper()
	nc, err := net.DialTimeout("tcp", s.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = nc.Close() })
	_ = nc.SetDeadline(time.Now().Add(5 * time.Second))
	return &client{t: t, nc: nc, r: bufio.NewReader(nc)}
}

func (c *client) send(line string) {
	c.t.Helper()
	if _, err := fmt.Fprintf(c.nc, "%s\n", line); err != nil {
		c.t.Fatalf("send: %v", err)
	}
}

func (c *client) readLines(n int) []string {
	c.t.Helper()
	lines := make([]string, 0, n)
	for range n {
		line, err := c.r.ReadString('\n')
		if err != nil {
			c.t.Fatalf("read: %v (got %q)", err, lines)
		}
		lines = append(lines, strings.TrimRight(line, "\n"))
	}
	return lines
}

func fixtureService(t *testing.T) *sync.Service {
	t.Helper()
	dir := t.TempDir()
	lines := []string{
		"1\tGranted\t101\tby FP\tAny\tNONE\tClose\t2024-01-02 08:00:00\tNo",
		"2\tGranted\t102\tby FP\tAny\tNONE\tClose\t2024-01-02 08:05:00\tNo",
		"3\tDenied\t103\tby FP\tAny\tNONE\tClose\t2024-01-02 08:06:00\tNo",
		"4\tGranted\t104\tby CD\tAny\tNONE\tClose\t2024-01-03 17:30:00\tNo",
	}
	if err := os.WriteFile(filepath.Join(dir, "log.txt"), []byte(strings.Join(lines, "\n")), 0o600); err != nil {
		t.Fatal(err)
	}
	src := sync.NewDeviceSource("device", device.NewFixtureReader(dir), config.DeviceConfig{}, config.BreakerConfig{}, nil)
	return sync.NewService(cache.NewRegistry(cache.Options{Dir: t.TempDir()}), src, src)
}

func TestGetLogsSkipsUngranted(t *testing.T) {
	s := startServer(t, Config{}, fixtureService(t))
	c := dial(t, s)

	c.send("1|10.0.0.5|4370|2024-01-01 00:00:00|2024-01-31 23:59:59")
	lines := c.readLines(2)
	if lines[1] != protocol.ExitCommand {
		t.Fatalf("second line = %q", lines[1])
	}
	records, err := protocol.ReadResponse(bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n")))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for _, r := range records {
		if r.EnrollNumber == 103 {
			t.Error("denied record was returned")
		}
	}
}

func TestMalformedRequestKeepsConnection(t *testing.T) {
	s := startServer(t, Config{}, fixtureService(t))
	c := dial(t, s)

	c.send("abc")
	lines := c.readLines(2)
	if lines[0] != protocol.InvalidFormatPayload || lines[1] != protocol.ExitCommand {
		t.Fatalf("response = %q", lines)
	}

	c.send("GETUSERS|1|127.0.0.1|4370")
	lines = c.readLines(2)
	if !strings.HasPrefix(lines[0], "[") || lines[1] != protocol.ExitCommand {
		t.Fatalf("response after error = %q", lines)
	}
}

func TestExitClosesConnection(t *testing.T) {
	for _, line := range []string{"EXIT", "exit", ""} {
		t.Run(fmt.Sprintf("%q", line), func(t *testing.T) {
			s := startServer(t, Config{}, fixtureService(t))
			c := dial(t, s)
			c.send(line)
			if _, err := c.r.ReadString('\n'); !errors.Is(err, io.EOF) {
				t.Fatalf("expected EOF after %q, got %v", line, err)
			}
		})
	}
}

func TestHandlerErrorStillAnswers(t *testing.T) {
	h := HandlerFunc(func(context.Context, protocol.Request) ([]models.LogRecord, error) {
		return nil, errors.New("device offline")
	})
	s := startServer(t, Config{}, h)
	c := dial(t, s)

	c.send("GETLOGS|1|10.0.0.1|4370")
	if lines := c.readLines(2); lines[0] != "[]" {
		t.Fatalf("payload = %q, want []", lines[0])
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	h := HandlerFunc(func(_ context.Context, req protocol.Request) ([]models.LogRecord, error) {
		if req.Target.Machine == 13 {
			panic("boom")
		}
		return []models.LogRecord{{EnrollNumber: 1, Granted: true, Year: 2024, Month: 1, Day: 1}}, nil
	})
	s := startServer(t, Config{}, h)
	c := dial(t, s)

	c.send("13|10.0.0.1|4370")
	if lines := c.readLines(2); lines[0] != "[]" {
		t.Fatalf("payload after panic = %q", lines[0])
	}
	c.send("1|10.0.0.1|4370")
	if lines := c.readLines(2); !strings.Contains(lines[0], `"vEnrollNumber":1`) {
		t.Fatalf("payload = %q", lines[0])
	}
}

func TestLineTooLong(t *testing.T) {
	s := startServer(t, Config{MaxLineBytes: 64}, fixtureService(t))
	c := dial(t, s)

	c.send(strings.Repeat("9", 200))
	lines := c.readLines(2)
	if !strings.HasPrefix(lines[0], "ERROR:") {
		t.Fatalf("payload = %q", lines[0])
	}
	if _, err := c.r.ReadString('\n'); !errors.Is(err, io.EOF) {
		t.Fatalf("connection should close, got %v", err)
	}
}

func TestMaxConnections(t *testing.T) {
	s := startServer(t, Config{MaxConnections: 1}, fixtureService(t))
	first := dial(t, s)
	first.send("1|127.0.0.1|4370")
	first.readLines(2)

	second := dial(t, s)
	lines := second.readLines(2)
	if !strings.HasPrefix(lines[0], "ERROR:") {
		t.Fatalf("second connection payload = %q", lines[0])
	}

	first.send("EXIT")
	deadline := time.Now().Add(2 * time.Second)
	for s.ActiveConnections() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	third := dial(t, s)
	third.send("1|127.0.0.1|4370")
	if lines := third.readLines(2); !strings.HasPrefix(lines[0], "[") {
		t.Fatalf("third connection payload = %q", lines[0])
	}
}

func TestShutdownClosesIdleConnections(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, fixtureService(t), nil)
	if err := s.Listen(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	c := dial(t, s)
	c.send("1|127.0.0.1|4370")
	c.readLines(2)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, ErrServerClosed) {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if _, err := c.r.ReadString('\n'); !errors.Is(err, io.EOF) {
		t.Fatalf("idle connection should be closed, got %v", err)
	}
}

func TestRateLimitedConnectionStillServes(t *testing.T) {
	s := startServer(t, Config{RequestsPerSecond: 50, RequestBurst: 1}, fixtureService(t))
	c := dial(t, s)
	for range 3 {
		c.send("MOCKUP_GETLOGS|1|127.0.0.1|4370")
		if lines := c.readLines(2); !strings.HasPrefix(lines[0], "[") {
			t.Fatalf("payload = %q", lines[0])
		}
	}
}
