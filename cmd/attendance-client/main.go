// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

// Command attendance-client queries a running relay and prints the records
// as JSON on stdout.
//
// Usage:
//
//	attendance-client [flags] logs|users|recent|chunks
//
// Examples:
//
//	attendance-client -machine 1 -host 10.0.0.21 logs -from "2026-01-01 00:00:00"
//	attendance-client -machine 1 -mockup recent -days 3
//	attendance-client -machine 2 chunks -from "2025-01-01 00:00:00" -to "2026-01-01 00:00:00" -chunk 30
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/client"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/device"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
)

type options struct {
	addr    string
	machine int
	host    string
	port    int
	mockup  bool
	timeout time.Duration
	pretty  bool
	verbose bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		logging.Error().Err(err).Msg("Request failed")
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	fs := flag.NewFlagSet("attendance-client", flag.ContinueOnError)
	fs.StringVar(&opts.addr, "addr", "127.0.0.1:9999", "relay address")
	fs.IntVar(&opts.machine, "machine", 1, "machine number")
	fs.StringVar(&opts.host, "host", "", "device IP address")
	fs.IntVar(&opts.port, "port", device.DefaultPort, "device port")
	fs.BoolVar(&opts.mockup, "mockup", false, "use the MOCKUP_* operations")
	fs.DurationVar(&opts.timeout, "timeout", client.DefaultReadTimeout, "read timeout")
	fs.BoolVar(&opts.pretty, "pretty", false, "indent JSON output")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	if err := logging.Init(logging.Config{Level: level, Format: "console", Timestamp: true}); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command: logs, users, recent or chunks")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := client.New(opts.addr)
	c.Mockup = opts.mockup
	c.ReadTimeout = opts.timeout
	target := device.Target{Machine: opts.machine, Host: opts.host, Port: opts.port}

	records, err := dispatch(ctx, c, target, fs.Arg(0), fs.Args()[1:])
	if err != nil {
		return err
	}
	logging.Debug().Int("records", len(records)).Int("machine", opts.machine).Msg("Received records")
	return write(records, opts.pretty)
}

func dispatch(ctx context.Context, c *client.Client, target device.Target, cmd string, args []string) ([]models.LogRecord, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fromStr := fs.String("from", "", "start time, yyyy-MM-dd HH:mm:ss")
	toStr := fs.String("to", "", "end time, yyyy-MM-dd HH:mm:ss")
	days := fs.Int("days", client.DefaultRecentDays, "days back for recent")
	chunk := fs.Int("chunk", client.DefaultChunkDays, "chunk size in days")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	from, err := models.ParseWireTime(*fromStr)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	to, err := models.ParseWireTime(*toStr)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}

	switch cmd {
	case "logs":
		return c.GetLogs(ctx, target, from, to)
	case "users":
		return c.GetUsers(ctx, target)
	case "recent":
		return c.GetRecent(ctx, target, *days)
	case "chunks":
		if from == nil {
			return nil, errors.New("chunks requires -from")
		}
		end := time.Now()
		if to != nil {
			end = *to
		}
		return c.GetLogsInChunks(ctx, target, *from, end, *chunk)
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

func write(records []models.LogRecord, pretty bool) error {
	if records == nil {
		records = []models.LogRecord{}
	}
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(records)
}
