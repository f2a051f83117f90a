// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package services

import (
	"context"

	"github.com/thejerf/suture/v4"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
)

// DefaultFeedBuffer is the subscription buffer of feed consumers.
const DefaultFeedBuffer = 256

// Subscriber is satisfied by *events.Bus.
type Subscriber interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

// ContextHub matches *websocket.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context, feed <-chan events.Event) error
}

// JournalRunner matches *journal.Journal.
type JournalRunner interface {
	Run(ctx context.Context, feed <-chan events.Event) error
}

// FeedService runs an event consumer on a bus subscription taken at each
// start and released when the consumer returns.
type FeedService struct {
	bus     Subscriber
	buffer  int
	consume func(ctx context.Context, feed <-chan events.Event) error
	name    string
}

// NewWebSocketHubService feeds hub from bus.
func NewWebSocketHubService(hub ContextHub, bus Subscriber) *FeedService {
	return &FeedService{bus: bus, buffer: DefaultFeedBuffer, consume: hub.RunWithContext, name: "websocket-hub"}
}

// NewJournalService records bus events into j.
func NewJournalService(j JournalRunner, bus Subscriber) *FeedService {
	return &FeedService{bus: bus, buffer: DefaultFeedBuffer, consume: j.Run, name: "event-journal"}
}

// Serve implements suture.Service. A closed bus ends the service for good.
func (s *FeedService) Serve(ctx context.Context) error {
	feed, cancel := s.bus.Subscribe(s.buffer)
	defer cancel()

	err := s.consume(ctx, feed)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		return suture.ErrDoNotRestart
	}
	return err
}

func (s *FeedService) String() string {
	return s.name
}
