// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package events

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/metrics"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(4)
	defer cancel()

	bus.Publish(New(TypeCacheHit, 3, "served from cache"))

	select {
	case ev := <-ch:
		if ev.Type != TypeCacheHit || ev.Machine != 3 {
			t.Errorf("unexpected event %+v", ev)
		}
		if ev.ID == "" || ev.Timestamp.IsZero() || ev.SchemaVersion != SchemaVersion {
			t.Errorf("event not stamped: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBusStampsBareEvents(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Publish(Event{Type: TypeConnOpened})
	ev := <-ch
	if ev.ID == "" || ev.Timestamp.IsZero() {
		t.Errorf("bare event should be stamped: %+v", ev)
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe(1)
	defer cancel()

	before := testutil.ToFloat64(metrics.EventsDropped)
	bus.Publish(New(TypeRequest, 1, "first"))
	bus.Publish(New(TypeRequest, 1, "second"))

	if got := testutil.ToFloat64(metrics.EventsDropped) - before; got != 1 {
		t.Errorf("dropped delta = %v, want 1", got)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	if bus.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", bus.SubscriberCount())
	}

	cancel()
	cancel()
	if bus.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0", bus.SubscriberCount())
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}

	// Publishing with no subscribers must not block or panic.
	bus.Publish(New(TypeRequest, 1, ""))
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	bus.Close()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close")
	}
	late, _ := bus.Subscribe(1)
	if _, ok := <-late; ok {
		t.Error("subscribe after Close should return a closed channel")
	}
	bus.Publish(New(TypeServerStopped, 0, ""))
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1000)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(m int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(New(TypeCacheHit, m, ""))
			}
		}(i)
	}
	wg.Wait()

	if len(ch) != 500 {
		t.Errorf("received %d events, want 500", len(ch))
	}
}

func TestEventWith(t *testing.T) {
	base := New(TypeCacheSynced, 2, "synced")
	a := base.With("added", 5)
	b := a.With("total", 10)

	if base.Data != nil {
		t.Error("With must not mutate the receiver")
	}
	if len(a.Data) != 1 || len(b.Data) != 2 || b.Data["added"] != 5 {
		t.Errorf("unexpected data a=%v b=%v", a.Data, b.Data)
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) != Discard {
		t.Error("nil publisher should map to Discard")
	}
	bus := NewBus()
	if OrDiscard(bus) != Publisher(bus) {
		t.Error("non-nil publisher should be returned unchanged")
	}
	Discard.Publish(New(TypeRequest, 0, ""))
}
