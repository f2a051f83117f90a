// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package websocket

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/events"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/logging"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
	ShutdownReasonFeedClosed      ShutdownReason = "feed_closed"
)

// Message types for client-initiated messages.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is one frame sent to a client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts events to them.
type Hub struct {
	clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	allowedOrigins []string
}

// NewHub creates a hub. allowedOrigins lists the accepted Origin headers
// for browser clients; "*" accepts any origin.
func NewHub(allowedOrigins []string) *Hub {
	return &Hub{
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		clients:        make(map[*Client]bool),
		allowedOrigins: allowedOrigins,
	}
}

// RunWithContext serves the hub until ctx is done or feed is closed. All
// clients are closed on return.
//
// Client lifecycle events are handled before broadcasts so that a client
// registered before an event is published receives it.
func (h *Hub) RunWithContext(ctx context.Context, feed <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(getShutdownReason(ctx))
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(getShutdownReason(ctx))
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case ev, ok := <-feed:
			if !ok {
				h.shutdown(ShutdownReasonFeedClosed)
				return nil
			}
			h.broadcast(ev)
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Int("total_clients", n).Int("machine", c.machine).Msg("websocket client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Int("total_clients", n).Msg("websocket client disconnected")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

func (h *Hub) shutdown(reason ShutdownReason) {
	count := h.GetClientCount()
	h.closeAllClients()
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", count).
		Msg("websocket hub stopped")
}

// sortedClients returns the clients in registration order. Callers hold mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	slices.SortFunc(clients, func(a, b *Client) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	return clients
}

// broadcast delivers ev to every interested client. Clients whose buffer
// is full are dropped.
func (h *Hub) broadcast(ev events.Event) {
	msg := Message{Type: ev.Type, Data: ev}

	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, c := range h.sortedClients() {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- msg:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, c)
		}
	}

	for _, c := range toRemove {
		close(c.send)
		delete(h.clients, c)
		metrics.WSErrors.WithLabelValues("slow_client").Inc()
		logging.Warn().Uint64("client", c.id).Msg("websocket client too slow, disconnected")
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.sortedClients() {
		close(c.send)
		delete(h.clients, c)
	}
	metrics.WSConnections.Set(0)
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients) and browser requests from an allowed origin.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// ServeHTTP upgrades the request and registers a client. The optional
// machine query parameter restricts the stream to one terminal.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	machine := 0
	if raw := r.URL.Query().Get("machine"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 1 {
			http.Error(w, "invalid machine", http.StatusBadRequest)
			return
		}
		machine = m
	}

	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		metrics.WSErrors.WithLabelValues("upgrade").Inc()
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := NewClient(h, conn, machine)
	h.Register <- client
	client.Start()
}
