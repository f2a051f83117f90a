// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// RelayServer matches the lifecycle of *server.Server.
type RelayServer interface {
	Listen() error
	Addr() net.Addr
	Serve(ctx context.Context) error
}

// RelayServerService runs the TCP relay. The listener may be bound before
// the tree starts so that a taken port fails at startup; after a restart
// the service binds again.
type RelayServerService struct {
	server RelayServer
	name   string
}

// NewRelayServerService wraps srv.
func NewRelayServerService(srv RelayServer) *RelayServerService {
	return &RelayServerService{server: srv, name: "relay-server"}
}

// Serve implements suture.Service. The relay drains its connections when
// ctx ends.
func (s *RelayServerService) Serve(ctx context.Context) error {
	if s.server.Addr() == nil {
		if err := s.server.Listen(); err != nil {
			return fmt.Errorf("relay listen failed: %w", err)
		}
	}

	err := s.server.Serve(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		return errors.New("relay server stopped unexpectedly")
	}
	return fmt.Errorf("relay server failed: %w", err)
}

func (s *RelayServerService) String() string {
	return s.name
}
