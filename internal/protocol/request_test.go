// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package protocol

import (
	"errors"
	"testing"
	"time"
)

func TestParseRequest(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	to := time.Date(2024, 1, 31, 23, 59, 59, 0, time.Local)

	tests := []struct {
		name     string
		line     string
		op       Operation
		legacy   bool
		machine  int
		host     string
		port     int
		from, to *time.Time
	}{
		{"legacy three fields", "1|192.168.1.201|4370", OpGetLogs, true, 1, "192.168.1.201", 4370, nil, nil},
		{"legacy with dates", "2|10.0.0.5|4370|2024-01-01 00:00:00|2024-01-31 23:59:59", OpGetLogs, true, 2, "10.0.0.5", 4370, &from, &to},
		{"keyword", "GETLOGS|3|10.0.0.5|4370|2024-01-01 00:00:00|", OpGetLogs, false, 3, "10.0.0.5", 4370, &from, nil},
		{"lower case keyword", "getusers|4|terminal-4|4370", OpGetUsers, false, 4, "terminal-4", 4370, nil, nil},
		{"mockup logs", "MOCKUP_GETLOGS|5|127.0.0.1|4370||2024-01-31 23:59:59", OpMockupGetLogs, false, 5, "127.0.0.1", 4370, nil, &to},
		{"mockup users", "MOCKUP_GETUSERS|6|127.0.0.1|4370", OpMockupGetUsers, false, 6, "127.0.0.1", 4370, nil, nil},
		{"trailing newline", "1|10.0.0.1|4370\r\n", OpGetLogs, true, 1, "10.0.0.1", 4370, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest(tt.line)
			if err != nil {
				t.Fatalf("ParseRequest: %v", err)
			}
			if req.Op != tt.op || req.Legacy != tt.legacy {
				t.Errorf("op=%s legacy=%v", req.Op, req.Legacy)
			}
			if req.Target.Machine != tt.machine || req.Target.Host != tt.host || req.Target.Port != tt.port {
				t.Errorf("target = %+v", req.Target)
			}
			if !sameTime(req.From, tt.from) || !sameTime(req.To, tt.to) {
				t.Errorf("range = %v..%v", req.From, req.To)
			}
		})
	}
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func TestParseRequestErrors(t *testing.T) {
	for _, line := range []string{
		"abc",
		"",
		"GETLOGS|1|10.0.0.1",
		"x|10.0.0.1|4370",
		"1|10.0.0.1|port",
		"1|10.0.0.1|70000",
		"0|10.0.0.1|4370",
		"1||4370",
		"1|10.0.0.1|4370|2024-13-01 00:00:00",
		"1|10.0.0.1|4370|2024-01-01|2024-01-31",
	} {
		t.Run(line, func(t *testing.T) {
			_, err := ParseRequest(line)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("err = %v, want *ParseError", err)
			}
		})
	}
}

func TestRequestFormatRoundTrip(t *testing.T) {
	for _, line := range []string{
		"1|10.0.0.1|4370",
		"GETUSERS|2|10.0.0.2|4370",
		"MOCKUP_GETLOGS|3|127.0.0.1|4370|2024-01-01 00:00:00|2024-01-31 23:59:59",
		"GETLOGS|4|10.0.0.4|4370|2024-01-01 00:00:00|",
	} {
		req, err := ParseRequest(line)
		if err != nil {
			t.Fatalf("ParseRequest(%q): %v", line, err)
		}
		if got := req.Format(); got != line {
			t.Errorf("Format() = %q, want %q", got, line)
		}
	}
}

func TestOperation(t *testing.T) {
	if op, ok := ParseOperation("Mockup_GetUsers"); !ok || op != OpMockupGetUsers {
		t.Errorf("ParseOperation = %v, %v", op, ok)
	}
	if _, ok := ParseOperation("1"); ok {
		t.Error("numeric field must not parse as an operation")
	}
	if !OpMockupGetLogs.IsMockup() || OpGetLogs.IsMockup() {
		t.Error("IsMockup")
	}
	if !OpGetUsers.IsUsers() || OpMockupGetLogs.IsUsers() {
		t.Error("IsUsers")
	}
	if Operation(9).String() != "UNKNOWN" {
		t.Error("out of range operation should be UNKNOWN")
	}
}

func TestIsExit(t *testing.T) {
	for line, want := range map[string]bool{"EXIT": true, "exit\r": true, "": true, "  ": true, "EXITS": false, "1|a|2": false} {
		if got := IsExit(line); got != want {
			t.Errorf("IsExit(%q) = %v", line, got)
		}
	}
}
