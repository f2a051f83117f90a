// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package models

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestLogRecordKeys(t *testing.T) {
	t.Parallel()

	r := LogRecord{EnrollNumber: 42, Year: 2025, Month: 3, Day: 4, Hour: 5, Minute: 6, Second: 7 | 1<<8}

	if got := r.TimeKey(); got != "2025-03-04 05:06:07" {
		t.Errorf("TimeKey() = %q, want 2025-03-04 05:06:07", got)
	}
	if got := r.IDKey(); got != "00000042" {
		t.Errorf("IDKey() = %q, want 00000042", got)
	}
	if got := r.DedupKey(); got != "42_2025-03-04 05:06:07" {
		t.Errorf("DedupKey() = %q", got)
	}
	if !r.PhotoCaptured() {
		t.Error("PhotoCaptured() = false, want true")
	}
	if r.Seconds() != 7 {
		t.Errorf("Seconds() = %d, want 7", r.Seconds())
	}

	none := LogRecord{EnrollNumber: NoEnrollNumber}
	if got := none.IDKey(); got != "NONE" {
		t.Errorf("IDKey() = %q, want NONE", got)
	}
}

func TestLogRecordValid(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)
	tests := []struct {
		name string
		rec  LogRecord
		want bool
	}{
		{"valid", LogRecord{EnrollNumber: 1, Granted: true, Year: 2025}, true},
		{"next year allowed", LogRecord{EnrollNumber: 1, Granted: true, Year: 2026}, true},
		{"too far ahead", LogRecord{EnrollNumber: 1, Granted: true, Year: 2027}, false},
		{"too old", LogRecord{EnrollNumber: 1, Granted: true, Year: 1999}, false},
		{"denied", LogRecord{EnrollNumber: 1, Granted: false, Year: 2025}, false},
		{"no identity", LogRecord{EnrollNumber: NoEnrollNumber, Granted: true, Year: 2025}, false},
		{"zero identity", LogRecord{EnrollNumber: 0, Granted: true, Year: 2025}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Valid(now); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogRecordTime(t *testing.T) {
	t.Parallel()

	r := LogRecord{Year: 2024, Month: 2, Day: 29, Hour: 23, Minute: 59, Second: 59 | 1<<8}
	got, ok := r.Time()
	if !ok {
		t.Fatal("Time() rejected a leap day")
	}
	if got.Second() != 59 || got.Day() != 29 {
		t.Errorf("Time() = %v", got)
	}

	bad := []LogRecord{
		{Year: 2023, Month: 2, Day: 29},
		{Year: 2024, Month: 13, Day: 1},
		{Year: 2024, Month: 1, Day: 1, Hour: 24},
		{Year: 2024, Month: 4, Day: 31},
	}
	for _, r := range bad {
		if _, ok := r.Time(); ok {
			t.Errorf("Time() accepted invalid date %s", r.TimeKey())
		}
	}
}

func TestGrantFlagJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(LogRecord{EnrollNumber: 7, Granted: true})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"vGranted":1`) {
		t.Errorf("granted should encode as 1, got %s", data)
	}

	inputs := map[string]bool{
		`{"vGranted":1}`:     true,
		`{"vGranted":0}`:     false,
		`{"vGranted":true}`:  true,
		`{"vGranted":false}`: false,
		`{"vGranted":null}`:  false,
	}
	for in, want := range inputs {
		var r LogRecord
		if err := json.Unmarshal([]byte(in), &r); err != nil {
			t.Errorf("Unmarshal(%s): %v", in, err)
			continue
		}
		if bool(r.Granted) != want {
			t.Errorf("Unmarshal(%s) granted = %v, want %v", in, r.Granted, want)
		}
	}
}

func TestCompareRecords(t *testing.T) {
	t.Parallel()

	a := &LogRecord{EnrollNumber: 2, Year: 2025, Month: 1, Day: 1, Hour: 8}
	b := &LogRecord{EnrollNumber: 1, Year: 2025, Month: 1, Day: 1, Hour: 9}
	c := &LogRecord{EnrollNumber: 1, Year: 2025, Month: 1, Day: 1, Hour: 8}

	if CompareRecords(a, b) >= 0 {
		t.Error("earlier hour should sort first")
	}
	if CompareRecords(c, a) >= 0 {
		t.Error("same time should fall back to enroll number")
	}
	if CompareRecords(a, a) != 0 {
		t.Error("record should compare equal to itself")
	}
}

func TestParseWireTime(t *testing.T) {
	t.Parallel()

	got, err := ParseWireTime("")
	if err != nil || got != nil {
		t.Errorf("ParseWireTime(\"\") = %v, %v; want nil, nil", got, err)
	}

	got, err = ParseWireTime("2024-01-31 23:59:59")
	if err != nil {
		t.Fatalf("ParseWireTime: %v", err)
	}
	if FormatWireTime(got) != "2024-01-31 23:59:59" {
		t.Errorf("round trip = %q", FormatWireTime(got))
	}

	if _, err := ParseWireTime("2024/01/31"); err == nil {
		t.Error("expected error for wrong layout")
	}
}
