// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package models

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

const (
	// NoEnrollNumber marks a record without an enrolled identity.
	NoEnrollNumber = -1

	// MinValidYear is the lower bound for a plausible record year.
	MinValidYear = 2000

	// TimeKeyLayout is the canonical timestamp layout used for keys and
	// for request date fields on the wire.
	TimeKeyLayout = "2006-01-02 15:04:05"

	secondMask     = 0xFF
	photoFlagShift = 8
)

// GrantFlag is the access outcome of a record. It encodes as 1/0 so that
// payloads stay readable by consumers that expect integer flags, and decodes
// from either numbers or JSON booleans.
type GrantFlag bool

// MarshalJSON encodes the flag as 1 or 0.
func (g GrantFlag) MarshalJSON() ([]byte, error) {
	if g {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// UnmarshalJSON accepts 1/0, true/false and null.
func (g *GrantFlag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true":
		*g = true
		return nil
	case "false", "null", "":
		*g = false
		return nil
	}
	n, err := strconv.Atoi(string(bytes.Trim(data, `"`)))
	if err != nil {
		return fmt.Errorf("invalid granted flag %s: %w", data, err)
	}
	*g = n == 1
	return nil
}

// LogRecord is one attendance event read from a terminal or a fixture.
type LogRecord struct {
	No             int       `json:"no"`
	EnrollNumber   int       `json:"vEnrollNumber"`
	Granted        GrantFlag `json:"vGranted"`
	Method         int       `json:"vMethod"`
	DoorMode       int       `json:"vDoorMode"`
	FunctionNumber int       `json:"vFunNumber"`
	Sensor         int       `json:"vSensor"`
	Year           int       `json:"vYear"`
	Month          int       `json:"vMonth"`
	Day            int       `json:"vDay"`
	Hour           int       `json:"vHour"`
	Minute         int       `json:"vMinute"`
	Second         int       `json:"vSecond"`
	UserName       string    `json:"userName"`
}

// Seconds returns the true seconds value with the photo flag masked off.
func (r *LogRecord) Seconds() int {
	return r.Second & secondMask
}

// PhotoCaptured reports whether the terminal stored a photo for the event.
func (r *LogRecord) PhotoCaptured() bool {
	return (r.Second>>photoFlagShift)&secondMask == 1
}

// TimeKey returns the canonical "YYYY-MM-DD HH:mm:ss" form of the record
// time. It is built from the raw components and never fails.
func (r *LogRecord) TimeKey() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
		r.Year, r.Month, r.Day, r.Hour, r.Minute, r.Seconds())
}

// IDKey returns the zero-padded enroll number, or "NONE" for records
// without an identity.
func (r *LogRecord) IDKey() string {
	if r.EnrollNumber == NoEnrollNumber {
		return "NONE"
	}
	return fmt.Sprintf("%08d", r.EnrollNumber)
}

// DedupKey identifies a record for merge purposes.
func (r *LogRecord) DedupKey() string {
	return strconv.Itoa(r.EnrollNumber) + "_" + r.TimeKey()
}

// Time converts the components into a local time. The second return value
// is false when the components do not form a real calendar date.
func (r *LogRecord) Time() (time.Time, bool) {
	return DateFromComponents(r.Year, r.Month, r.Day, r.Hour, r.Minute, r.Seconds())
}

// Valid reports whether the record carries an identity, was granted, and
// has a plausible year relative to now.
func (r *LogRecord) Valid(now time.Time) bool {
	if r.EnrollNumber <= 0 || !bool(r.Granted) {
		return false
	}
	return r.Year >= MinValidYear && r.Year <= now.Year()+1
}

// DateFromComponents builds a time.Time in the local zone and rejects
// components that time.Date would silently normalize (Feb 30, hour 25).
func DateFromComponents(year, month, day, hour, minute, second int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 ||
		hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// CompareRecords orders records by their date-time tuple, then by enroll
// number and finally by the raw second field so the order is total.
func CompareRecords(a, b *LogRecord) int {
	pairs := [...][2]int{
		{a.Year, b.Year},
		{a.Month, b.Month},
		{a.Day, b.Day},
		{a.Hour, b.Hour},
		{a.Minute, b.Minute},
		{a.Seconds(), b.Seconds()},
		{a.EnrollNumber, b.EnrollNumber},
		{a.Second, b.Second},
	}
	for _, p := range pairs {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}

// ParseWireTime parses a request date field. An empty string yields nil,
// meaning the range is unbounded on that side.
func ParseWireTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(TimeKeyLayout, s, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FormatWireTime is the inverse of ParseWireTime.
func FormatWireTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(TimeKeyLayout)
}
