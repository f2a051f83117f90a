// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package models

import (
	"fmt"
	"strings"
)

// Verification method bits reported in LogRecord.Method.
const (
	MethodByID       = 0x01
	MethodByCard     = 0x02
	MethodByFinger   = 0x04
	MethodDuress     = 0x08
	MethodLimitTime  = 0x10
	MethodAntiPass   = 0x20
	MethodTimeZone   = 0x40
	MethodFaceArea   = 0x80
	methodModeMask   = MethodByID | MethodByCard | MethodByFinger
	noFunctionNumber = 40
)

// FingerprintMethod is the decoded method of a plain fingerprint match.
const FingerprintMethod = "by FP"

var methodModes = [...]string{
	0: "by CD2",
	1: "by ID",
	2: "by CD",
	3: "by ID&CD",
	4: "by FP",
	5: "by ID&FP",
	6: "by CD&FP",
	7: "by ID&CD&FP",
}

var doorModes = [...]string{
	"Any",
	"Finger",
	"CD or FP",
	"ID&FP or CD",
	"ID&FP or ID&CD",
	"ID&FP or CD&FP",
	"Open",
	"Close",
	"Card",
	"ID or FP",
	"ID or CD",
	"ID&CD",
	"CD&FP",
	"ID&FP",
	"ID&CD&FP",
}

// MethodString decodes the verification method for display. A duress flag
// replaces the mode text; the remaining flags are appended as tags.
func (r *LogRecord) MethodString() string {
	s := methodModes[r.Method&methodModeMask]
	if r.Method&MethodDuress != 0 {
		s = "[DURESS]"
	}
	if r.Method&MethodLimitTime != 0 {
		s += " [LT]"
	}
	if r.Method&MethodAntiPass != 0 {
		s += " [AP]"
	}
	if r.Method&MethodTimeZone != 0 {
		s += " [TZ]"
	}
	if r.Method&MethodFaceArea != 0 {
		s += " [FACE]"
	}
	return s
}

// IsFingerprintOnly reports whether the record was verified by fingerprint
// alone, with no extra method flags.
func (r *LogRecord) IsFingerprintOnly() bool {
	return r.MethodString() == FingerprintMethod
}

// DoorModeString decodes the door mode, "Unknown" when out of range.
func (r *LogRecord) DoorModeString() string {
	if r.DoorMode < 0 || r.DoorMode >= len(doorModes) {
		return "Unknown"
	}
	return doorModes[r.DoorMode]
}

// FunctionString decodes the function key, "NONE" when no key was pressed.
func (r *LogRecord) FunctionString() string {
	if r.FunctionNumber == noFunctionNumber {
		return "NONE"
	}
	return fmt.Sprintf("F%d-%d", r.FunctionNumber/10+1, r.FunctionNumber%10)
}

// SensorString decodes the door sensor state.
func (r *LogRecord) SensorString() string {
	if r.Sensor == 1 {
		return "Open"
	}
	return "Close"
}

// ResultString decodes the access outcome.
func (r *LogRecord) ResultString() string {
	if r.Granted {
		return "Granted"
	}
	return "Denied"
}

// ParseMethod reverses MethodString for the mode part only. It accepts the
// decoded text with or without the "by " prefix and returns false for
// anything it does not recognize.
func ParseMethod(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if !strings.HasPrefix(s, "by ") {
		s = "by " + s
	}
	for i, m := range methodModes {
		if strings.EqualFold(m, s) {
			return i, true
		}
	}
	return 0, false
}

// ParseDoorMode reverses DoorModeString.
func ParseDoorMode(s string) (int, bool) {
	s = strings.TrimSpace(s)
	for i, m := range doorModes {
		if strings.EqualFold(m, s) {
			return i, true
		}
	}
	return 0, false
}
