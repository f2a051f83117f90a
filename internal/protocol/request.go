// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

// Package protocol implements the line-oriented request/response format
// spoken on the relay's TCP port.
//
// A request is one line of pipe-separated fields:
//
//	[OP|]machine|host|port[|from|to]
//
// A response is always two lines: a payload (a JSON array of log records
// or an "ERROR: ..." message) followed by the literal EXIT.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/device"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
	"github.com/Ramayana87/Server-Suncall-KJTech/internal/validation"
)

const (
	// FieldSeparator separates request fields.
	FieldSeparator = "|"

	// ExitCommand terminates a response and, sent by a client, the
	// connection.
	ExitCommand = "EXIT"

	minPositionalFields = 3
)

// Operation is the closed set of request kinds.
type Operation int

const (
	OpGetLogs Operation = iota
	OpGetUsers
	OpMockupGetLogs
	OpMockupGetUsers
)

var operationNames = [...]string{
	OpGetLogs:        "GETLOGS",
	OpGetUsers:       "GETUSERS",
	OpMockupGetLogs:  "MOCKUP_GETLOGS",
	OpMockupGetUsers: "MOCKUP_GETUSERS",
}

func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return "UNKNOWN"
	}
	return operationNames[o]
}

// IsMockup reports whether the operation reads fixture files.
func (o Operation) IsMockup() bool {
	return o == OpMockupGetLogs || o == OpMockupGetUsers
}

// IsUsers reports whether the operation returns unique fingerprint users.
func (o Operation) IsUsers() bool {
	return o == OpGetUsers || o == OpMockupGetUsers
}

// ParseOperation matches a keyword case-insensitively.
func ParseOperation(s string) (Operation, bool) {
	s = strings.TrimSpace(s)
	for i, name := range operationNames {
		if strings.EqualFold(name, s) {
			return Operation(i), true
		}
	}
	return 0, false
}

// Request is a decoded request line.
type Request struct {
	Op Operation

	// Legacy is set when the line had no operation keyword.
	Legacy bool

	Target device.Target

	// From and To are nil when unbounded.
	From *time.Time
	To   *time.Time
}

func (r Request) String() string {
	return fmt.Sprintf("%s %s [%s, %s]", r.Op, r.Target,
		orUnbounded(r.From), orUnbounded(r.To))
}

func orUnbounded(t *time.Time) string {
	if t == nil {
		return "*"
	}
	return models.FormatWireTime(t)
}

// ParseError reports a request line that does not follow the grammar.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid request %q: %s", e.Line, e.Reason)
}

// ParseRequest decodes a request line. Any failure is a *ParseError.
func ParseRequest(line string) (Request, error) {
	var req Request
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, FieldSeparator)

	if op, ok := ParseOperation(fields[0]); ok {
		req.Op = op
		fields = fields[1:]
	} else {
		req.Op = OpGetLogs
		req.Legacy = true
	}

	if len(fields) < minPositionalFields {
		return req, &ParseError{Line: line, Reason: fmt.Sprintf("expected at least %d fields, got %d", minPositionalFields, len(fields))}
	}

	machine, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return req, &ParseError{Line: line, Reason: "machine number is not an integer"}
	}
	port, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return req, &ParseError{Line: line, Reason: "port is not an integer"}
	}
	req.Target = device.Target{
		Machine: machine,
		Host:    strings.TrimSpace(fields[1]),
		Port:    port,
	}
	if verr := validation.ValidateStruct(req.Target); verr != nil {
		return req, &ParseError{Line: line, Reason: verr.Error()}
	}

	if len(fields) > 3 {
		if req.From, err = models.ParseWireTime(strings.TrimSpace(fields[3])); err != nil {
			return req, &ParseError{Line: line, Reason: "invalid from date"}
		}
	}
	if len(fields) > 4 {
		if req.To, err = models.ParseWireTime(strings.TrimSpace(fields[4])); err != nil {
			return req, &ParseError{Line: line, Reason: "invalid to date"}
		}
	}
	return req, nil
}

// Format encodes req as a request line without the trailing newline. The
// keyword is omitted for legacy requests.
func (r Request) Format() string {
	fields := make([]string, 0, 6)
	if !r.Legacy {
		fields = append(fields, r.Op.String())
	}
	fields = append(fields,
		strconv.Itoa(r.Target.Machine),
		r.Target.Host,
		strconv.Itoa(r.Target.Port),
	)
	if r.From != nil || r.To != nil {
		fields = append(fields, models.FormatWireTime(r.From), models.FormatWireTime(r.To))
	}
	return strings.Join(fields, FieldSeparator)
}

// IsExit reports whether a client line closes the connection.
func IsExit(line string) bool {
	line = strings.TrimSpace(line)
	return line == "" || strings.EqualFold(line, ExitCommand)
}
