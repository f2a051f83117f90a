// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
)

const (
	errorPrefix = "ERROR:"

	// InvalidFormatPayload answers a request that fails to parse.
	InvalidFormatPayload = errorPrefix + " Invalid format"
)

var (
	// ErrMissingExit reports a response whose payload is not followed by
	// EXIT.
	ErrMissingExit = errors.New("response not terminated by EXIT")

	// ErrLineTooLong reports a line longer than the reader allows.
	ErrLineTooLong = errors.New("line too long")
)

// ServerError is an "ERROR: ..." payload received from the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server error: " + e.Message
}

// EncodeRecords renders the payload line for records. A nil slice encodes
// as an empty array.
func EncodeRecords(records []models.LogRecord) ([]byte, error) {
	if records == nil {
		records = []models.LogRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return data, nil
}

// ErrorPayload renders an error payload line.
func ErrorPayload(msg string) []byte {
	return []byte(errorPrefix + " " + msg)
}

// WriteResponse writes payload and the EXIT terminator as two lines.
func WriteResponse(w io.Writer, payload []byte) error {
	buf := make([]byte, 0, len(payload)+len(ExitCommand)+2)
	buf = append(buf, payload...)
	buf = append(buf, '\n')
	buf = append(buf, ExitCommand...)
	buf = append(buf, '\n')
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// ReadLine reads one line of at most maxBytes bytes without its line
// terminator. A maxBytes of 0 means unlimited.
func ReadLine(r *bufio.Reader, maxBytes int) (string, error) {
	var sb strings.Builder
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", err
		}
		sb.Write(chunk)
		if maxBytes > 0 && sb.Len() > maxBytes {
			return "", ErrLineTooLong
		}
		if !isPrefix {
			return sb.String(), nil
		}
	}
}

// ReadResponse reads a payload line and its EXIT terminator. An error
// payload is returned as a *ServerError.
func ReadResponse(r *bufio.Reader) ([]models.LogRecord, error) {
	payload, err := ReadLine(r, 0)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	exit, err := ReadLine(r, 0)
	if err != nil || !strings.EqualFold(strings.TrimSpace(exit), ExitCommand) {
		return nil, ErrMissingExit
	}

	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, errorPrefix) {
		return nil, &ServerError{Message: strings.TrimSpace(strings.TrimPrefix(payload, errorPrefix))}
	}

	var records []models.LogRecord
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return records, nil
}
