// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package device

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Ramayana87/Server-Suncall-KJTech/internal/models"
)

// Fixture file columns, tab separated.
const (
	colNo = iota
	colResult
	colID
	colMethod
	colDoorMode
	colFunction
	colSensor
	colTime
	colCaptured

	minFixtureColumns = colTime + 1
)

const (
	noFunction = 40
	photoFlag  = 1 << 8
)

// ErrFixtureLine reports a fixture line that cannot be decoded.
var ErrFixtureLine = errors.New("invalid fixture line")

var fixtureTimeLayouts = []string{
	models.TimeKeyLayout,
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04:05",
}

// ParseFixtureLine decodes one exported log line. Only the identity, result
// and time columns are required to be well formed; unknown display values
// in the other columns decode to zero.
func ParseFixtureLine(line string) (models.LogRecord, error) {
	var rec models.LogRecord

	parts := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(parts) < minFixtureColumns {
		return rec, fmt.Errorf("%w: %d columns", ErrFixtureLine, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	rec.No, _ = strconv.Atoi(parts[colNo])
	rec.Granted = models.GrantFlag(strings.EqualFold(parts[colResult], "Granted"))

	enroll, err := strconv.Atoi(parts[colID])
	if err != nil {
		rec.EnrollNumber = models.NoEnrollNumber
	} else {
		rec.EnrollNumber = enroll
	}

	rec.Method = parseFixtureMethod(parts[colMethod])
	rec.DoorMode, _ = models.ParseDoorMode(parts[colDoorMode])
	rec.FunctionNumber = parseFixtureFunction(parts[colFunction])
	if strings.EqualFold(parts[colSensor], "Open") {
		rec.Sensor = 1
	}

	t, err := parseFixtureTime(parts[colTime])
	if err != nil {
		return rec, fmt.Errorf("%w: %w", ErrFixtureLine, err)
	}
	rec.Year, rec.Month, rec.Day = t.Year(), int(t.Month()), t.Day()
	rec.Hour, rec.Minute, rec.Second = t.Hour(), t.Minute(), t.Second()

	if len(parts) > colCaptured && isYes(parts[colCaptured]) {
		rec.Second |= photoFlag
	}
	return rec, nil
}

// parseFixtureMethod reverses LogRecord.MethodString, flag tags included.
func parseFixtureMethod(s string) int {
	method := 0
	var mode []string
	for _, field := range strings.Fields(s) {
		switch strings.ToUpper(field) {
		case "[DURESS]":
			method |= models.MethodDuress
		case "[LT]":
			method |= models.MethodLimitTime
		case "[AP]":
			method |= models.MethodAntiPass
		case "[TZ]":
			method |= models.MethodTimeZone
		case "[FACE]":
			method |= models.MethodFaceArea
		default:
			mode = append(mode, field)
		}
	}
	if m, ok := models.ParseMethod(strings.Join(mode, " ")); ok {
		method |= m
	}
	return method
}

// parseFixtureFunction reverses LogRecord.FunctionString ("F2-3" is 13).
func parseFixtureFunction(s string) int {
	if s == "" || strings.EqualFold(s, "NONE") {
		return noFunction
	}
	key, sub, ok := strings.Cut(strings.TrimPrefix(strings.ToUpper(s), "F"), "-")
	if !ok {
		return noFunction
	}
	k, err1 := strconv.Atoi(key)
	n, err2 := strconv.Atoi(sub)
	if err1 != nil || err2 != nil || k < 1 {
		return noFunction
	}
	return (k-1)*10 + n
}

func parseFixtureTime(s string) (time.Time, error) {
	for _, layout := range fixtureTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func isYes(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "y", "true", "1", "captured":
		return true
	}
	return false
}

// FixtureFiles returns the fixture files of machine: {dir}/machine_{N}/*.txt
// when that directory has any, otherwise {dir}/*.txt. Files are sorted by
// name.
func FixtureFiles(dir string, machine int) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("fixture directory: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("machine_%d", machine), "*.txt"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		if files, err = filepath.Glob(filepath.Join(dir, "*.txt")); err != nil {
			return nil, err
		}
	}
	slices.Sort(files)
	return files, nil
}

// FixtureStats counts what LoadFixtures read.
type FixtureStats struct {
	Files   int
	Lines   int
	Records int
	Invalid int
}

// LoadFixtures decodes every line of the fixture files of machine. Lines
// that fail to decode are counted and skipped. No record filter is applied.
func LoadFixtures(dir string, machine int) ([]models.LogRecord, FixtureStats, error) {
	var stats FixtureStats

	files, err := FixtureFiles(dir, machine)
	if err != nil {
		return nil, stats, err
	}

	records := make([]models.LogRecord, 0)
	for _, path := range files {
		if err := readFixtureFile(path, &records, &stats); err != nil {
			return nil, stats, err
		}
		stats.Files++
	}
	stats.Records = len(records)
	return records, stats, nil
}

func readFixtureFile(path string, records *[]models.LogRecord, stats *FixtureStats) error {
	f, err := os.Open(path) //nolint:gosec // fixture paths come from configuration
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Lines++
		rec, err := ParseFixtureLine(line)
		if err != nil {
			stats.Invalid++
			continue
		}
		*records = append(*records, rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read fixture %s: %w", filepath.Base(path), err)
	}
	return nil
}
