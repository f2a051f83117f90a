// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package sync

import "github.com/Ramayana87/Server-Suncall-KJTech/internal/models"

// UniqueFingerprintUsers keeps the first granted, fingerprint-only record of
// each enrolled identity, in input order.
func UniqueFingerprintUsers(records []models.LogRecord) []models.LogRecord {
	seen := make(map[string]struct{})
	users := make([]models.LogRecord, 0)
	for i := range records {
		r := &records[i]
		if !bool(r.Granted) || !r.IsFingerprintOnly() {
			continue
		}
		key := r.IDKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		users = append(users, *r)
	}
	return users
}
