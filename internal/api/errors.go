// Suncall KJTech Server - Attendance Log Relay and Synchronization Cache
// Copyright 2026 Ramayana87
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Ramayana87/Server-Suncall-KJTech

package api

// Error codes used in APIError.Code.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeDeviceUnavailable  = "DEVICE_UNAVAILABLE"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
)
