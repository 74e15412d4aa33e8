// Package idempotency defines the record that backs exactly-once execution
// of financially significant operations. The record table is the single
// shared mutex surface: uniqueness on the key is the locking primitive.
package idempotency

import (
	"errors"
	"time"
)

// Status is the lifecycle state of an idempotency record
type Status string

const (
	StatusStarted   Status = "STARTED"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// StaleLockThreshold bounds how long a crashed attempt can hold a key.
// A STARTED record older than this may be taken over by a new attempt.
const StaleLockThreshold = 15 * time.Minute

// Record tracks one logical attempt at a keyed operation.
// At most one record exists per key.
type Record struct {
	Key         string     `json:"key"`
	Scope       string     `json:"scope"`
	TenantID    string     `json:"tenant_id"`
	Status      Status     `json:"status"`
	LockedAt    time.Time  `json:"locked_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ResultHash  string     `json:"result_hash,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Stale reports whether the record's lock is old enough to be taken over.
func (r *Record) Stale(now time.Time) bool {
	return r.LockedAt.Before(now.Add(-StaleLockThreshold))
}

// ErrAlreadySucceeded signals that the keyed operation has already completed
// successfully. It is control flow, not an incident: callers treat it as an
// idempotent no-op and re-fetch the prior result themselves if they need it.
var ErrAlreadySucceeded = errors.New("operation already succeeded")

// AlreadyRunningError signals that a fresh STARTED record holds the key.
// The HTTP layer maps it to 409 so callers retry with backoff.
type AlreadyRunningError struct {
	Key string
}

func (e AlreadyRunningError) Error() string {
	return "operation already running for key: " + e.Key
}
