// Package common provides shared utilities for Handspread
package common

import "time"

// IsFresh returns true if the given timestamp is within the TTL.
// A zero timestamp or non-positive TTL is never fresh, which lets callers
// disable caching outright by configuring ttl_seconds = 0.
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() || ttl <= 0 {
		return false
	}
	return time.Since(updated) < ttl
}
