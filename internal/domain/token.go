package domain

import (
	"time"
)

// CachedToken describes one issued bearer token held by the cache. The token
// value itself lives encrypted inside the cache and is not part of this
// record; the ID is an opaque identifier used for audit correlation only.
type CachedToken struct {
	// ID is a random opaque identifier assigned at store time.
	ID string

	// IssuedAt is the instant the token was stored.
	IssuedAt time.Time

	// ExpiresAt is the safety-margin-adjusted expiry:
	// IssuedAt + lifetime - safety margin. The cache never serves a token at
	// or past this instant, so downstream callers never hold a token the
	// provider already considers expired.
	ExpiresAt time.Time
}

// Valid reports whether the token may still be served at the given instant.
func (t CachedToken) Valid(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}

// Remaining returns the time left before expiry, never negative.
func (t CachedToken) Remaining(now time.Time) time.Duration {
	if !t.Valid(now) {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}
