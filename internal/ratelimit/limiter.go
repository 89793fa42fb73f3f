// Package ratelimit bounds request rates per caller identity with an
// in-memory sliding window. State lives for the process lifetime; there is
// no persistence and no background sweep.
package ratelimit

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// Limiter counts requests per identity over a sliding window. An identity
// may make at most limit requests in any window-sized interval; once over,
// requests are rejected until enough old requests slide out of the window.
type Limiter struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	clk    clock.Clock

	// seen holds, per identity, the timestamps of requests still inside the
	// window. Entries are pruned on every Allow call for that identity, so
	// the slice length is bounded by limit+1. Identities that have gone
	// quiet are dropped by a sweep that runs at most once per window, so
	// the map does not grow without bound across distinct callers.
	seen      map[string][]time.Time
	nextSweep time.Time
}

// New returns a limiter permitting limit requests per window per identity.
func New(window time.Duration, limit int, clk clock.Clock) *Limiter {
	return &Limiter{
		window: window,
		limit:  limit,
		clk:    clk,
		seen:   make(map[string][]time.Time),
	}
}

// Allow records a request for identity and reports whether it is within the
// limit. A rejected request is not counted against the window.
func (l *Limiter) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clk.Now()
	cutoff := now.Add(-l.window)

	if !now.Before(l.nextSweep) {
		l.sweep(cutoff)
		l.nextSweep = now.Add(l.window)
	}

	kept := l.seen[identity][:0]
	for _, ts := range l.seen[identity] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.seen[identity] = kept
		return false
	}

	l.seen[identity] = append(kept, now)
	return true
}

// sweep drops every timestamp at or before cutoff across all identities and
// removes identities left with nothing inside the window. Caller holds mu.
func (l *Limiter) sweep(cutoff time.Time) {
	for identity, stamps := range l.seen {
		kept := stamps[:0]
		for _, ts := range stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(l.seen, identity)
			continue
		}
		l.seen[identity] = kept
	}
}

// Reset forgets all recorded requests for every identity.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string][]time.Time)
}
