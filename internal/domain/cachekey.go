package domain

import (
	"strconv"
	"time"
)

// WindowedKey builds the cache key for the given instant:
// prefix + floor(now / window).
//
// The time bucket is part of the key on purpose. Because the key itself
// changes every window, entries from a previous window become unreachable
// the moment the window rolls, which gives the cache implicit expiry with no
// sweep goroutine. The trade-off is that a token cached near the end of a
// window is treated as absent right after the roll, costing one extra
// exchange call slightly before the token's true expiry.
//
// The bucket is computed in nanoseconds so any positive window is safe,
// including sub-second ones. For whole-second windows the bucket value is
// identical to the second-based division.
func WindowedKey(prefix string, now time.Time, window time.Duration) string {
	bucket := now.UnixNano() / int64(window)
	return prefix + strconv.FormatInt(bucket, 10)
}
