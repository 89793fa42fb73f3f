package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowedKeyStableWithinWindow(t *testing.T) {
	window := 10 * time.Minute
	base := time.Unix(1_700_000_400, 0) // aligned to a 600s boundary

	k1 := WindowedKey("ims:", base, window)
	k2 := WindowedKey("ims:", base.Add(9*time.Minute+59*time.Second), window)
	assert.Equal(t, k1, k2, "keys within one window must match")
}

func TestWindowedKeyRollsAtBoundary(t *testing.T) {
	window := 10 * time.Minute
	base := time.Unix(1_700_000_400, 0)

	before := WindowedKey("ims:", base.Add(window-time.Second), window)
	after := WindowedKey("ims:", base.Add(window), window)
	assert.NotEqual(t, before, after, "keys across a window boundary must differ")
}

func TestWindowedKeyPrefix(t *testing.T) {
	key := WindowedKey("ims:", time.Unix(600, 0), time.Minute*10)
	assert.Equal(t, "ims:1", key)
}

func TestWindowedKeySubSecondWindow(t *testing.T) {
	window := 500 * time.Millisecond
	base := time.Unix(1_700_000_400, 0)

	var before, after string
	assert.NotPanics(t, func() {
		before = WindowedKey("ims:", base, window)
		after = WindowedKey("ims:", base.Add(window), window)
	})
	assert.NotEqual(t, before, after, "keys across a sub-second window boundary must differ")
	assert.Equal(t, before, WindowedKey("ims:", base.Add(window-time.Millisecond), window))
}

func TestCachedTokenValidity(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tok := CachedToken{
		ID:        "id-1",
		IssuedAt:  now,
		ExpiresAt: now.Add(10 * time.Minute),
	}

	assert.True(t, tok.Valid(now))
	assert.True(t, tok.Valid(now.Add(10*time.Minute-time.Second)))
	assert.False(t, tok.Valid(now.Add(10*time.Minute)), "expiry instant itself is expired")
	assert.Equal(t, 10*time.Minute, tok.Remaining(now))
	assert.Equal(t, time.Duration(0), tok.Remaining(now.Add(time.Hour)))
}
