package sealedcache

import (
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMargin = 5 * time.Minute

func newTestCache(t *testing.T) (*Cache, *testclock.Clock) {
	t.Helper()
	clk := testclock.NewClock(time.Unix(1_700_000_000, 0))
	c, err := New([]byte("test-secret"), testMargin, clk)
	require.NoError(t, err)
	return c, clk
}

func TestPutGetRoundTrip(t *testing.T) {
	c, clk := newTestCache(t)

	stored, err := c.Put("key-a", "bearer-token-value", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, clk.Now().Add(time.Hour-testMargin), stored.ExpiresAt)

	got, plaintext, ok := c.Get("key-a")
	require.True(t, ok)
	assert.Equal(t, "bearer-token-value", plaintext)
	assert.Equal(t, stored.ID, got.ID)
}

func TestGetMissOnAbsentKey(t *testing.T) {
	c, _ := newTestCache(t)
	_, _, ok := c.Get("never-stored")
	assert.False(t, ok)
}

func TestGetMissOnExpiry(t *testing.T) {
	c, clk := newTestCache(t)

	_, err := c.Put("key-a", "tok", time.Hour)
	require.NoError(t, err)

	// Advance to exactly the safety-margin-adjusted expiry.
	clk.Advance(time.Hour - testMargin)
	_, _, ok := c.Get("key-a")
	assert.False(t, ok, "token at its adjusted expiry must not be served")
	assert.Equal(t, 0, c.Size(), "expired entry must be evicted on read")
}

func TestTamperedEntryIsMiss(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Put("key-a", "tok", time.Hour)
	require.NoError(t, err)

	c.mu.Lock()
	e := c.entries["key-a"]
	e.sealed[0] ^= 0x01
	c.entries["key-a"] = e
	c.mu.Unlock()

	_, _, ok := c.Get("key-a")
	assert.False(t, ok, "auth-tag mismatch must read as a miss, never as plaintext")
	assert.Equal(t, 0, c.Size(), "tampered entry must be evicted")
}

func TestEntryBoundToKey(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Put("key-a", "tok", time.Hour)
	require.NoError(t, err)

	// Copy the sealed entry under another key; the key is AEAD additional
	// data, so the copy must fail to open.
	c.mu.Lock()
	c.entries["key-b"] = c.entries["key-a"]
	c.mu.Unlock()

	_, _, ok := c.Get("key-b")
	assert.False(t, ok)
}

func TestPutOverwritesSlot(t *testing.T) {
	c, _ := newTestCache(t)

	first, err := c.Put("key-a", "first", time.Hour)
	require.NoError(t, err)
	second, err := c.Put("key-a", "second", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	got, plaintext, ok := c.Get("key-a")
	require.True(t, ok)
	assert.Equal(t, "second", plaintext)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, 1, c.Size())
}

func TestNoncesDoNotRepeat(t *testing.T) {
	c, _ := newTestCache(t)
	seen := make(map[string]bool)

	for i := 0; i < 64; i++ {
		_, err := c.Put("key-a", "tok", time.Hour)
		require.NoError(t, err)
		c.mu.Lock()
		nonce := string(c.entries["key-a"].nonce)
		c.mu.Unlock()
		assert.False(t, seen[nonce], "nonce reuse")
		seen[nonce] = true
	}
}

func TestClearReturnsCount(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Put("key-a", "tok", time.Hour)
	require.NoError(t, err)
	_, err = c.Put("key-b", "tok", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Clear())
	assert.Equal(t, 0, c.Size())
	_, _, ok := c.Get("key-a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Clear(), "second clear removes nothing")
}

func TestPutRejectsLifetimeWithinMargin(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Put("key-a", "tok", testMargin)
	require.Error(t, err)
	_, err = c.Put("key-a", "tok", testMargin-time.Second)
	require.Error(t, err)
}

func TestNewRejectsEmptySecret(t *testing.T) {
	clk := testclock.NewClock(time.Unix(0, 0))
	_, err := New(nil, testMargin, clk)
	require.Error(t, err)
}

func TestNewRejectsNonPositiveMargin(t *testing.T) {
	clk := testclock.NewClock(time.Unix(0, 0))
	_, err := New([]byte("s"), 0, clk)
	require.Error(t, err)
}

func TestKeysDifferPerSecret(t *testing.T) {
	k1, err := deriveKey([]byte("secret-one"))
	require.NoError(t, err)
	k2, err := deriveKey([]byte("secret-two"))
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
	assert.Len(t, k1, keyLen)

	// Same secret derives the same key, so a restart with the same operator
	// secret could in principle reopen entries; entries still die with the
	// process because the map is in-memory only.
	k3, err := deriveKey([]byte("secret-one"))
	require.NoError(t, err)
	assert.Equal(t, k1, k3)
}
