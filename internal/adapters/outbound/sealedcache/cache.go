// Package sealedcache is the in-memory token cache. Token values are sealed
// with AES-256-GCM under a process-wide key derived once at construction;
// the cache slot count is bounded by the number of distinct keys in use,
// which in practice is one.
package sealedcache

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/sufield/tokenbroker/internal/domain"
	"github.com/sufield/tokenbroker/internal/ports"
)

type entry struct {
	token  domain.CachedToken
	nonce  []byte
	sealed []byte
}

// Cache implements ports.TokenCache.
//
// net/http serves handlers on concurrent goroutines, so the entry map is
// mutex-guarded. The guard protects map integrity only: a cache miss and the
// store that follows an exchange are separate critical sections, so two
// concurrent cold-cache issuers still both reach the provider and the second
// store overwrites the first. That duplicate work is accepted; the slot takes
// the last writer and no corruption is possible.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry

	aead         cipher.AEAD
	clk          clock.Clock
	safetyMargin time.Duration
}

// New derives the sealing key from secret and returns an empty cache.
// safetyMargin is subtracted from every stored token's lifetime.
func New(secret []byte, safetyMargin time.Duration, clk clock.Clock) (*Cache, error) {
	if safetyMargin <= 0 {
		return nil, fmt.Errorf("safety margin must be positive, got %s", safetyMargin)
	}

	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AEAD: %w", err)
	}

	return &Cache{
		entries:      make(map[string]entry),
		aead:         aead,
		clk:          clk,
		safetyMargin: safetyMargin,
	}, nil
}

// Get returns the record and decrypted token value stored under key.
// Expired entries and entries whose authentication tag fails to verify are
// evicted and reported as a miss; a decryption failure is never surfaced to
// the caller.
func (c *Cache) Get(key string) (domain.CachedToken, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.CachedToken{}, "", false
	}
	if !e.token.Valid(c.clk.Now()) {
		delete(c.entries, key)
		return domain.CachedToken{}, "", false
	}

	// The cache key is bound as additional data, so an entry copied under a
	// different key fails authentication too.
	plaintext, err := c.aead.Open(nil, e.nonce, e.sealed, []byte(key))
	if err != nil {
		delete(c.entries, key)
		return domain.CachedToken{}, "", false
	}
	return e.token, string(plaintext), true
}

// Put seals tokenValue under key, overwriting any previous entry. The stored
// expiry is now + lifetime - safety margin; a lifetime not strictly greater
// than the margin is rejected because the token would be born expired.
func (c *Cache) Put(key, tokenValue string, lifetime time.Duration) (domain.CachedToken, error) {
	if lifetime <= c.safetyMargin {
		return domain.CachedToken{}, fmt.Errorf("token lifetime %s is not greater than safety margin %s", lifetime, c.safetyMargin)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return domain.CachedToken{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := c.clk.Now()
	token := domain.CachedToken{
		ID:        uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(lifetime - c.safetyMargin),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		token:  token,
		nonce:  nonce,
		sealed: c.aead.Seal(nil, nonce, []byte(tokenValue), []byte(key)),
	}
	return token, nil
}

// Clear empties the cache and returns the number of entries removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]entry)
	return n
}

// Size returns the number of entries currently stored.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

var _ ports.TokenCache = (*Cache)(nil)
