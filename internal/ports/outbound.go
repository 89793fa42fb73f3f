// Package ports declares the outbound contracts the broker core depends on.
// The application depends on these interfaces, never on the concrete
// adapters, so every collaborator can be swapped for an in-memory fake in
// tests.
package ports

import (
	"context"
	"time"

	"github.com/sufield/tokenbroker/internal/domain"
)

// CredentialSource loads the service-account descriptor.
type CredentialSource interface {
	// Load reads and validates the descriptor. It fails with
	// domain.ErrConfigurationMissing when the source is absent and
	// domain.ErrConfigurationInvalid when any field check fails. A
	// descriptor that fails validation is never partially returned.
	Load(ctx context.Context) (domain.ServiceCredentials, error)
}

// ExchangeResult is the provider's answer to a successful credential exchange.
type ExchangeResult struct {
	// AccessToken is the short-lived bearer token.
	AccessToken string

	// ExpiresIn is the nominal token lifetime as reported by the provider,
	// before any safety margin is applied.
	ExpiresIn time.Duration
}

// TokenExchanger converts a validated descriptor into a bearer token.
// Implementations must bound the call with a timeout; a timeout is an
// exchange failure, not a retryable condition.
type TokenExchanger interface {
	Exchange(ctx context.Context, creds domain.ServiceCredentials) (ExchangeResult, error)
}

// TokenCache owns the broker's single piece of real state: at most one live
// token per cache key, encrypted at rest.
type TokenCache interface {
	// Get looks up the entry for key and returns its record and decrypted
	// token value. A tampered or expired entry is evicted and reported as a
	// miss; decryption failures are never surfaced.
	Get(key string) (domain.CachedToken, string, bool)

	// Put seals tokenValue and stores it under key with a safety-margin
	// adjusted expiry, overwriting any previous entry for the key.
	Put(key, tokenValue string, lifetime time.Duration) (domain.CachedToken, error)

	// Clear empties the cache and returns the number of entries removed.
	Clear() int

	// Size returns the number of entries currently stored.
	Size() int
}

// AuditSink records lifecycle events. Record must never fail in a way that
// aborts the operation being audited.
type AuditSink interface {
	Record(ctx context.Context, rec domain.AuditRecord)
}
