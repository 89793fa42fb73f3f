package domain

import (
	"errors"
)

// Sentinel errors for broker failures.
// Use with errors.Is() for checking and fmt.Errorf("%w", ...) for wrapping with context.

var (
	// ErrConfigurationMissing indicates the credential descriptor source is absent
	ErrConfigurationMissing = errors.New("service credential configuration is missing")

	// ErrConfigurationInvalid indicates the credential descriptor failed validation
	ErrConfigurationInvalid = errors.New("service credential configuration is invalid")

	// ErrExchangeFailure indicates the identity provider exchange call failed
	ErrExchangeFailure = errors.New("credential exchange failed")

	// ErrDecryptionFailure indicates a sealed cache entry failed authentication.
	// Callers of the cache never see this error: the entry is evicted and the
	// lookup reported as a miss. The sentinel exists for internal classification.
	ErrDecryptionFailure = errors.New("cached token could not be decrypted")

	// ErrRateLimited indicates the caller exceeded the request rate for the endpoint
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrValidationFailure indicates a malformed token request body
	ErrValidationFailure = errors.New("token request validation failed")
)
