// Package config loads and validates broker configuration from an optional
// yaml file with environment-variable overrides under the BROKER_ prefix.
package config

import (
	"time"
)

// Environment modes. Production tightens error verbosity and refuses the
// derived cache-key fallback.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// ProviderConfig identifies the identity provider integration. The client
// secret and signing key are secrets: they are never logged and never echoed
// in errors.
type ProviderConfig struct {
	// Endpoint is the identity provider base URL.
	Endpoint string

	ClientID     string
	ClientSecret string

	// SigningKeyFile is the path of the PEM private key used to sign the
	// exchange assertion. The key is read per issuance, not held in memory.
	SigningKeyFile string

	TechnicalAccountID string
	OrganizationID     string
	Scopes             []string
}

// CacheConfig controls the encrypted token cache.
type CacheConfig struct {
	// Secret is the operator-supplied key material the sealing key is
	// derived from. When empty outside production, a deterministic fallback
	// derivation from the client secret is used and a warning is logged.
	Secret string

	// Window is the cache key rotation interval. Entries become unreachable
	// when the window rolls, which is the cache's only eviction mechanism
	// besides explicit clears.
	Window time.Duration

	// SafetyMargin is subtracted from the provider-reported token lifetime
	// so a cached token is never served past its true expiry.
	SafetyMargin time.Duration

	// KeyPrefix namespaces cache keys ahead of the time bucket.
	KeyPrefix string
}

// WindowLimit is one sliding-window rate-limit threshold.
type WindowLimit struct {
	Window time.Duration
	Limit  int
}

// RateLimitConfig holds separate thresholds for token issuance and for the
// cheaper status/clear endpoints.
type RateLimitConfig struct {
	Issue WindowLimit
	Admin WindowLimit
}

// ExchangeConfig bounds the provider round trip.
type ExchangeConfig struct {
	// Timeout caps the exchange HTTP call. A timeout is an exchange
	// failure; the broker performs no retries.
	Timeout time.Duration

	// AssertionTTL is the validity window of the signed JWT assertion sent
	// to the provider.
	AssertionTTL time.Duration
}

// HTTPConfig configures the listener. Timeouts follow net/http semantics.
type HTTPConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// Config is the fully resolved broker configuration.
type Config struct {
	Environment string
	ListenAddr  string

	Provider  ProviderConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Exchange  ExchangeConfig
	HTTP      HTTPConfig
}

// IsProduction reports whether the broker runs in production mode.
func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Default returns the configuration used when neither file nor environment
// set a value.
func Default() Config {
	return Config{
		Environment: EnvDevelopment,
		ListenAddr:  ":8080",
		Cache: CacheConfig{
			Window:       12 * time.Hour,
			SafetyMargin: 5 * time.Minute,
			KeyPrefix:    "ims_token:",
		},
		RateLimit: RateLimitConfig{
			Issue: WindowLimit{Window: time.Minute, Limit: 5},
			Admin: WindowLimit{Window: time.Minute, Limit: 30},
		},
		Exchange: ExchangeConfig{
			Timeout:      10 * time.Second,
			AssertionTTL: 5 * time.Minute,
		},
		HTTP: HTTPConfig{
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}
