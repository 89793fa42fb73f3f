package domain

import (
	"time"
)

// Operation names the lifecycle event an audit record describes.
type Operation string

const (
	OpTokenIssued             Operation = "token_issued"
	OpTokenCacheHit           Operation = "token_cache_hit"
	OpTokenCacheCleared       Operation = "token_cache_cleared"
	OpTokenExchangeFailed     Operation = "token_exchange_failed"
	OpServiceConfigMissing    Operation = "service_config_missing"
	OpServiceConfigInvalid    Operation = "service_config_invalid"
	OpRequestValidationFailed Operation = "token_request_validation_failed"
	OpRateLimited             Operation = "rate_limited"
)

// AuditRecord is one append-only entry in the broker's audit trail. Records
// are never mutated after creation; retention is the sink's concern.
type AuditRecord struct {
	Time          time.Time `json:"time"`
	Operation     Operation `json:"operation"`
	CallerIP      string    `json:"caller_ip"`
	UserAgent     string    `json:"user_agent,omitempty"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	TokenID       string    `json:"token_id,omitempty"`

	// Detail carries a sanitized, non-secret summary of the context,
	// e.g. the descriptor summary on a failed issuance.
	Detail string `json:"detail,omitempty"`
}
