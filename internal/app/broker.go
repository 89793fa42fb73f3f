// Package app holds the token lifecycle facade. The broker sequences the
// rate limiter, the encrypted cache, the credential source and the exchange
// client, and emits one audit record per attempted state transition.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/sufield/tokenbroker/internal/domain"
	"github.com/sufield/tokenbroker/internal/metrics"
	"github.com/sufield/tokenbroker/internal/ports"
	"github.com/sufield/tokenbroker/internal/ratelimit"
)

// Request body bounds. Values are trimmed before the length check.
const (
	maxClientIDLen = 256
	maxScopeLen    = 512
)

// Caller identifies the requesting party for rate limiting and audit.
type Caller struct {
	IP        string
	UserAgent string
}

// IssueRequest is the optional POST /token body plus caller identity.
type IssueRequest struct {
	ClientID string
	Scope    string
	Caller   Caller
}

// IssueResult is a successful issuance.
type IssueResult struct {
	AccessToken string
	ExpiresIn   int64 // seconds, safety-margin adjusted
	TokenID     string
	Cached      bool
}

// StatusResult describes the cache slot without mutating it.
type StatusResult struct {
	Cached    bool
	Valid     bool
	ExpiresIn int64
	ExpiresAt time.Time
	TokenID   string
}

// ClearResult reports an administrative cache reset.
type ClearResult struct {
	Cleared int
}

// Params wires a Broker. All fields are required.
type Params struct {
	Source    ports.CredentialSource
	Exchanger ports.TokenExchanger
	Cache     ports.TokenCache
	Audit     ports.AuditSink
	Clock     clock.Clock
	Logger    *slog.Logger
	Metrics   *metrics.Metrics

	IssueLimiter *ratelimit.Limiter
	AdminLimiter *ratelimit.Limiter

	// CacheKeyPrefix and CacheWindow define the windowed cache key:
	// prefix + floor(now / window).
	CacheKeyPrefix string
	CacheWindow    time.Duration
}

// Broker is the token lifecycle facade.
//
// The cache-miss check and the store after the exchange are deliberately not
// one atomic step: the exchange is a network round trip and holding a lock
// across it would serialize every caller behind the provider's latency. Two
// concurrent requests that both observe an empty slot therefore both perform
// a full exchange and the second write overwrites the first. That duplicate
// work is bounded to bursts on a cold slot and is accepted; the slot takes
// the last writer, so no corruption or partial state can result.
type Broker struct {
	source    ports.CredentialSource
	exchanger ports.TokenExchanger
	cache     ports.TokenCache
	audit     ports.AuditSink
	clk       clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics

	issueLimiter *ratelimit.Limiter
	adminLimiter *ratelimit.Limiter

	keyPrefix string
	window    time.Duration
}

// New constructs the facade.
func New(p Params) *Broker {
	return &Broker{
		source:       p.Source,
		exchanger:    p.Exchanger,
		cache:        p.Cache,
		audit:        p.Audit,
		clk:          p.Clock,
		logger:       p.Logger,
		metrics:      p.Metrics,
		issueLimiter: p.IssueLimiter,
		adminLimiter: p.AdminLimiter,
		keyPrefix:    p.CacheKeyPrefix,
		window:       p.CacheWindow,
	}
}

// Issue returns a bearer token, from cache when the current window holds a
// live one, otherwise via a fresh credential exchange. Every outcome leaves
// exactly one audit record.
func (b *Broker) Issue(ctx context.Context, req IssueRequest) (IssueResult, error) {
	corrID := uuid.NewString()

	if !b.issueLimiter.Allow(req.Caller.IP) {
		b.metrics.RateLimitedTotal.WithLabelValues("issue").Inc()
		b.recordFailure(ctx, domain.OpRateLimited, req.Caller, corrID, domain.ErrRateLimited.Error(), "")
		return IssueResult{}, fmt.Errorf("%w: token issuance", domain.ErrRateLimited)
	}

	if err := validateIssueRequest(&req); err != nil {
		b.recordFailure(ctx, domain.OpRequestValidationFailed, req.Caller, corrID, err.Error(), "")
		return IssueResult{}, err
	}

	now := b.clk.Now()
	key := domain.WindowedKey(b.keyPrefix, now, b.window)

	if token, value, ok := b.cache.Get(key); ok {
		b.metrics.CacheHitsTotal.Inc()
		b.record(ctx, domain.AuditRecord{
			Time:          now,
			Operation:     domain.OpTokenCacheHit,
			CallerIP:      req.Caller.IP,
			UserAgent:     req.Caller.UserAgent,
			Success:       true,
			CorrelationID: corrID,
			TokenID:       token.ID,
		})
		return IssueResult{
			AccessToken: value,
			ExpiresIn:   int64(token.Remaining(now) / time.Second),
			TokenID:     token.ID,
			Cached:      true,
		}, nil
	}

	creds, err := b.source.Load(ctx)
	if err != nil {
		op := domain.OpServiceConfigInvalid
		if errors.Is(err, domain.ErrConfigurationMissing) {
			op = domain.OpServiceConfigMissing
		}
		b.recordFailure(ctx, op, req.Caller, corrID, err.Error(), "")
		return IssueResult{}, err
	}

	// Suspension point: the exchange is the only blocking call in the
	// issuance path. Other requests interleave here.
	result, err := b.exchanger.Exchange(ctx, creds)
	if err != nil {
		b.metrics.ExchangesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		b.recordFailure(ctx, domain.OpTokenExchangeFailed, req.Caller, corrID, err.Error(), creds.SanitizedSummary())
		return IssueResult{}, err
	}
	b.metrics.ExchangesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()

	// The window may have rolled while the exchange was in flight; store
	// under the key current now, or the token would land in a dead window
	// and never be served.
	storeKey := domain.WindowedKey(b.keyPrefix, b.clk.Now(), b.window)
	token, err := b.cache.Put(storeKey, result.AccessToken, result.ExpiresIn)
	if err != nil {
		wrapped := fmt.Errorf("%w: storing issued token: %v", domain.ErrExchangeFailure, err)
		b.recordFailure(ctx, domain.OpTokenExchangeFailed, req.Caller, corrID, wrapped.Error(), creds.SanitizedSummary())
		return IssueResult{}, wrapped
	}

	b.logger.Debug("issued fresh token", "token_id", token.ID, "expires_at", token.ExpiresAt)
	b.record(ctx, domain.AuditRecord{
		Time:          b.clk.Now(),
		Operation:     domain.OpTokenIssued,
		CallerIP:      req.Caller.IP,
		UserAgent:     req.Caller.UserAgent,
		Success:       true,
		CorrelationID: corrID,
		TokenID:       token.ID,
	})

	return IssueResult{
		AccessToken: result.AccessToken,
		ExpiresIn:   int64(token.Remaining(b.clk.Now()) / time.Second),
		TokenID:     token.ID,
		Cached:      false,
	}, nil
}

// Status is a pure read of the current window's slot. It never touches the
// credential source or the exchanger and leaves no audit record on success;
// only a rate-limit rejection is audited.
func (b *Broker) Status(ctx context.Context, caller Caller) (StatusResult, error) {
	if !b.adminLimiter.Allow(caller.IP) {
		b.metrics.RateLimitedTotal.WithLabelValues("admin").Inc()
		b.recordFailure(ctx, domain.OpRateLimited, caller, uuid.NewString(), domain.ErrRateLimited.Error(), "")
		return StatusResult{}, fmt.Errorf("%w: token status", domain.ErrRateLimited)
	}

	now := b.clk.Now()
	key := domain.WindowedKey(b.keyPrefix, now, b.window)
	token, _, ok := b.cache.Get(key)
	if !ok {
		return StatusResult{}, nil
	}
	return StatusResult{
		Cached:    true,
		Valid:     true,
		ExpiresIn: int64(token.Remaining(now) / time.Second),
		ExpiresAt: token.ExpiresAt,
		TokenID:   token.ID,
	}, nil
}

// Clear empties the cache and reports how many entries were removed.
func (b *Broker) Clear(ctx context.Context, caller Caller) (ClearResult, error) {
	if !b.adminLimiter.Allow(caller.IP) {
		b.metrics.RateLimitedTotal.WithLabelValues("admin").Inc()
		b.recordFailure(ctx, domain.OpRateLimited, caller, uuid.NewString(), domain.ErrRateLimited.Error(), "")
		return ClearResult{}, fmt.Errorf("%w: token clear", domain.ErrRateLimited)
	}

	cleared := b.cache.Clear()
	b.metrics.CacheClearsTotal.Inc()
	b.record(ctx, domain.AuditRecord{
		Time:          b.clk.Now(),
		Operation:     domain.OpTokenCacheCleared,
		CallerIP:      caller.IP,
		UserAgent:     caller.UserAgent,
		Success:       true,
		CorrelationID: uuid.NewString(),
		Detail:        fmt.Sprintf("cleared_tokens=%d", cleared),
	})
	return ClearResult{Cleared: cleared}, nil
}

// CacheSize reports the current cache entry count, for health reporting.
func (b *Broker) CacheSize() int {
	return b.cache.Size()
}

func validateIssueRequest(req *IssueRequest) error {
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.Scope = strings.TrimSpace(req.Scope)

	if len(req.ClientID) > maxClientIDLen {
		return fmt.Errorf("%w: client_id exceeds %d characters", domain.ErrValidationFailure, maxClientIDLen)
	}
	if len(req.Scope) > maxScopeLen {
		return fmt.Errorf("%w: scope exceeds %d characters", domain.ErrValidationFailure, maxScopeLen)
	}
	return nil
}

func (b *Broker) record(ctx context.Context, rec domain.AuditRecord) {
	b.audit.Record(ctx, rec)
}

func (b *Broker) recordFailure(ctx context.Context, op domain.Operation, caller Caller, corrID, errMsg, detail string) {
	b.audit.Record(ctx, domain.AuditRecord{
		Time:          b.clk.Now(),
		Operation:     op,
		CallerIP:      caller.IP,
		UserAgent:     caller.UserAgent,
		Success:       false,
		Error:         errMsg,
		CorrelationID: corrID,
		Detail:        detail,
	})
}
