// Package audit appends structured lifecycle records to a slog sink. The
// sink is an external collaborator (a log pipeline in production); retention
// is its concern, not the broker's.
package audit

import (
	"context"
	"log/slog"

	"github.com/sufield/tokenbroker/internal/domain"
	"github.com/sufield/tokenbroker/internal/ports"
)

// Emitter writes one record per attempted state transition. A failure inside
// the emitter must never mask or block the operation being audited, so
// panics from the handler are swallowed and logged locally.
type Emitter struct {
	logger   *slog.Logger
	fallback *slog.Logger
}

// New returns an emitter writing to logger. fallback receives the local
// error note when the primary sink panics; pass nil to use slog.Default().
func New(logger *slog.Logger, fallback *slog.Logger) *Emitter {
	if fallback == nil {
		fallback = slog.Default()
	}
	return &Emitter{logger: logger, fallback: fallback}
}

// Record appends rec to the sink synchronously.
func (e *Emitter) Record(ctx context.Context, rec domain.AuditRecord) {
	defer func() {
		if r := recover(); r != nil {
			e.fallback.Error("audit sink failed", "panic", r, "operation", string(rec.Operation))
		}
	}()

	level := slog.LevelInfo
	if !rec.Success {
		level = slog.LevelWarn
	}

	e.logger.LogAttrs(ctx, level, "audit",
		slog.Time("time", rec.Time),
		slog.String("operation", string(rec.Operation)),
		slog.String("caller_ip", rec.CallerIP),
		slog.String("user_agent", rec.UserAgent),
		slog.Bool("success", rec.Success),
		slog.String("error", rec.Error),
		slog.String("correlation_id", rec.CorrelationID),
		slog.String("token_id", rec.TokenID),
		slog.String("detail", rec.Detail),
	)
}

var _ ports.AuditSink = (*Emitter)(nil)
