package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sufield/tokenbroker/internal/domain"
)

func TestRecordWritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	e := New(slog.New(slog.NewJSONHandler(&buf, nil)), nil)

	e.Record(context.Background(), domain.AuditRecord{
		Time:          time.Unix(1_700_000_000, 0).UTC(),
		Operation:     domain.OpTokenIssued,
		CallerIP:      "10.1.2.3",
		UserAgent:     "curl/8.0",
		Success:       true,
		CorrelationID: "corr-1",
		TokenID:       "tok-1",
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "token_issued", entry["operation"])
	assert.Equal(t, "10.1.2.3", entry["caller_ip"])
	assert.Equal(t, true, entry["success"])
	assert.Equal(t, "tok-1", entry["token_id"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestFailureRecordsAtWarn(t *testing.T) {
	var buf bytes.Buffer
	e := New(slog.New(slog.NewJSONHandler(&buf, nil)), nil)

	e.Record(context.Background(), domain.AuditRecord{
		Time:      time.Now(),
		Operation: domain.OpServiceConfigMissing,
		Success:   false,
		Error:     "descriptor source absent",
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "service_config_missing", entry["operation"])
	assert.Equal(t, "descriptor source absent", entry["error"])
}

type panicHandler struct{}

func (panicHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (panicHandler) Handle(context.Context, slog.Record) error { panic("sink exploded") }
func (h panicHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h panicHandler) WithGroup(string) slog.Handler           { return h }

func TestSinkPanicIsSwallowed(t *testing.T) {
	var fallbackBuf bytes.Buffer
	e := New(slog.New(panicHandler{}), slog.New(slog.NewJSONHandler(&fallbackBuf, nil)))

	assert.NotPanics(t, func() {
		e.Record(context.Background(), domain.AuditRecord{Operation: domain.OpTokenCacheHit})
	})
	assert.Contains(t, fallbackBuf.String(), "audit sink failed")
}
