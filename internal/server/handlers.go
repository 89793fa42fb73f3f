package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/juju/clock"

	"github.com/sufield/tokenbroker/internal/app"
	"github.com/sufield/tokenbroker/internal/domain"
	"github.com/sufield/tokenbroker/internal/ports"
)

// maxBodyBytes caps the optional POST /token body.
const maxBodyBytes = 4 << 10

type handlers struct {
	broker     *app.Broker
	audit      ports.AuditSink
	clk        clock.Clock
	production bool
	logger     *slog.Logger
}

type issueBody struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Cached      bool   `json:"cached"`
	TokenID     string `json:"token_id"`
}

type statusResponse struct {
	Cached    bool   `json:"cached"`
	Valid     bool   `json:"valid"`
	ExpiresIn int64  `json:"expires_in"`
	ExpiresAt string `json:"expires_at,omitempty"`
	TokenID   string `json:"token_id,omitempty"`
}

type clearResponse struct {
	Message       string `json:"message"`
	ClearedTokens int    `json:"cleared_tokens"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	CacheSize int    `json:"cache_size"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) issue(w http.ResponseWriter, r *http.Request) {
	var body issueBody
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.rejectBody(w, r, "failed to read request body")
		return
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			h.rejectBody(w, r, "request body is not valid JSON")
			return
		}
	}

	res, err := h.broker.Issue(r.Context(), app.IssueRequest{
		ClientID: body.ClientID,
		Scope:    body.Scope,
		Caller:   callerFrom(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: res.AccessToken,
		ExpiresIn:   res.ExpiresIn,
		TokenType:   "Bearer",
		Cached:      res.Cached,
		TokenID:     res.TokenID,
	})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	res, err := h.broker.Status(r.Context(), callerFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := statusResponse{
		Cached:    res.Cached,
		Valid:     res.Valid,
		ExpiresIn: res.ExpiresIn,
		TokenID:   res.TokenID,
	}
	if !res.ExpiresAt.IsZero() {
		resp.ExpiresAt = res.ExpiresAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) clear(w http.ResponseWriter, r *http.Request) {
	res, err := h.broker.Clear(r.Context(), callerFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{
		Message:       "token cache cleared",
		ClearedTokens: res.Cleared,
	})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: h.clk.Now().UTC().Format(time.RFC3339),
		CacheSize: h.broker.CacheSize(),
	})
}

// rejectBody handles bodies the broker never sees: the rejection is still an
// attempted issuance, so it gets its audit record here.
func (h *handlers) rejectBody(w http.ResponseWriter, r *http.Request, reason string) {
	caller := callerFrom(r)
	h.audit.Record(r.Context(), domain.AuditRecord{
		Time:      h.clk.Now(),
		Operation: domain.OpRequestValidationFailed,
		CallerIP:  caller.IP,
		UserAgent: caller.UserAgent,
		Success:   false,
		Error:     reason,
	})
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: reason})
}

// writeError maps the broker error taxonomy onto HTTP statuses. Rate-limit
// and validation failures carry their safe message at their specific status;
// everything else is a 500 whose detail is withheld in production.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, retry later"})
	case errors.Is(err, domain.ErrValidationFailure):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		msg := "internal server error"
		if !h.production {
			msg = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msg})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// callerFrom extracts the caller identity. The RealIP middleware has already
// resolved forwarded headers into RemoteAddr.
func callerFrom(r *http.Request) app.Caller {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return app.Caller{IP: ip, UserAgent: r.UserAgent()}
}
