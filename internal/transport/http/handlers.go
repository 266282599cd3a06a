// Package httptransport exposes the engine over HTTP: chat platform callbacks
// and a small operator API.
package httptransport

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"onboard/internal/audit"
	"onboard/internal/callback"
	"onboard/internal/orchestrator"
	"onboard/pkg/platform/httputil"
	"onboard/pkg/requestcontext"
)

const maxCallbackBody = 1 << 20

// Engine is the slice of the orchestrator the transport drives.
type Engine interface {
	Check(ctx context.Context, force bool) (orchestrator.Report, error)
	Digest(ctx context.Context) error
	HandleCallback(ctx context.Context, ev callback.Event) callback.Ack
	AuditLog(count int) []audit.Entry
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	engine        Engine
	callbackToken string
	logger        *slog.Logger
	checks        map[string]HealthCheck
}

type Option func(*Handler)

// WithHealthCheck adds a named dependency to the /healthz report.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) {
		h.checks[name] = check
	}
}

// New constructs a handler. An empty callbackToken disables the token check.
func New(engine Engine, callbackToken string, logger *slog.Logger, opts ...Option) (*Handler, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{engine: engine, callbackToken: callbackToken, logger: logger, checks: make(map[string]HealthCheck)}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// RegisterAPI mounts the operator endpoints on r.
func (h *Handler) RegisterAPI(r chi.Router) {
	r.Get("/audit", h.HandleAudit)
	r.Post("/check", h.HandleCheck)
	r.Post("/digest", h.HandleDigest)
}

// HandleHealth handles GET /healthz. Any failing check turns the response 503.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	httputil.WriteJSON(w, status, resp)
}

// HandleCallback handles POST /callbacks. The platform first verifies the
// endpoint by sending a challenge that must be echoed back; later deliveries
// carry an event and receive an ack toast.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		httputil.WriteError(w, fmt.Errorf("%w: read body: %v", httputil.ErrBadRequest, err))
		return
	}
	var env CallbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.logger.WarnContext(ctx, "malformed callback body",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, fmt.Errorf("%w: malformed JSON", httputil.ErrBadRequest))
		return
	}

	if !h.tokenMatches(env.Token) {
		h.logger.WarnContext(ctx, "callback rejected - token mismatch",
			"request_id", requestID,
		)
		httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	if env.Type == TypeURLVerification {
		httputil.WriteJSON(w, http.StatusOK, ChallengeResponse{Challenge: env.Challenge})
		return
	}
	if env.Event == nil {
		httputil.WriteError(w, fmt.Errorf("%w: missing event", httputil.ErrBadRequest))
		return
	}

	ack := h.engine.HandleCallback(ctx, *env.Event)
	h.logger.InfoContext(ctx, "callback handled",
		"request_id", requestID,
		"event_id", env.Event.EventID,
		"operator", env.Event.Operator,
		"level", ack.Level,
	)
	httputil.WriteJSON(w, http.StatusOK, CallbackResponse{Toast: ack})
}

// HandleAudit handles GET /api/audit?count=N.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	count := 50
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.WriteError(w, fmt.Errorf("%w: count must be a non-negative integer", httputil.ErrBadRequest))
			return
		}
		count = n
	}
	entries := h.engine.AuditLog(count)
	httputil.WriteJSON(w, http.StatusOK, AuditResponse{Entries: entries, Count: len(entries)})
}

// HandleCheck handles POST /api/check?force=true.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteError(w, fmt.Errorf("%w: force must be a boolean", httputil.ErrBadRequest))
			return
		}
		force = b
	}

	report, err := h.engine.Check(ctx, force)
	resp := FromReport(report)
	if err != nil {
		// a partial failure still pushed what it could
		resp.Error = err.Error()
		h.logger.WarnContext(ctx, "manual check finished with errors",
			"request_id", requestcontext.RequestID(ctx),
			"operator", requestcontext.Operator(ctx),
			"error", err,
		)
	}
	h.logger.InfoContext(ctx, "manual check",
		"request_id", requestcontext.RequestID(ctx),
		"operator", requestcontext.Operator(ctx),
		"force", force,
		"pushed", len(report.Pushed),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleDigest handles POST /api/digest.
func (h *Handler) HandleDigest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.engine.Digest(ctx); err != nil {
		h.logger.ErrorContext(ctx, "manual digest failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) tokenMatches(got string) bool {
	if h.callbackToken == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackToken)) == 1
}
