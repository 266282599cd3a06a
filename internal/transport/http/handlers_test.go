package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"onboard/internal/audit"
	"onboard/internal/callback"
	"onboard/internal/orchestrator"
	"onboard/internal/platform/metrics"
	"onboard/internal/platform/middleware"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

type fakeEngine struct {
	forced    []bool
	report    orchestrator.Report
	checkErr  error
	digestErr error
	digests   int
	events    []callback.Event
	operators []string
	ack       callback.Ack
	entries   []audit.Entry
	count     int
}

func (f *fakeEngine) Check(_ context.Context, force bool) (orchestrator.Report, error) {
	f.forced = append(f.forced, force)
	return f.report, f.checkErr
}

func (f *fakeEngine) Digest(context.Context) error {
	f.digests++
	return f.digestErr
}

func (f *fakeEngine) HandleCallback(ctx context.Context, ev callback.Event) callback.Ack {
	f.events = append(f.events, ev)
	f.operators = append(f.operators, requestcontext.Operator(ctx))
	return f.ack
}

func (f *fakeEngine) AuditLog(count int) []audit.Entry {
	f.count = count
	return f.entries
}

// HandlerSuite drives the full router so middleware ordering is covered too.
type HandlerSuite struct {
	suite.Suite
	engine *fakeEngine
	tokens *middleware.OperatorTokens
	router http.Handler
	bearer string
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.engine = &fakeEngine{ack: callback.Ack{Message: "Email created", Level: callback.LevelSuccess}}
	s.tokens = middleware.NewOperatorTokens("test-signing-key", "onboard")

	h, err := New(s.engine, "cb-secret", logger)
	s.Require().NoError(err)

	reg := prometheus.NewRegistry()
	metrics.New(reg).IncrementPoll("ok", "scheduled")
	s.router = NewRouter(h, RouterConfig{Validator: s.tokens, Gatherer: reg, Logger: logger})

	token, err := s.tokens.Issue("ops-alice", time.Hour)
	s.Require().NoError(err)
	s.bearer = "Bearer " + token
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, target string, body []byte, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// Callbacks
// =============================================================================

func (s *HandlerSuite) TestCallback_EchoesVerificationChallenge() {
	body := []byte(`{"type":"url_verification","token":"cb-secret","challenge":"abc123"}`)
	rec := s.do(http.MethodPost, "/callbacks", body, "")

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"challenge":"abc123"}`, rec.Body.String())
	s.Empty(s.engine.events)
}

func (s *HandlerSuite) TestCallback_RejectsWrongToken() {
	body := []byte(`{"type":"url_verification","token":"nope","challenge":"abc123"}`)
	rec := s.do(http.MethodPost, "/callbacks", body, "")

	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Empty(s.engine.events)
}

func (s *HandlerSuite) TestCallback_MalformedJSON() {
	rec := s.do(http.MethodPost, "/callbacks", []byte("{not json"), "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestCallback_MissingEvent() {
	rec := s.do(http.MethodPost, "/callbacks", []byte(`{"token":"cb-secret"}`), "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestCallback_ForwardsEventAndReturnsToast() {
	body := []byte(`{"token":"cb-secret","event":{"event_id":"ev-1","operator":"ops-bob","message_id":"msg-7","value":{"kind":"refresh","group":"Berlin"}}}`)
	rec := s.do(http.MethodPost, "/callbacks", body, "")

	s.Require().Equal(http.StatusOK, rec.Code)
	var resp CallbackResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(callback.LevelSuccess, resp.Toast.Level)
	s.Equal("Email created", resp.Toast.Message)

	s.Require().Len(s.engine.events, 1)
	ev := s.engine.events[0]
	s.Equal("ev-1", ev.EventID)
	s.Equal("ops-bob", ev.Operator)
	s.Equal("msg-7", ev.MessageID)
	s.JSONEq(`{"kind":"refresh","group":"Berlin"}`, string(ev.Value))
}

// =============================================================================
// Operator API
// =============================================================================

func (s *HandlerSuite) TestAPI_RequiresBearerToken() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/audit", nil, "").Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/api/check", nil, "Bearer forged").Code)
	s.Empty(s.engine.forced)
}

func (s *HandlerSuite) TestAudit_DefaultAndExplicitCount() {
	s.engine.entries = []audit.Entry{{Action: audit.ActionProvisionEmail, Subject: "r-1", Success: true}}

	rec := s.do(http.MethodGet, "/api/audit", nil, s.bearer)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(50, s.engine.count)

	var resp AuditResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(1, resp.Count)
	s.Equal("r-1", resp.Entries[0].Subject)

	s.do(http.MethodGet, "/api/audit?count=5", nil, s.bearer)
	s.Equal(5, s.engine.count)
}

func (s *HandlerSuite) TestAudit_InvalidCount() {
	rec := s.do(http.MethodGet, "/api/audit?count=ten", nil, s.bearer)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestCheck_PassesForceFlag() {
	s.engine.report = orchestrator.Report{Pending: 3, New: 1, Pushed: []string{"Berlin"}}

	rec := s.do(http.MethodPost, "/api/check?force=true", nil, s.bearer)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"pending":3,"new":1,"pushed":["Berlin"]}`, rec.Body.String())

	s.do(http.MethodPost, "/api/check", nil, s.bearer)
	s.Equal([]bool{true, false}, s.engine.forced)
}

func (s *HandlerSuite) TestCheck_ReportsPartialFailure() {
	s.engine.report = orchestrator.Report{Pending: 1}
	s.engine.checkErr = errors.New("fetch intern: roster down")

	rec := s.do(http.MethodPost, "/api/check", nil, s.bearer)
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp CheckResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(1, resp.Pending)
	s.Empty(resp.Pushed)
	s.Contains(resp.Error, "roster down")
}

func (s *HandlerSuite) TestCheck_InvalidForce() {
	rec := s.do(http.MethodPost, "/api/check?force=maybe", nil, s.bearer)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Empty(s.engine.forced)
}

func (s *HandlerSuite) TestDigest() {
	rec := s.do(http.MethodPost, "/api/digest", nil, s.bearer)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(1, s.engine.digests)

	s.engine.digestErr = fmt.Errorf("send digest: %w", sentinel.ErrUnavailable)
	rec = s.do(http.MethodPost, "/api/digest", nil, s.bearer)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

// =============================================================================
// Operational endpoints
// =============================================================================

func (s *HandlerSuite) TestHealthAndMetrics() {
	rec := s.do(http.MethodGet, "/healthz", nil, "")
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/metrics", nil, "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "onboard_poll_cycles_total")
}

func (s *HandlerSuite) TestRequestIDIsEchoed() {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal("req-42", rec.Header().Get(middleware.RequestIDHeader))
}

func TestNew_RequiresEngine(t *testing.T) {
	_, err := New(nil, "", nil)
	require.Error(t, err)
}

func TestHealth_ReportsFailingCheck(t *testing.T) {
	h, err := New(&fakeEngine{}, "", nil,
		WithHealthCheck("redis", func(context.Context) error { return nil }),
		WithHealthCheck("ride", func(context.Context) error { return errors.New("circuit open") }),
	)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, map[string]string{"redis": "ok", "ride": "circuit open"}, resp.Checks)
}

func TestCallback_EmptyTokenDisablesCheck(t *testing.T) {
	engine := &fakeEngine{ack: callback.Ack{Level: callback.LevelInfo}}
	h, err := New(engine, "", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/callbacks",
		bytes.NewReader([]byte(`{"event":{"event_id":"ev-9","value":{}}}`)))
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, engine.events, 1)
}
