// Package upstream is the shared HTTP client for vendor APIs: bearer auth with
// refresh on 401, bounded retries with exponential backoff on 429 and 5xx, and
// a circuit breaker that stops retrying a service that keeps failing.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"onboard/pkg/platform/circuit"
	"onboard/pkg/platform/sentinel"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 3
)

type Client struct {
	service    string
	baseURL    string
	http       *http.Client
	tokens     TokenSource
	maxRetries uint64
	interval   time.Duration
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

type Option func(*Client)

// ResponseCheck inspects a response body before it is accepted. An error
// wrapping sentinel.ErrUnavailable is retried, one wrapping
// sentinel.ErrAuthExpired refreshes the token and retries, and any other error
// ends the call. Returning nil for a non-2xx status keeps the HTTP error.
type ResponseCheck func(status int, body []byte) error

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithRetry sets the retry budget and the initial backoff interval.
func WithRetry(maxRetries int, initial time.Duration) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = uint64(maxRetries)
		}
		if initial > 0 {
			c.interval = initial
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(service, baseURL string, opts ...Option) *Client {
	c := &Client{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
		interval:   500 * time.Millisecond,
		breaker:    circuit.New(service, circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(1)),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Service() string { return c.service }

// Breaker exposes the breaker for health reporting.
func (c *Client) Breaker() *circuit.Breaker { return c.breaker }

// Do sends a JSON request and decodes a JSON response into out (when non-nil).
// Transient failures are retried; while the breaker is open a single attempt
// is made.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	return c.DoChecked(ctx, method, path, in, out, nil)
}

// DoChecked is Do with check run on every attempt's response.
func (c *Client) DoChecked(ctx context.Context, method, path string, in, out any, check ResponseCheck) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("%s: marshal request: %w", c.service, err)
		}
	}

	var policy backoff.BackOff
	if c.breaker.IsOpen() {
		policy = &backoff.StopBackOff{}
	} else {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = c.interval
		exp.MaxElapsedTime = 0
		policy = backoff.WithMaxRetries(exp, c.maxRetries)
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := c.once(ctx, method, path, payload, out, check)
		if err == nil {
			return nil
		}
		if errors.Is(err, sentinel.ErrAuthExpired) {
			if c.tokens == nil {
				return backoff.Permanent(err)
			}
			c.tokens.Invalidate()
			return err
		}
		var upErr *Error
		if errors.As(err, &upErr) && !upErr.Retryable() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "upstream call failed, retrying",
			"service", c.service,
			"path", path,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify)
	c.record(ctx, err)
	return err
}

func (c *Client) record(ctx context.Context, err error) {
	if err == nil {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "upstream circuit closed", "service", c.service)
		}
		return
	}
	if !sentinel.IsTransient(err) {
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "upstream circuit opened", "service", c.service, "error", err)
	}
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any, check ResponseCheck) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%s: build request: %w", c.service, err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("%s: obtain token: %w: %w", c.service, sentinel.ErrAuthExpired, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", c.service, sentinel.ErrUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w: %w", c.service, sentinel.ErrUnavailable, err)
	}
	if check != nil {
		if err := check(resp.StatusCode, raw); err != nil {
			if errors.Is(err, sentinel.ErrUnavailable) || errors.Is(err, sentinel.ErrAuthExpired) {
				return err
			}
			return backoff.Permanent(err)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Service: c.service, Status: resp.StatusCode, Body: raw}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return backoff.Permanent(fmt.Errorf("%s: decode response: %w", c.service, err))
	}
	return nil
}
