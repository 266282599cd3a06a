package upstream

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/pkg/platform/sentinel"
)

const base = "https://vendor.test"

func newMocked(opts ...Option) (*Client, *httpmock.MockTransport) {
	mt := httpmock.NewMockTransport()
	opts = append([]Option{
		WithHTTPClient(&http.Client{Transport: mt}),
		WithRetry(3, time.Millisecond),
	}, opts...)
	return New("vendor", base, opts...), mt
}

// sequence replies with the given statuses in order, repeating the last one.
func sequence(statuses ...int) (httpmock.Responder, *int) {
	calls := 0
	return func(*http.Request) (*http.Response, error) {
		status := statuses[min(calls, len(statuses)-1)]
		calls++
		return httpmock.NewStringResponse(status, `{"ok":true}`), nil
	}, &calls
}

func TestDo_DecodesResponse(t *testing.T) {
	c, mt := newMocked()
	mt.RegisterResponder(http.MethodGet, base+"/users/1",
		httpmock.NewStringResponder(200, `{"name":"Lee"}`))

	var out struct{ Name string }
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/users/1", nil, &out))
	assert.Equal(t, "Lee", out.Name)
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	c, mt := newMocked()
	responder, calls := sequence(503, 429, 200)
	mt.RegisterResponder(http.MethodPost, base+"/accounts", responder)

	err := c.Do(context.Background(), http.MethodPost, "/accounts", map[string]string{"a": "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, *calls)
}

func TestDo_GivesUpAfterRetryBudget(t *testing.T) {
	c, mt := newMocked()
	responder, calls := sequence(500)
	mt.RegisterResponder(http.MethodGet, base+"/flaky", responder)

	err := c.Do(context.Background(), http.MethodGet, "/flaky", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, 4, *calls, "one attempt plus three retries")
}

func TestDo_DoesNotRetryClientErrors(t *testing.T) {
	c, mt := newMocked()
	responder, calls := sequence(409)
	mt.RegisterResponder(http.MethodPost, base+"/mailboxes", responder)

	err := c.Do(context.Background(), http.MethodPost, "/mailboxes", nil, nil)
	assert.ErrorIs(t, err, sentinel.ErrDuplicateConflict)
	assert.Equal(t, 1, *calls)

	var upErr *Error
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, 409, upErr.Status)
	assert.JSONEq(t, `{"ok":true}`, string(upErr.Body))
}

func TestDo_RefreshesTokenOn401(t *testing.T) {
	fetches := 0
	tokens := NewCachedToken(func(context.Context) (string, time.Duration, error) {
		fetches++
		return "token-" + string(rune('0'+fetches)), time.Hour, nil
	})
	c, mt := newMocked(WithTokenSource(tokens))

	var seen []string
	mt.RegisterResponder(http.MethodGet, base+"/me", func(req *http.Request) (*http.Response, error) {
		seen = append(seen, req.Header.Get("Authorization"))
		if len(seen) == 1 {
			return httpmock.NewStringResponse(401, `{}`), nil
		}
		return httpmock.NewStringResponse(200, `{}`), nil
	})

	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/me", nil, nil))
	assert.Equal(t, []string{"Bearer token-1", "Bearer token-2"}, seen)
	assert.Equal(t, 2, fetches)
}

func TestDo_Unauthorized_WithoutTokenSourceIsPermanent(t *testing.T) {
	c, mt := newMocked()
	responder, calls := sequence(401)
	mt.RegisterResponder(http.MethodGet, base+"/me", responder)

	err := c.Do(context.Background(), http.MethodGet, "/me", nil, nil)
	assert.ErrorIs(t, err, sentinel.ErrAuthExpired)
	assert.Equal(t, 1, *calls)
}

func TestDo_OpenBreakerSkipsRetries(t *testing.T) {
	c, mt := newMocked(WithRetry(0, time.Millisecond))
	responder, calls := sequence(502)
	mt.RegisterResponder(http.MethodGet, base+"/down", responder)

	for i := 0; i < 5; i++ {
		_ = c.Do(context.Background(), http.MethodGet, "/down", nil, nil)
	}
	require.True(t, c.Breaker().IsOpen())

	*calls = 0
	c.maxRetries = 3
	_ = c.Do(context.Background(), http.MethodGet, "/down", nil, nil)
	assert.Equal(t, 1, *calls)
}

func TestDoChecked_CheckDrivesRetry(t *testing.T) {
	errQuota := errors.New("quota")
	cases := []struct {
		name      string
		verdicts  []error
		wantCalls int
		wantErr   error
	}{
		{"transient then ok", []error{sentinel.ErrUnavailable, nil}, 2, nil},
		{"auth expiry then ok", []error{sentinel.ErrAuthExpired, nil}, 2, nil},
		{"permanent verdict", []error{errQuota}, 1, errQuota},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokens := NewCachedToken(func(context.Context) (string, time.Duration, error) {
				return "t", time.Hour, nil
			})
			c, mt := newMocked(WithTokenSource(tokens))
			responder, calls := sequence(200)
			mt.RegisterResponder(http.MethodGet, base+"/thing", responder)

			checks := 0
			check := func(status int, body []byte) error {
				verdict := tc.verdicts[min(checks, len(tc.verdicts)-1)]
				checks++
				return verdict
			}

			err := c.DoChecked(context.Background(), http.MethodGet, "/thing", nil, nil, check)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.wantCalls, *calls)
		})
	}
}

func TestDoChecked_NilVerdictKeepsHTTPError(t *testing.T) {
	c, mt := newMocked()
	responder, calls := sequence(404)
	mt.RegisterResponder(http.MethodGet, base+"/thing", responder)

	err := c.DoChecked(context.Background(), http.MethodGet, "/thing", nil, nil,
		func(int, []byte) error { return nil })
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.Equal(t, 1, *calls)
}

func TestCachedToken_ReusesUntilInvalidated(t *testing.T) {
	fetches := 0
	tokens := NewCachedToken(func(context.Context) (string, time.Duration, error) {
		fetches++
		return "t", time.Hour, nil
	})

	for i := 0; i < 3; i++ {
		_, err := tokens.Token(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fetches)

	tokens.Invalidate()
	_, _ = tokens.Token(context.Background())
	assert.Equal(t, 2, fetches)
}
