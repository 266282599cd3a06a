// Package vendorapi decodes the response envelope shared by the vendor APIs and
// translates their numeric result codes into sentinel errors.
package vendorapi

import (
	"context"
	"encoding/json"
	"fmt"

	"onboard/internal/platform/upstream"
	"onboard/pkg/platform/sentinel"
)

// Codes common to every vendor API. Service-specific codes are mapped by the
// adapter through a CodeMap.
const (
	CodeOK           = 0
	CodeRateLimited  = 99991400
	CodeTokenInvalid = 99991663
	CodeTokenExpired = 99991677
)

// Envelope is {"code": 0, "msg": "success", "data": {...}}.
type Envelope[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

// CodeError is a non-zero vendor result code. It unwraps to the sentinel the
// adapter mapped it to, when any.
type CodeError struct {
	Service string
	Code    int
	Msg     string
	kind    error
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("%s: vendor code %d: %s", e.Service, e.Code, e.Msg)
}

func (e *CodeError) Unwrap() error { return e.kind }

// CodeMap assigns sentinel errors to service-specific codes.
type CodeMap map[int]error

func (m CodeMap) translate(service string, code int, msg string) error {
	if code == CodeOK {
		return nil
	}
	kind := m[code]
	if kind == nil {
		switch code {
		case CodeRateLimited:
			kind = sentinel.ErrUnavailable
		case CodeTokenInvalid, CodeTokenExpired:
			kind = sentinel.ErrAuthExpired
		}
	}
	return &CodeError{Service: service, Code: code, Msg: msg, kind: kind}
}

// check translates the envelope code on every attempt, so rate limits and
// rejected tokens are retried by the client. Error statuses are translated only
// for known codes; anything else keeps its HTTP classification.
func (m CodeMap) check(service string) upstream.ResponseCheck {
	return func(status int, body []byte) error {
		var env Envelope[json.RawMessage]
		if len(body) == 0 || json.Unmarshal(body, &env) != nil {
			return nil
		}
		if status < 200 || status > 299 {
			if _, known := m[env.Code]; !known && !isCommonCode(env.Code) {
				return nil
			}
		}
		return m.translate(service, env.Code, env.Msg)
	}
}

func isCommonCode(code int) bool {
	switch code {
	case CodeRateLimited, CodeTokenInvalid, CodeTokenExpired:
		return true
	}
	return false
}

// Call performs one request through api and returns the envelope's data. The
// vendor's code wins over the HTTP status whenever the body carries a known one.
func Call[T any](ctx context.Context, api *upstream.Client, codes CodeMap, method, path string, in any) (T, error) {
	var env Envelope[T]
	if err := api.DoChecked(ctx, method, path, in, &env, codes.check(api.Service())); err != nil {
		var zero T
		return zero, err
	}
	return env.Data, nil
}
