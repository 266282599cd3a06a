package upstream

import (
	"context"
	"sync"
	"time"
)

// TokenSource supplies bearer tokens. Invalidate drops a token the upstream
// rejected so the next call fetches a fresh one.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// FetchFunc obtains a new token and how long it stays valid.
type FetchFunc func(ctx context.Context) (token string, ttl time.Duration, err error)

// CachedToken caches a fetched token until shortly before it expires.
type CachedToken struct {
	fetch FetchFunc
	now   func() time.Time
	skew  time.Duration

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewCachedToken(fetch FetchFunc) *CachedToken {
	return &CachedToken{fetch: fetch, now: time.Now, skew: 30 * time.Second}
}

func (c *CachedToken) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}
	token, ttl, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expires = c.now().Add(ttl - c.skew)
	return token, nil
}

func (c *CachedToken) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

// StaticToken never expires. Used for webhook-style credentials.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }
func (StaticToken) Invalidate()                               {}
