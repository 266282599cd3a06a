package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/platform/config"
)

func TestNew_DisabledWithoutURL(t *testing.T) {
	c, err := New(config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNew_ConnectsAndReportsHealth(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := New(config.RedisConfig{URL: "redis://" + mr.Addr(), PoolSize: 2, DialTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, 2, c.Options().PoolSize)
	require.NoError(t, c.Health(context.Background()))

	mr.Close()
	assert.Error(t, c.Health(context.Background()))
}

func TestNew_Errors(t *testing.T) {
	_, err := New(config.RedisConfig{URL: "not a url"})
	require.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = New(config.RedisConfig{URL: "redis://" + addr, DialTimeout: 200 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping")
}
