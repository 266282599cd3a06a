package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, SystemOperator, Operator(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestInjectedValues(t *testing.T) {
	fixed := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	ctx := WithTime(context.Background(), fixed)
	ctx = WithOperator(ctx, "ou_42")
	ctx = WithRequestID(ctx, "req-1")

	assert.Equal(t, fixed, Now(ctx))
	assert.Equal(t, "ou_42", Operator(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
}

func TestEmptyOperatorFallsBackToSystem(t *testing.T) {
	ctx := WithOperator(context.Background(), "")
	assert.Equal(t, SystemOperator, Operator(ctx))
}
