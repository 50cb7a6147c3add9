package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(max int) *RetryConfig {
	return &RetryConfig{MaxRetries: max, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2}
}

func TestExecuteWithRetryRunsOnceWithoutConfig(t *testing.T) {
	t.Parallel()

	calls := 0
	err := executeWithRetry(context.Background(), nil, func() error {
		calls++
		return &APIError{Kind: KindRateLimit}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecuteWithRetryStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0
	permanent := &APIError{Kind: KindAuth}
	err := executeWithRetry(context.Background(), fastRetry(3), func() error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestExecuteWithRetryExhausts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := executeWithRetry(context.Background(), fastRetry(2), func() error {
		calls++
		return &APIError{Kind: KindConnection}
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry exhausted after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetryHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cfg := &RetryConfig{MaxRetries: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, Multiplier: 1}

	calls := 0
	err := executeWithRetry(ctx, cfg, func() error {
		calls++
		cancel()
		return &APIError{Kind: KindRateLimit}
	})
	require.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}
