package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/asynkron/aishell/internal/core/codeblock"
)

func TestEngineOptionsSetDefaults(t *testing.T) {
	t.Parallel()

	opts := EngineOptions{}
	opts.setDefaults()
	if opts.RefreshDelay != 10*time.Millisecond {
		t.Fatalf("expected 10ms refresh delay, got %v", opts.RefreshDelay)
	}
	if opts.ProgressLabel != DefaultProgressLabel {
		t.Fatalf("expected default progress label, got %q", opts.ProgressLabel)
	}
	require.NotNil(t, opts.Extractor)
	require.NotNil(t, opts.Logger)
	require.NotNil(t, opts.Metrics)
	require.Nil(t, opts.Retry, "retries stay opt-in")

	custom := EngineOptions{RefreshDelay: time.Second, Extractor: codeblock.JSONExtractor{}}
	custom.setDefaults()
	require.Equal(t, time.Second, custom.RefreshDelay)
	require.IsType(t, codeblock.JSONExtractor{}, custom.Extractor)
}

func TestEngineOptionsValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, (&EngineOptions{}).validate())
	require.NoError(t, (&EngineOptions{Retry: DefaultRetryConfig()}).validate())
	require.Error(t, (&EngineOptions{Retry: &RetryConfig{MaxRetries: -1}}).validate())
	require.Error(t, (&EngineOptions{Retry: &RetryConfig{MaxRetries: 2, Multiplier: 0.5}}).validate())
}
