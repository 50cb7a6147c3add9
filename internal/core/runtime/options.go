package runtime

import (
	"errors"
	"strings"
	"time"

	"github.com/asynkron/aishell/internal/core/codeblock"
	"github.com/asynkron/aishell/internal/logging"
)

// EngineOptions configures the turn engine. Zero values fall back to the
// interactive defaults.
type EngineOptions struct {
	SystemPrompt string
	// Streaming renders the reply while it arrives instead of after the
	// full response.
	Streaming bool
	// RefreshDelay throttles live redraws in streaming mode.
	RefreshDelay time.Duration
	// ProgressLabel is shown next to the spinner.
	ProgressLabel string
	Progress      ProgressOptions

	// Extractor pulls runnable code blocks out of each reply.
	Extractor codeblock.Extractor
	// Retry enables automatic retries of retriable model failures. Nil
	// means a single attempt.
	Retry *RetryConfig

	Logger  logging.Logger
	Metrics Metrics
}

// setDefaults applies reasonable defaults for interactive use.
func (o *EngineOptions) setDefaults() {
	if o.RefreshDelay <= 0 {
		o.RefreshDelay = 10 * time.Millisecond
	}
	if strings.TrimSpace(o.ProgressLabel) == "" {
		o.ProgressLabel = DefaultProgressLabel
	}
	if o.Extractor == nil {
		o.Extractor = codeblock.Markdown
	}
	o.Logger = logging.OrNoOp(o.Logger)
	if o.Progress.Logger == nil {
		o.Progress.Logger = o.Logger
	}
	if o.Metrics == nil {
		o.Metrics = &NoOpMetrics{}
	}
}

// validate performs lightweight validation of user supplied options.
func (o *EngineOptions) validate() error {
	if o.Retry != nil {
		if o.Retry.MaxRetries < 0 {
			return errors.New("retry: max retries must not be negative")
		}
		if o.Retry.MaxRetries > 0 && o.Retry.Multiplier < 1 {
			return errors.New("retry: multiplier must be at least 1")
		}
	}
	return nil
}
