// Package runtime drives conversational turns against a chat model: it keeps
// the transcript, shows progress while the model works, renders the reply
// and extracts runnable code blocks from it.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asynkron/aishell/internal/core/codeblock"
	"github.com/asynkron/aishell/internal/logging"
)

// Engine runs one turn at a time: Idle, Sending, Streaming or
// Waiting-batch, Extracting, and back to Idle.
type Engine struct {
	model    ChatModel
	display  Display
	options  EngineOptions
	progress *ProgressSignal
	streamer *ResponseStreamer

	transcript *Transcript

	// turnMu serializes RunTurn calls.
	turnMu sync.Mutex

	mu     sync.RWMutex
	state  TurnState
	blocks []codeblock.CodeBlock
}

// NewEngine wires the model and display together.
func NewEngine(model ChatModel, display Display, options EngineOptions) (*Engine, error) {
	if model == nil {
		return nil, errors.New("runtime: model is required")
	}
	if display == nil {
		return nil, errors.New("runtime: display is required")
	}
	options.setDefaults()
	if err := options.validate(); err != nil {
		return nil, err
	}

	return &Engine{
		model:      model,
		display:    display,
		options:    options,
		progress:   NewProgressSignal(display, options.Progress),
		streamer:   NewResponseStreamer(display, StreamerOptions{RefreshDelay: options.RefreshDelay, Logger: options.Logger}),
		transcript: NewTranscript(options.SystemPrompt),
	}, nil
}

// RunTurn sends prompt, preceded by any unconsumed hint blocks, and renders
// the reply. On failure the user message stays in the transcript, no
// assistant message is added and the error is shown through the display
// before being returned. Cancellation is returned without being shown.
func (e *Engine) RunTurn(ctx context.Context, prompt string, hints ...*HintBlock) (TurnResult, error) {
	e.turnMu.Lock()
	defer e.turnMu.Unlock()

	if logging.TraceID(ctx) == "" {
		ctx = logging.WithTraceID(ctx, logging.NewTraceID())
	}
	defer e.setState(StateIdle)

	e.setState(StateSending)
	for _, hint := range hints {
		if e.transcript.AppendHint(hint) {
			e.options.Logger.Debug(ctx, "Hint block appended", logging.Field("messages", len(hint.messages)))
		}
	}
	e.transcript.Append(ChatMessage{Role: RoleUser, Content: prompt})
	messages := e.transcript.Snapshot()

	e.options.Logger.Info(ctx, "Starting turn",
		logging.Field("messages", len(messages)),
		logging.Field("streaming", e.options.Streaming),
	)

	handle := e.progress.Start(e.options.ProgressLabel)
	// Stop is idempotent; this covers every early return and panic.
	defer handle.Stop()

	start := time.Now()
	var (
		reply string
		err   error
	)
	if e.options.Streaming {
		e.setState(StateStreaming)
		reply, err = e.streamReply(ctx, messages, handle)
	} else {
		e.setState(StateWaitingBatch)
		reply, err = e.completeReply(ctx, messages)
		handle.Stop()
	}
	e.options.Metrics.RecordAPICall(time.Since(start), err == nil)

	if err != nil {
		handle.Stop()
		return TurnResult{}, e.fail(ctx, err)
	}

	if !e.options.Streaming && reply != "" {
		e.display.Markdown(reply)
	}
	e.transcript.Append(ChatMessage{Role: RoleAssistant, Content: reply})
	e.transcript.ConsumeHint()

	e.setState(StateExtracting)
	blocks := e.options.Extractor.Extract(reply)
	e.mu.Lock()
	e.blocks = blocks
	e.mu.Unlock()

	e.options.Logger.Info(ctx, "Turn finished",
		logging.Field("reply_chars", len(reply)),
		logging.Field("blocks", len(blocks)),
		logging.Field("duration_ms", time.Since(start).Milliseconds()),
	)
	return TurnResult{Reply: reply, Blocks: blocks}, nil
}

func (e *Engine) completeReply(ctx context.Context, messages []ChatMessage) (string, error) {
	var reply string
	err := executeWithRetry(ctx, e.options.Retry, func() error {
		var callErr error
		reply, callErr = e.model.Complete(ctx, messages)
		e.logAttempt(ctx, callErr)
		return callErr
	})
	return reply, err
}

func (e *Engine) streamReply(ctx context.Context, messages []ChatMessage, handle *ProgressHandle) (string, error) {
	var stream FragmentStream
	err := executeWithRetry(ctx, e.options.Retry, func() error {
		var callErr error
		stream, callErr = e.model.Stream(ctx, messages)
		e.logAttempt(ctx, callErr)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return e.streamer.Consume(ctx, stream, handle)
}

func (e *Engine) logAttempt(ctx context.Context, err error) {
	if err == nil {
		return
	}
	e.options.Logger.Warn(ctx, "Model call failed",
		logging.Field("error", err.Error()),
		logging.Field("retriable", IsRetriable(err)),
	)
}

func (e *Engine) fail(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) {
		e.options.Logger.Info(ctx, "Turn interrupted")
		return err
	}
	e.options.Logger.Error(ctx, "Turn failed", err)
	e.display.Error(DescribeError(err))
	return fmt.Errorf("runtime: turn failed: %w", err)
}

func (e *Engine) setState(state TurnState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
}

// State returns the engine's current position in the turn cycle.
func (e *Engine) State() TurnState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Blocks returns the code blocks of the last successful reply.
func (e *Engine) Blocks() []codeblock.CodeBlock {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]codeblock.CodeBlock(nil), e.blocks...)
}

// Transcript returns a copy of the conversation so far.
func (e *Engine) Transcript() []ChatMessage {
	return e.transcript.Snapshot()
}

// PendingHint returns the hint block appended but not yet consumed, if any.
func (e *Engine) PendingHint() *HintBlock {
	return e.transcript.PendingHint()
}
