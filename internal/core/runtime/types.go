package runtime

import (
	"context"
	"time"

	"github.com/asynkron/aishell/internal/core/codeblock"
)

// MessageRole enumerates the chat roles supported by the engine.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage stores a single message exchanged with the model.
type ChatMessage struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"-"`
}

// TurnState is the engine's position in the per-turn state machine.
type TurnState int

const (
	StateIdle TurnState = iota
	StateSending
	StateStreaming
	StateWaitingBatch
	StateExtracting
)

func (s TurnState) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateWaitingBatch:
		return "waiting-batch"
	case StateExtracting:
		return "extracting"
	default:
		return "idle"
	}
}

// TurnResult is what one completed turn hands back to the caller.
type TurnResult struct {
	Reply  string
	Blocks []codeblock.CodeBlock
}

// FragmentStream yields incremental reply text. Recv returns io.EOF once the
// reply is complete.
type FragmentStream interface {
	Recv() (string, error)
	Close() error
}

// ChatModel is the model call collaborator.
type ChatModel interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
	Stream(ctx context.Context, messages []ChatMessage) (FragmentStream, error)
}

// StatusSink renders the single-line progress indicator.
type StatusSink interface {
	ShowStatus(frame, label string)
	ClearStatus()
}

// LiveView is a region that is redrawn in place while a reply streams in.
type LiveView interface {
	// Update replaces the region's content with the full text so far.
	Update(text string)
	// Commit renders the final text and leaves it on screen.
	Commit(text string)
	// Discard removes the region without committing anything.
	Discard()
}

// Display is the console surface the engine writes to.
type Display interface {
	StatusSink
	Markdown(text string)
	Error(text string)
	Live() LiveView
}
