package runtime

import (
	"sync"
	"time"
)

// HintBlock carries instructions offered to the model ahead of a user
// message. It is appended to a transcript at most once and is consumed by
// the first turn that succeeds after it.
type HintBlock struct {
	messages []ChatMessage
	appended bool
	consumed bool
}

// NewHintBlock wraps each text as a user-role hint message.
func NewHintBlock(texts ...string) *HintBlock {
	messages := make([]ChatMessage, 0, len(texts))
	for _, text := range texts {
		messages = append(messages, ChatMessage{Role: RoleUser, Content: text})
	}
	return &HintBlock{messages: messages}
}

// Messages returns a copy of the hint messages.
func (h *HintBlock) Messages() []ChatMessage {
	if h == nil {
		return nil
	}
	return append([]ChatMessage(nil), h.messages...)
}

// Consumed reports whether a successful turn already used the hint.
func (h *HintBlock) Consumed() bool {
	return h == nil || h.consumed
}

// Transcript is the ordered conversation history. The system message is
// fixed at creation; everything after it is append-only.
type Transcript struct {
	mu       sync.RWMutex
	messages []ChatMessage
	// pending is the single hint block appended but not yet consumed.
	pending *HintBlock
}

// NewTranscript starts a history holding only the system message.
func NewTranscript(systemPrompt string) *Transcript {
	return &Transcript{
		messages: []ChatMessage{{Role: RoleSystem, Content: systemPrompt, Timestamp: time.Now()}},
	}
}

// Append adds message to the end of the history.
func (t *Transcript) Append(message ChatMessage) {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, message)
}

// AppendHint adds the hint's messages unless the hint was already appended
// or consumed. A newer hint retires an older unconsumed one, keeping at most
// one pending block.
func (t *Transcript) AppendHint(hint *HintBlock) bool {
	if hint == nil || hint.consumed || hint.appended || len(hint.messages) == 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil && t.pending != hint {
		t.pending.consumed = true
	}
	now := time.Now()
	for _, msg := range hint.messages {
		msg.Timestamp = now
		t.messages = append(t.messages, msg)
	}
	hint.appended = true
	t.pending = hint
	return true
}

// ConsumeHint marks the pending hint block as used.
func (t *Transcript) ConsumeHint() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		t.pending.consumed = true
		t.pending = nil
	}
}

// PendingHint returns the appended but unconsumed hint block, or nil.
func (t *Transcript) PendingHint() *HintBlock {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pending
}

// Snapshot returns a copy that callers can hand to the model client.
func (t *Transcript) Snapshot() []ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]ChatMessage(nil), t.messages...)
}

// Len returns the number of messages, system message included.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
