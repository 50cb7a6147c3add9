package tui

import (
	"io"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/asynkron/aishell/internal/core/runtime"
)

type lineKind int

const (
	linePlain lineKind = iota
	lineDim
	lineWarn
	lineError
	lineOutput
)

type lineMsg struct {
	kind lineKind
	text string
}

type statusMsg struct{ text string }

type markdownMsg struct{ text string }

type liveMsg struct {
	text string
	done bool
	// discard drops the streamed text instead of committing it.
	discard bool
}

type handledMsg struct{ exit bool }

type closedMsg struct{}

// Bridge carries engine and executor output into the bubbletea program. It
// implements runtime.Display and the printer the session and executor use.
type Bridge struct {
	msgs chan tea.Msg
	done chan struct{}
	once sync.Once
}

// NewBridge returns a bridge with a small buffer; senders block while the
// UI catches up.
func NewBridge() *Bridge {
	return &Bridge{
		msgs: make(chan tea.Msg, 64),
		done: make(chan struct{}),
	}
}

// Close releases blocked senders once the program has stopped.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.msgs <- msg:
	case <-b.done:
	}
}

// next waits for the following message.
func (b *Bridge) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.msgs:
			return msg
		case <-b.done:
			return closedMsg{}
		}
	}
}

func (b *Bridge) ShowStatus(frame, label string) { b.send(statusMsg{text: frame + " " + label}) }
func (b *Bridge) ClearStatus()                   { b.send(statusMsg{}) }
func (b *Bridge) Markdown(text string)           { b.send(markdownMsg{text: text}) }
func (b *Bridge) Error(text string)              { b.send(lineMsg{kind: lineError, text: text}) }
func (b *Bridge) Dim(text string)                { b.send(lineMsg{kind: lineDim, text: text}) }
func (b *Bridge) Print(text string)              { b.send(lineMsg{kind: linePlain, text: text}) }
func (b *Bridge) Warn(text string)               { b.send(lineMsg{kind: lineWarn, text: text}) }
func (b *Bridge) Blank()                         { b.send(lineMsg{kind: linePlain}) }

// Live opens the streaming region of the transcript.
func (b *Bridge) Live() runtime.LiveView { return &bridgeLive{bridge: b} }

// Writer receives process stdout.
func (b *Bridge) Writer() io.Writer { return &lineSink{bridge: b, kind: lineOutput} }

// ErrorWriter receives tagged process stderr.
func (b *Bridge) ErrorWriter() io.Writer { return &lineSink{bridge: b, kind: lineError} }

type bridgeLive struct {
	bridge *Bridge
	closed bool
}

func (l *bridgeLive) Update(text string) {
	if !l.closed {
		l.bridge.send(liveMsg{text: text})
	}
}

func (l *bridgeLive) Commit(text string) {
	if l.closed {
		return
	}
	l.closed = true
	l.bridge.send(liveMsg{text: text, done: true})
}

func (l *bridgeLive) Discard() {
	if l.closed {
		return
	}
	l.closed = true
	l.bridge.send(liveMsg{done: true, discard: true})
}

// lineSink turns process output into one transcript line per write line.
type lineSink struct {
	bridge *Bridge
	kind   lineKind
}

func (s *lineSink) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	for _, line := range strings.Split(text, "\n") {
		s.bridge.send(lineMsg{kind: s.kind, text: strings.TrimRight(line, "\r")})
	}
	return len(p), nil
}

var _ runtime.Display = (*Bridge)(nil)
