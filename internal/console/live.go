package console

import (
	"io"
	"strings"

	"github.com/asynkron/aishell/internal/core/runtime"
)

// ShowStatus draws the spinner line in place. Non-interactive consoles
// ignore it.
func (c *Console) ShowStatus(frame, label string) {
	if !c.interactive {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, "\r")
	c.termOut.ClearLine()
	_, _ = io.WriteString(c.out, c.dim.Render(frame+" "+label))
	c.statusShown = true
}

// ClearStatus removes the spinner line.
func (c *Console) ClearStatus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearStatusLocked()
}

func (c *Console) clearStatusLocked() {
	if !c.statusShown {
		return
	}
	_, _ = io.WriteString(c.out, "\r")
	c.termOut.ClearLine()
	c.statusShown = false
}

// Live opens a region that is redrawn in place for every update.
func (c *Console) Live() runtime.LiveView {
	return &liveRegion{console: c}
}

// liveRegion remembers how many lines it drew so the next update can erase
// them. While streaming only the tail that fits on screen is drawn; the
// committed text is printed in full.
type liveRegion struct {
	console *Console
	drawn   int
	closed  bool
}

func (l *liveRegion) Update(text string) {
	c := l.console
	if !c.interactive || l.closed {
		return
	}
	rendered := strings.TrimRight(c.renderMarkdown(text), "\n")
	lines := strings.Split(rendered, "\n")
	if limit := c.height - 1; limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearStatusLocked()
	l.eraseLocked()
	_, _ = io.WriteString(c.out, strings.Join(lines, "\n")+"\n")
	l.drawn = len(lines)
}

func (l *liveRegion) Commit(text string) {
	if l.closed {
		return
	}
	l.closed = true
	c := l.console
	rendered := c.renderMarkdown(text)

	c.mu.Lock()
	defer c.mu.Unlock()
	l.eraseLocked()
	c.writeLocked(rendered)
}

func (l *liveRegion) Discard() {
	if l.closed {
		return
	}
	l.closed = true
	c := l.console
	c.mu.Lock()
	defer c.mu.Unlock()
	l.eraseLocked()
}

func (l *liveRegion) eraseLocked() {
	if l.drawn == 0 {
		return
	}
	// The cursor sits at the start of the line below the region.
	l.console.termOut.ClearLines(l.drawn)
	l.drawn = 0
}
