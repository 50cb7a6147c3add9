package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/sourcegraph/conc"

	"github.com/asynkron/aishell/internal/logging"
)

// DefaultProgressLabel is shown next to the spinner while the model works.
const DefaultProgressLabel = "Ai thinking..."

// ProgressOptions configures a ProgressSignal.
type ProgressOptions struct {
	// Interval between two spinner frames.
	Interval time.Duration
	Frames   []string
	Logger   logging.Logger
}

func (o *ProgressOptions) setDefaults() {
	if o.Interval <= 0 {
		o.Interval = 100 * time.Millisecond
	}
	if len(o.Frames) == 0 {
		o.Frames = spinner.Dot.Frames
	}
	o.Logger = logging.OrNoOp(o.Logger)
}

// ProgressSignal starts spinner goroutines that redraw a status line until
// they are stopped. At most one handle is running at a time.
type ProgressSignal struct {
	sink    StatusSink
	options ProgressOptions

	mu     sync.Mutex
	active *ProgressHandle
}

// NewProgressSignal creates a signal drawing onto sink.
func NewProgressSignal(sink StatusSink, options ProgressOptions) *ProgressSignal {
	options.setDefaults()
	return &ProgressSignal{sink: sink, options: options}
}

// Start launches the ticking indicator. A handle still running from an
// earlier Start is stopped first.
func (p *ProgressSignal) Start(label string) *ProgressHandle {
	p.mu.Lock()
	previous := p.active
	p.mu.Unlock()
	previous.Stop()

	handle := &ProgressHandle{
		sink:   p.sink,
		logger: p.options.Logger,
		stop:   make(chan struct{}),
	}
	handle.running.Store(true)

	frames := append([]string(nil), p.options.Frames...)
	interval := p.options.Interval
	handle.wg.Go(func() { handle.loop(label, frames, interval) })

	p.mu.Lock()
	p.active = handle
	p.mu.Unlock()
	return handle
}

// ProgressHandle is the caller-owned token of one running indicator. Its
// only transition is Running to Stopped.
type ProgressHandle struct {
	sink   StatusSink
	logger logging.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       conc.WaitGroup
	running  atomic.Bool
	ticks    atomic.Int64
}

func (h *ProgressHandle) loop(label string, frames []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	frame := 0
	h.sink.ShowStatus(frames[frame], label)
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			frame = (frame + 1) % len(frames)
			h.ticks.Add(1)
			h.sink.ShowStatus(frames[frame], label)
		}
	}
}

// Stop halts the indicator and returns only after its goroutine has exited
// and the status line was cleared. It is safe on a nil handle and safe to
// call repeatedly or concurrently.
func (h *ProgressHandle) Stop() {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() {
		close(h.stop)
		if recovered := h.wg.WaitAndRecover(); recovered != nil {
			h.logger.Error(context.Background(), "Progress indicator panicked", recovered.AsError())
		}
		h.sink.ClearStatus()
		h.running.Store(false)
	})
}

// Running reports whether Stop has not completed yet.
func (h *ProgressHandle) Running() bool {
	return h != nil && h.running.Load()
}

// Ticks returns how many frames were advanced after the first draw.
func (h *ProgressHandle) Ticks() int64 {
	if h == nil {
		return 0
	}
	return h.ticks.Load()
}
