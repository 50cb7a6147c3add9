package runtime

import (
	"sync"
	"time"
)

// Metrics collects per-session counters for model calls and executions.
type Metrics interface {
	// RecordAPICall records a model call with duration and success status.
	RecordAPICall(duration time.Duration, success bool)
	// RecordCommandExecution records a shell execution with its label, duration, and success status.
	RecordCommandExecution(label string, duration time.Duration, success bool)
	// GetSnapshot returns the current metrics snapshot.
	GetSnapshot() MetricsSnapshot
	// Reset clears all metrics (useful for testing).
	Reset()
}

// MetricsSnapshot contains a point-in-time view of collected metrics.
type MetricsSnapshot struct {
	APICalls          CallMetrics
	CommandExecutions CallMetrics
	LastAPICallTime   time.Time
	LastCommandTime   time.Time
}

// CallMetrics tracks counts and durations of one kind of call.
type CallMetrics struct {
	Total     int64
	Success   int64
	Failed    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// Average returns the mean duration, or zero when nothing was recorded.
func (c CallMetrics) Average() time.Duration {
	if c.Total == 0 {
		return 0
	}
	return c.TotalTime / time.Duration(c.Total)
}

func (c *CallMetrics) record(duration time.Duration, success bool) {
	if c.Total == 0 || duration < c.MinTime {
		c.MinTime = duration
	}
	if duration > c.MaxTime {
		c.MaxTime = duration
	}
	c.Total++
	if success {
		c.Success++
	} else {
		c.Failed++
	}
	c.TotalTime += duration
}

// NoOpMetrics is a metrics collector that discards all metrics.
type NoOpMetrics struct{}

func (n *NoOpMetrics) RecordAPICall(_ time.Duration, _ bool)                    {}
func (n *NoOpMetrics) RecordCommandExecution(_ string, _ time.Duration, _ bool) {}
func (n *NoOpMetrics) GetSnapshot() MetricsSnapshot                             { return MetricsSnapshot{} }
func (n *NoOpMetrics) Reset()                                                   {}

// InMemoryMetrics is a thread-safe in-memory metrics collector.
type InMemoryMetrics struct {
	mu       sync.RWMutex
	snapshot MetricsSnapshot
	now      func() time.Time
}

// NewInMemoryMetrics creates a new in-memory metrics collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{now: time.Now}
}

func (m *InMemoryMetrics) RecordAPICall(duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.APICalls.record(duration, success)
	m.snapshot.LastAPICallTime = m.now()
}

func (m *InMemoryMetrics) RecordCommandExecution(_ string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.CommandExecutions.record(duration, success)
	m.snapshot.LastCommandTime = m.now()
}

func (m *InMemoryMetrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

func (m *InMemoryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = MetricsSnapshot{}
}
