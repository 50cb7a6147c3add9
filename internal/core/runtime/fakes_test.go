package runtime

import (
	"context"
	"io"
	"sync"
)

// fakeDisplay records everything the engine draws.
type fakeDisplay struct {
	mu        sync.Mutex
	statuses  int
	clears    int
	markdown  []string
	errors    []string
	lives     []*fakeLive
	statusLog []string
}

func (d *fakeDisplay) ShowStatus(frame, label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses++
	d.statusLog = append(d.statusLog, frame+" "+label)
}

func (d *fakeDisplay) ClearStatus() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clears++
}

func (d *fakeDisplay) Markdown(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markdown = append(d.markdown, text)
}

func (d *fakeDisplay) Error(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors = append(d.errors, text)
}

func (d *fakeDisplay) Live() LiveView {
	d.mu.Lock()
	defer d.mu.Unlock()
	live := &fakeLive{}
	d.lives = append(d.lives, live)
	return live
}

func (d *fakeDisplay) statusCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.statuses
}

type fakeLive struct {
	updates   []string
	committed *string
	discarded bool
}

func (l *fakeLive) Update(text string) { l.updates = append(l.updates, text) }
func (l *fakeLive) Commit(text string) { l.committed = &text }
func (l *fakeLive) Discard()           { l.discarded = true }

// sliceStream replays fragments and then returns err, or io.EOF when err is nil.
type sliceStream struct {
	fragments []string
	err       error
	closed    bool
	// onRecv runs before every Recv, used to cancel mid-stream.
	onRecv func(call int)
	calls  int
}

func (s *sliceStream) Recv() (string, error) {
	if s.onRecv != nil {
		s.onRecv(s.calls)
	}
	s.calls++
	if len(s.fragments) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	next := s.fragments[0]
	s.fragments = s.fragments[1:]
	return next, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

// fakeModel answers Complete and Stream from canned values.
type fakeModel struct {
	mu        sync.Mutex
	reply     string
	fragments []string
	errs      []error
	calls     int
	seen      [][]ChatMessage
}

func (m *fakeModel) nextErr() error {
	if len(m.errs) == 0 {
		return nil
	}
	err := m.errs[0]
	m.errs = m.errs[1:]
	return err
}

func (m *fakeModel) Complete(_ context.Context, messages []ChatMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.seen = append(m.seen, messages)
	if err := m.nextErr(); err != nil {
		return "", err
	}
	return m.reply, nil
}

func (m *fakeModel) Stream(_ context.Context, messages []ChatMessage) (FragmentStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.seen = append(m.seen, messages)
	if err := m.nextErr(); err != nil {
		return nil, err
	}
	return &sliceStream{fragments: append([]string(nil), m.fragments...)}, nil
}
