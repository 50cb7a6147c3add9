package runtime

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStreamer(display *fakeDisplay) *ResponseStreamer {
	return NewResponseStreamer(display, StreamerOptions{RefreshDelay: time.Microsecond})
}

func TestConsumeConcatenatesFragmentsInOrder(t *testing.T) {
	t.Parallel()

	display := &fakeDisplay{}
	handle := NewProgressSignal(display, ProgressOptions{}).Start("working")
	fragments := []string{"Hello", "", ", ", "world", "!"}
	stream := &sliceStream{fragments: fragments}

	reply, err := newTestStreamer(display).Consume(context.Background(), stream, handle)
	require.NoError(t, err)

	assert.Equal(t, strings.Join(fragments, ""), reply)
	assert.False(t, handle.Running(), "first fragment must stop the progress signal")
	assert.True(t, stream.closed)

	require.Len(t, display.lives, 1)
	live := display.lives[0]
	assert.Equal(t, []string{"Hello", "Hello, ", "Hello, world", "Hello, world!"}, live.updates)
	require.NotNil(t, live.committed)
	assert.Equal(t, reply, *live.committed)
}

func TestConsumeEmptyStreamRendersNothing(t *testing.T) {
	t.Parallel()

	display := &fakeDisplay{}
	handle := NewProgressSignal(display, ProgressOptions{}).Start("working")

	reply, err := newTestStreamer(display).Consume(context.Background(), &sliceStream{fragments: []string{"", ""}}, handle)
	require.NoError(t, err)
	assert.Empty(t, reply)
	assert.Empty(t, display.lives)
	assert.False(t, handle.Running())
}

func TestConsumeDiscardsPartialTextOnError(t *testing.T) {
	t.Parallel()

	display := &fakeDisplay{}
	handle := NewProgressSignal(display, ProgressOptions{}).Start("working")
	boom := &APIError{Kind: KindConnection, Message: "stream read"}

	reply, err := newTestStreamer(display).Consume(context.Background(), &sliceStream{fragments: []string{"partial"}, err: boom}, handle)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, reply)
	require.Len(t, display.lives, 1)
	assert.True(t, display.lives[0].discarded)
	assert.Nil(t, display.lives[0].committed)
}

func TestConsumeHonoursCancellation(t *testing.T) {
	t.Parallel()

	display := &fakeDisplay{}
	handle := NewProgressSignal(display, ProgressOptions{}).Start("working")
	ctx, cancel := context.WithCancel(context.Background())

	stream := &sliceStream{
		fragments: []string{"one", "two", "three"},
		onRecv: func(call int) {
			if call == 1 {
				cancel()
			}
		},
	}

	reply, err := newTestStreamer(display).Consume(ctx, stream, handle)
	require.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, reply)
	assert.False(t, handle.Running())
	require.Len(t, display.lives, 1)
	assert.True(t, display.lives[0].discarded)
}
