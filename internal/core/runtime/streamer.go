package runtime

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/asynkron/aishell/internal/logging"
)

// StreamerOptions configures a ResponseStreamer.
type StreamerOptions struct {
	// RefreshDelay is the pause after each redraw of the live view.
	RefreshDelay time.Duration
	Logger       logging.Logger
}

func (o *StreamerOptions) setDefaults() {
	if o.RefreshDelay <= 0 {
		o.RefreshDelay = 10 * time.Millisecond
	}
	o.Logger = logging.OrNoOp(o.Logger)
}

// ResponseStreamer renders a streamed reply into a live view and returns the
// concatenated text.
type ResponseStreamer struct {
	display Display
	options StreamerOptions
}

// NewResponseStreamer creates a streamer drawing onto display.
func NewResponseStreamer(display Display, options StreamerOptions) *ResponseStreamer {
	options.setDefaults()
	return &ResponseStreamer{display: display, options: options}
}

// Consume drains stream. The first non-empty fragment stops handle and opens
// the live view; each later fragment redraws the full text so far. A stream
// with no content returns "" without rendering. On failure or cancellation
// the partial text is discarded and the progress handle is stopped.
func (s *ResponseStreamer) Consume(ctx context.Context, stream FragmentStream, handle *ProgressHandle) (string, error) {
	defer func() {
		if err := stream.Close(); err != nil {
			s.options.Logger.Warn(ctx, "Failed to close reply stream", logging.Field("error", err.Error()))
		}
	}()

	var (
		buffer    strings.Builder
		live      LiveView
		fragments int
	)
	abort := func(err error) (string, error) {
		handle.Stop()
		if live != nil {
			live.Discard()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}

	for {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return abort(err)
		}
		if fragment == "" {
			continue
		}

		if live == nil {
			handle.Stop()
			live = s.display.Live()
		}
		fragments++
		buffer.WriteString(fragment)
		live.Update(buffer.String())

		if err := s.throttle(ctx); err != nil {
			return abort(err)
		}
	}

	handle.Stop()
	reply := buffer.String()
	if live != nil {
		live.Commit(reply)
	}
	s.options.Logger.Debug(ctx, "Reply stream finished",
		logging.Field("fragments", fragments),
		logging.Field("chars", len(reply)),
	)
	return reply, nil
}

func (s *ResponseStreamer) throttle(ctx context.Context) error {
	timer := time.NewTimer(s.options.RefreshDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
