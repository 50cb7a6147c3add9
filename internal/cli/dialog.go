package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/asynkron/aishell/internal/console"
)

// interruptible returns a context cancelled by Ctrl+C. While it is active an
// interrupt stops the current operation instead of the process.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}

// runDialog reads lines until the user leaves, input ends or Ctrl+C is
// pressed at the prompt. Ctrl+C during a turn or a block only interrupts
// that operation.
func runDialog(ctx context.Context, session *Session, term *console.Console, in *lineReader, initial string) error {
	if initial != "" && handleInterruptible(ctx, session, initial) {
		return nil
	}

	for ctx.Err() == nil {
		term.Dim(session.Hint())
		_, _ = io.WriteString(term.Writer(), term.Prompt())

		promptCtx, stop := interruptible(ctx)
		line, err := in.ReadLine(promptCtx)
		stop()
		if err != nil {
			term.Blank()
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		if handleInterruptible(ctx, session, line) {
			return nil
		}
	}
	return nil
}

func handleInterruptible(ctx context.Context, session *Session, line string) bool {
	opCtx, stop := interruptible(ctx)
	defer stop()
	return session.Handle(opCtx, line)
}
