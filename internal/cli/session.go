package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/asynkron/aishell/internal/core/runtime"
	"github.com/asynkron/aishell/internal/core/shell"
	"github.com/asynkron/aishell/internal/logging"
)

const (
	hintWithBlocks = "The number of the code block to execute or the next question... Ctrl+C - exit"
	hintNoBlocks   = "Your question... Ctrl+C - exit"
)

// Printer is the output surface a session writes to.
type Printer interface {
	shell.Printer
	Blank()
}

// SessionOptions configures a Session.
type SessionOptions struct {
	Logger  logging.Logger
	Metrics runtime.Metrics
	// Hint is offered with every turn until one succeeds.
	Hint *runtime.HintBlock
}

// Session routes one line of user input to the engine, the executor or a
// local command.
type Session struct {
	engine   *runtime.Engine
	executor *shell.Executor
	out      Printer
	logger   logging.Logger
	metrics  runtime.Metrics
	hint     *runtime.HintBlock
}

// NewSession wires a session around an engine and an executor.
func NewSession(engine *runtime.Engine, executor *shell.Executor, out Printer, options SessionOptions) *Session {
	metrics := options.Metrics
	if metrics == nil {
		metrics = &runtime.NoOpMetrics{}
	}
	return &Session{
		engine:   engine,
		executor: executor,
		out:      out,
		logger:   logging.OrNoOp(options.Logger),
		metrics:  metrics,
		hint:     options.Hint,
	}
}

// Hint returns the input hint for the current state.
func (s *Session) Hint() string {
	if len(s.engine.Blocks()) > 0 {
		return hintWithBlocks
	}
	return hintNoBlocks
}

// Ask performs a single turn without the hint block.
func (s *Session) Ask(ctx context.Context, prompt string) error {
	_, err := s.engine.RunTurn(ctx, prompt)
	return err
}

// Handle processes one line of input and reports whether the session should
// end.
func (s *Session) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case isExit(line):
		return true
	case isDigits(line):
		s.runBlock(ctx, line)
	case strings.HasPrefix(line, "."):
		s.executor.RunCommand(ctx, strings.TrimSpace(line[1:]))
	case isSlashCommand(line):
		return s.command(ctx, line)
	default:
		s.turn(ctx, line)
	}
	s.out.Blank()
	return false
}

func (s *Session) turn(ctx context.Context, prompt string) {
	result, err := s.engine.RunTurn(ctx, prompt, s.hint)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn(ctx, "turn failed", logging.Field("error", err.Error()))
		}
		return
	}
	s.logger.Debug(ctx, "turn complete", logging.Field("blocks", len(result.Blocks)))
}

func (s *Session) runBlock(ctx context.Context, digits string) {
	blocks := s.engine.Blocks()
	index, err := strconv.Atoi(digits)
	if err != nil {
		s.out.Warn(fmt.Sprintf("Block #%s does not exist. Available blocks: 1 to %d.", digits, len(blocks)))
		return
	}
	s.executor.Run(ctx, blocks, index)
}

func isExit(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit", "q":
		return true
	}
	return false
}

func isDigits(line string) bool {
	if line == "" {
		return false
	}
	for _, r := range line {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
