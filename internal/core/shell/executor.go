package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/asynkron/aishell/internal/core/codeblock"
	"github.com/asynkron/aishell/internal/logging"
)

// Printer is the console surface the executor reports through.
type Printer interface {
	Dim(text string)
	Print(text string)
	Warn(text string)
	Error(text string)
}

// ExecutionRecorder receives one sample per executed command.
type ExecutionRecorder interface {
	RecordCommandExecution(label string, duration time.Duration, success bool)
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	Logger   logging.Logger
	Recorder ExecutionRecorder
}

// Executor runs code blocks chosen by the user one at a time and renders
// their outcome. Failures are reported to the Printer, never returned.
type Executor struct {
	runner   Runner
	out      Printer
	logger   logging.Logger
	recorder ExecutionRecorder

	// mu keeps executions sequential, header included, even when driven from
	// several goroutines.
	mu sync.Mutex
}

// NewExecutor wires a runner to the console printer.
func NewExecutor(runner Runner, out Printer, options ExecutorOptions) *Executor {
	return &Executor{
		runner:   runner,
		out:      out,
		logger:   logging.OrNoOp(options.Logger),
		recorder: options.Recorder,
	}
}

// Run executes the 1-based block index out of blocks. An out-of-range index
// prints a warning and launches nothing.
func (e *Executor) Run(ctx context.Context, blocks []codeblock.CodeBlock, index int) {
	if index < 1 || index > len(blocks) {
		e.logger.Warn(ctx, "Code block index out of range",
			logging.Field("index", index),
			logging.Field("available", len(blocks)),
		)
		e.out.Warn(fmt.Sprintf("Block #%d does not exist. Available blocks: 1 to %d.", index, len(blocks)))
		return
	}

	block := blocks[index-1]
	e.mu.Lock()
	defer e.mu.Unlock()
	e.out.Dim(fmt.Sprintf(">>> Running block #%d:", index))
	e.out.Print(block.Body)
	e.execute(ctx, fmt.Sprintf("block-%d", index), block.Body)
}

// RunCommand executes a command typed directly by the user.
func (e *Executor) RunCommand(ctx context.Context, command string) {
	if strings.TrimSpace(command) == "" {
		e.out.Dim("Empty command, nothing to run.")
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.out.Dim(">>> Executing command:")
	e.out.Print(command)
	e.execute(ctx, "direct", command)
}

// execute runs code with panics recovered. Callers hold mu from the header
// onwards.
func (e *Executor) execute(ctx context.Context, label, code string) {
	var catcher panics.Catcher
	catcher.Try(func() { e.executeLocked(ctx, label, code) })
	if recovered := catcher.Recovered(); recovered != nil {
		err := recovered.AsError()
		e.logger.Error(ctx, "Command execution panicked", err, logging.Field("label", label))
		e.out.Error(fmt.Sprintf("Script execution error: %v", recovered.Value))
	}
}

func (e *Executor) executeLocked(ctx context.Context, label, code string) {
	e.out.Dim(">>> Result:")

	start := time.Now()
	result, err := e.runner.Execute(ctx, code)
	duration := time.Since(start)
	if e.recorder != nil {
		e.recorder.RecordCommandExecution(label, duration, err == nil && result.ExitCode == 0)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			e.out.Warn("Execution interrupted.")
			return
		}
		e.logger.Error(ctx, "Command execution failed", err, logging.Field("label", label))
		e.out.Error(fmt.Sprintf("Script execution error: %v", err))
		return
	}

	e.logger.Info(ctx, "Command executed",
		logging.Field("label", label),
		logging.Field("exit_code", result.ExitCode),
		logging.Field("duration_ms", duration.Milliseconds()),
	)
	e.out.Dim(fmt.Sprintf(">>> Exit code: %d", result.ExitCode))

	if result.Stderr != "" && !hasTaggedErrors(result.Stderr) {
		e.out.Warn(">>> Error:")
		e.out.Print(result.Stderr)
	}
}

// hasTaggedErrors reports whether any stderr line was already shown with
// the runner's error tag.
func hasTaggedErrors(stderr string) bool {
	for _, line := range strings.Split(stderr, "\n") {
		if strings.Contains(line, strings.TrimSpace(ErrorTag)) {
			return true
		}
	}
	return false
}
