// Package shell runs extracted code blocks on the host: it launches the
// platform shell, streams and decodes its output, and renders the result.
package shell

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/asynkron/aishell/internal/logging"
)

// ErrorTag prefixes stderr lines echoed by a runner.
const ErrorTag = "Error: "

// exitCodeLaunchFailure is reported when the shell itself could not start.
const exitCodeLaunchFailure = 127

// Variant selects how commands are launched on the host.
type Variant int

const (
	VariantPOSIX Variant = iota
	VariantWindows
)

func (v Variant) String() string {
	switch v {
	case VariantWindows:
		return "windows"
	default:
		return "posix"
	}
}

// DetectVariant maps a GOOS value to the runner variant that serves it.
func DetectVariant(goos string) Variant {
	if strings.EqualFold(goos, "windows") {
		return VariantWindows
	}
	return VariantPOSIX
}

// HostVariant returns the variant for the running binary.
func HostVariant() Variant {
	return DetectVariant(goruntime.GOOS)
}

// Result is the outcome of one command execution.
type Result struct {
	ExitCode int
	Stdout   string
	// Stderr holds the stderr lines as they were echoed, each carrying
	// ErrorTag.
	Stderr string
}

// Runner executes one command and blocks until the child terminates.
type Runner interface {
	Execute(ctx context.Context, command string) (Result, error)
}

// RunnerOptions configures both runner variants.
type RunnerOptions struct {
	// Stdout receives each decoded stdout line as soon as it is read.
	Stdout io.Writer
	// Stderr receives each decoded stderr line, prefixed with ErrorTag.
	Stderr io.Writer
	Logger logging.Logger

	// Shell is the POSIX shell, optionally with flags ("/bin/bash -c").
	Shell string
	// IgnoreStderr discards stderr on the POSIX variant instead of
	// capturing it.
	IgnoreStderr bool

	// TempDir holds the temporary batch files of the Windows variant.
	TempDir string
	// Interpreter launches a batch file on the Windows variant; the file
	// path is appended as the last argument.
	Interpreter []string
}

func (o *RunnerOptions) setDefaults() {
	if o.Stdout == nil {
		o.Stdout = io.Discard
	}
	if o.Stderr == nil {
		o.Stderr = io.Discard
	}
	o.Logger = logging.OrNoOp(o.Logger)
	if strings.TrimSpace(o.Shell) == "" {
		o.Shell = "/bin/sh"
	}
	if len(o.Interpreter) == 0 {
		o.Interpreter = []string{"cmd.exe", "/C"}
	}
}

// NewRunner builds the runner for the given variant.
func NewRunner(variant Variant, options RunnerOptions) Runner {
	options.setDefaults()
	// Both sinks usually point at the same terminal, so line writes share a lock.
	var mu sync.Mutex
	stdout := &lineWriter{mu: &mu, w: options.Stdout}
	stderr := &lineWriter{mu: &mu, w: options.Stderr}

	if variant == VariantWindows {
		return &windowsRunner{options: options, stdout: stdout, stderr: stderr}
	}
	return &posixRunner{options: options, stdout: stdout, stderr: stderr}
}

type posixRunner struct {
	options RunnerOptions
	stdout  *lineWriter
	stderr  *lineWriter
}

// Execute runs command through the configured POSIX shell.
func (r *posixRunner) Execute(ctx context.Context, command string) (Result, error) {
	cmd, err := buildShellCommand(ctx, r.options.Shell, command)
	if err != nil {
		return Result{}, fmt.Errorf("shell: %w", err)
	}
	r.options.Logger.Debug(ctx, "Executing shell command",
		logging.Field("shell", r.options.Shell),
		logging.Field("command", preview(command, 80)),
	)

	result, err := runProcess(ctx, cmd, streamSpec{
		encodings:     POSIXEncodings,
		stdout:        r.stdout,
		stderr:        r.stderr,
		captureStderr: !r.options.IgnoreStderr,
		logger:        r.options.Logger,
	})
	logResult(ctx, r.options.Logger, result)
	return result, err
}

// buildShellCommand normalizes the shell string ("/bin/sh", "bash -c", etc.)
// before wiring it up with the user's command. A bare shell gets "-c".
func buildShellCommand(ctx context.Context, shell, run string) (*exec.Cmd, error) {
	parts := strings.Fields(shell)
	if len(parts) == 0 {
		return nil, fmt.Errorf("invalid shell: %q", shell)
	}

	execPath := parts[0]
	args := parts[1:]
	if len(args) == 0 {
		args = append(args, "-c")
	}

	args = append(args, run)
	return exec.CommandContext(ctx, execPath, args...), nil
}

type streamSpec struct {
	encodings     []Encoding
	stdout        *lineWriter
	stderr        *lineWriter
	captureStderr bool
	logger        logging.Logger
}

// runProcess starts cmd, pumps its output streams concurrently and waits for
// the exit status. A launch failure is reported as a result, not an error.
func runProcess(ctx context.Context, cmd *exec.Cmd, spec streamSpec) (Result, error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("shell: stdout pipe: %w", err)
	}
	var stderrPipe io.ReadCloser
	if spec.captureStderr {
		stderrPipe, err = cmd.StderrPipe()
		if err != nil {
			return Result{}, fmt.Errorf("shell: stderr pipe: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		spec.logger.Warn(ctx, "Shell failed to start", logging.Field("error", err.Error()))
		line := ErrorTag + err.Error()
		spec.stderr.WriteLine(line)
		return Result{ExitCode: exitCodeLaunchFailure, Stderr: line}, nil
	}

	var (
		wg          conc.WaitGroup
		stdoutLines []string
		stderrLines []string
	)
	wg.Go(func() {
		stdoutLines = pumpLines(stdoutPipe, spec.encodings, spec.stdout, "")
	})
	if stderrPipe != nil {
		wg.Go(func() {
			stderrLines = pumpLines(stderrPipe, spec.encodings, spec.stderr, ErrorTag)
		})
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		spec.logger.Error(ctx, "Output reader panicked", recovered.AsError())
	}

	waitErr := cmd.Wait()
	result := Result{
		Stdout: strings.Join(stdoutLines, "\n"),
		Stderr: strings.Join(stderrLines, "\n"),
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		result.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return result, fmt.Errorf("shell: wait: %w", waitErr)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	return result, nil
}

// pumpLines reads r line by line, decodes each line, echoes the non-empty
// ones to sink and returns them as echoed.
func pumpLines(r io.Reader, encodings []Encoding, sink *lineWriter, prefix string) []string {
	reader := bufio.NewReader(r)
	var lines []string
	for {
		raw, err := reader.ReadBytes('\n')
		if len(raw) > 0 {
			if decoded := Decode(raw, encodings); decoded != "" {
				line := prefix + decoded
				lines = append(lines, line)
				sink.WriteLine(line)
			}
		}
		if err != nil {
			// Drain whatever is left so the child never blocks on a full pipe.
			_, _ = io.Copy(io.Discard, reader)
			return lines
		}
	}
}

// lineWriter serializes whole-line writes to a shared sink.
type lineWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lineWriter) WriteLine(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var buf bytes.Buffer
	buf.WriteString(line)
	buf.WriteByte('\n')
	_, _ = l.w.Write(buf.Bytes())
}

func logResult(ctx context.Context, logger logging.Logger, result Result) {
	logger.Debug(ctx, "Execution result",
		logging.Field("exit_code", result.ExitCode),
		logging.Field("stdout_bytes", len(result.Stdout)),
		logging.Field("stderr_bytes", len(result.Stderr)),
	)
}

func preview(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
