package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asynkron/aishell/internal/core/codeblock"
)

type printed struct {
	kind string
	text string
}

type recordingPrinter struct {
	mu    sync.Mutex
	lines []printed
}

func (p *recordingPrinter) add(kind, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, printed{kind: kind, text: text})
}

func (p *recordingPrinter) Dim(text string)   { p.add("dim", text) }
func (p *recordingPrinter) Print(text string) { p.add("plain", text) }
func (p *recordingPrinter) Warn(text string)  { p.add("warn", text) }
func (p *recordingPrinter) Error(text string) { p.add("error", text) }

func (p *recordingPrinter) texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.lines))
	for _, line := range p.lines {
		out = append(out, line.text)
	}
	return out
}

func (p *recordingPrinter) of(kind string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, line := range p.lines {
		if line.kind == kind {
			out = append(out, line.text)
		}
	}
	return out
}

type fakeRunner struct {
	mu       sync.Mutex
	commands []string
	result   Result
	err      error
	panicVal any
}

func (f *fakeRunner) Execute(_ context.Context, command string) (Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	f.mu.Unlock()
	if f.panicVal != nil {
		panic(f.panicVal)
	}
	return f.result, f.err
}

type countingRecorder struct {
	mu      sync.Mutex
	labels  []string
	success []bool
}

func (c *countingRecorder) RecordCommandExecution(label string, _ time.Duration, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labels = append(c.labels, label)
	c.success = append(c.success, success)
}

func blocks(bodies ...string) []codeblock.CodeBlock {
	out := make([]codeblock.CodeBlock, 0, len(bodies))
	for i, body := range bodies {
		out = append(out, codeblock.CodeBlock{Index: i + 1, Language: "bash", Body: body})
	}
	return out
}

func TestExecutorRejectsOutOfRangeIndex(t *testing.T) {
	t.Parallel()

	for _, index := range []int{0, -1, 3, 5} {
		runner := &fakeRunner{}
		printer := &recordingPrinter{}
		executor := NewExecutor(runner, printer, ExecutorOptions{})

		executor.Run(context.Background(), blocks("ls", "pwd"), index)

		warnings := printer.of("warn")
		require.Len(t, warnings, 1, "index %d", index)
		assert.Contains(t, warnings[0], "1 to 2")
		assert.Empty(t, runner.commands, "index %d must not launch anything", index)
	}
}

func TestExecutorRendersSuccessfulRun(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: Result{ExitCode: 0, Stdout: "hello"}}
	printer := &recordingPrinter{}
	recorder := &countingRecorder{}
	executor := NewExecutor(runner, printer, ExecutorOptions{Recorder: recorder})

	executor.Run(context.Background(), blocks("echo hello"), 1)

	assert.Equal(t, []string{
		">>> Running block #1:",
		"echo hello",
		">>> Result:",
		">>> Exit code: 0",
	}, printer.texts())
	assert.Equal(t, []string{"echo hello"}, runner.commands)
	assert.Equal(t, []string{"block-1"}, recorder.labels)
	assert.Equal(t, []bool{true}, recorder.success)
}

func TestExecutorShowsUntaggedStderr(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: Result{ExitCode: 127, Stderr: "exec: not found"}}
	printer := &recordingPrinter{}
	executor := NewExecutor(runner, printer, ExecutorOptions{})

	executor.Run(context.Background(), blocks("nope"), 1)

	texts := printer.texts()
	assert.Contains(t, texts, ">>> Exit code: 127")
	assert.Equal(t, []string{">>> Error:"}, printer.of("warn"))
	assert.Equal(t, "exec: not found", texts[len(texts)-1])
}

func TestExecutorSkipsAlreadyTaggedStderr(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: Result{ExitCode: 1, Stderr: "Error: boom"}}
	printer := &recordingPrinter{}
	executor := NewExecutor(runner, printer, ExecutorOptions{})

	executor.Run(context.Background(), blocks("boom"), 1)

	assert.Empty(t, printer.of("warn"))
	assert.Equal(t, ">>> Exit code: 1", printer.texts()[len(printer.texts())-1])
}

func TestExecutorReportsRunnerErrors(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errors.New("pipe broke")}
	printer := &recordingPrinter{}
	recorder := &countingRecorder{}
	executor := NewExecutor(runner, printer, ExecutorOptions{Recorder: recorder})

	executor.Run(context.Background(), blocks("ls"), 1)

	assert.Equal(t, []string{"Script execution error: pipe broke"}, printer.of("error"))
	assert.Equal(t, []bool{false}, recorder.success)
}

func TestExecutorRecoversFromRunnerPanic(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{panicVal: "kaboom"}
	printer := &recordingPrinter{}
	executor := NewExecutor(runner, printer, ExecutorOptions{})

	require.NotPanics(t, func() {
		executor.Run(context.Background(), blocks("ls"), 1)
	})
	errs := printer.of("error")
	require.Len(t, errs, 1)
	assert.True(t, strings.HasPrefix(errs[0], "Script execution error:"))
	assert.Contains(t, errs[0], "kaboom")
}

func TestExecutorRunCommand(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: Result{ExitCode: 0}}
	printer := &recordingPrinter{}
	executor := NewExecutor(runner, printer, ExecutorOptions{})

	executor.RunCommand(context.Background(), "   ")
	assert.Empty(t, runner.commands)

	executor.RunCommand(context.Background(), "uname -a")
	assert.Equal(t, []string{"uname -a"}, runner.commands)
	assert.Contains(t, printer.texts(), ">>> Executing command:")
}

func TestExecutorRunsRealShell(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	var stdout safeBuffer
	printer := &recordingPrinter{}
	executor := NewExecutor(NewRunner(VariantPOSIX, RunnerOptions{Stdout: &stdout}), printer, ExecutorOptions{})

	executor.Run(context.Background(), blocks("echo hello"), 1)

	assert.Equal(t, "hello\n", stdout.String())
	assert.Contains(t, printer.texts(), ">>> Exit code: 0")
}

func TestExecutorDoesNotRepeatLaunchFailure(t *testing.T) {
	t.Parallel()

	var stderr safeBuffer
	runner := NewRunner(VariantPOSIX, RunnerOptions{
		Stderr: &stderr,
		Shell:  "/definitely/not/a/shell -c",
	})
	printer := &recordingPrinter{}
	executor := NewExecutor(runner, printer, ExecutorOptions{})

	executor.RunCommand(context.Background(), "echo hi")

	assert.True(t, strings.HasPrefix(stderr.String(), ErrorTag))
	assert.Empty(t, printer.of("warn"))
	assert.Contains(t, printer.texts(), fmt.Sprintf(">>> Exit code: %d", exitCodeLaunchFailure))
}

// gatedRunner blocks its first execution until release is closed.
type gatedRunner struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedRunner) Execute(_ context.Context, _ string) (Result, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return Result{}, nil
}

func TestExecutorKeepsHeadersWithTheirRun(t *testing.T) {
	t.Parallel()

	runner := &gatedRunner{entered: make(chan struct{}), release: make(chan struct{})}
	printer := &recordingPrinter{}
	executor := NewExecutor(runner, printer, ExecutorOptions{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		executor.Run(context.Background(), blocks("sleep 1"), 1)
	}()
	<-runner.entered
	go func() {
		defer wg.Done()
		executor.RunCommand(context.Background(), "uname")
	}()

	time.Sleep(50 * time.Millisecond)
	assert.NotContains(t, printer.texts(), ">>> Executing command:")

	close(runner.release)
	wg.Wait()
	assert.Equal(t, []string{
		">>> Running block #1:",
		"sleep 1",
		">>> Result:",
		">>> Exit code: 0",
		">>> Executing command:",
		"uname",
		">>> Result:",
		">>> Exit code: 0",
	}, printer.texts())
}
