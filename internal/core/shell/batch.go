package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/asynkron/aishell/internal/logging"
)

var (
	echoOffPattern = regexp.MustCompile(`(?im)^[ \t]*@?echo[ \t]+off[ \t]*\r?$`)
	pausePattern   = regexp.MustCompile(`(?i)\bpause\b`)
)

// PrepareBatchScript strips "echo off" lines and neutralizes every "pause" so
// the script neither hides its commands nor waits for a key press.
func PrepareBatchScript(script string) string {
	script = echoOffPattern.ReplaceAllString(script, "")
	return pausePattern.ReplaceAllString(script, "rem pause")
}

type windowsRunner struct {
	options RunnerOptions
	stdout  *lineWriter
	stderr  *lineWriter
}

// Execute writes command into a temporary batch file, runs it hidden and
// deletes the file whatever the outcome.
func (r *windowsRunner) Execute(ctx context.Context, command string) (Result, error) {
	path, err := r.writeBatchFile(PrepareBatchScript(command))
	if err != nil {
		return Result{}, fmt.Errorf("shell: write batch file: %w", err)
	}
	defer r.removeBatchFile(ctx, path)

	interpreter := r.options.Interpreter
	args := append(append([]string{}, interpreter[1:]...), path)
	cmd := exec.CommandContext(ctx, interpreter[0], args...)
	hideWindow(cmd)

	r.options.Logger.Debug(ctx, "Executing batch file",
		logging.Field("path", path),
		logging.Field("command", preview(command, 80)),
	)

	result, err := runProcess(ctx, cmd, streamSpec{
		encodings:     WindowsEncodings,
		stdout:        r.stdout,
		stderr:        r.stderr,
		captureStderr: true,
		logger:        r.options.Logger,
	})
	logResult(ctx, r.options.Logger, result)
	return result, err
}

// writeBatchFile stores script as CRLF terminated cp1251 text. Characters the
// code page cannot represent are replaced rather than rejected.
func (r *windowsRunner) writeBatchFile(script string) (string, error) {
	dir := r.options.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "aishell-"+uuid.NewString()+".bat")

	normalized := strings.ReplaceAll(script, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\n", "\r\n")

	encoder := encoding.ReplaceUnsupported(charmap.Windows1251.NewEncoder())
	encoded, err := encoder.String(normalized)
	if err != nil {
		return "", fmt.Errorf("encode cp1251: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := file.WriteString(encoded); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (r *windowsRunner) removeBatchFile(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.options.Logger.Warn(ctx, "Failed to remove batch file",
			logging.Field("path", path),
			logging.Field("error", err.Error()),
		)
	}
}
