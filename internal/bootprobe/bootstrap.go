package bootprobe

import (
	"fmt"
	"strings"
)

// SummaryLines returns one line per probed fact.
func (r Result) SummaryLines() []string {
	return []string{
		FormatOSLine(r.OS),
		formatShellLine(r.Shell),
		"Hostname: " + r.Hostname,
		"User: " + r.User,
	}
}

// FormatSummary renders a Result as the environment block of the system
// prompt.
func FormatSummary(result Result) string {
	return strings.Join(result.SummaryLines(), "\n")
}

// FormatOSLine renders a single line describing the host OS.
func FormatOSLine(osResult OSResult) string {
	if osResult.Distribution != "" {
		return fmt.Sprintf("OS: %s/%s (%s)", osResult.GOOS, osResult.GOARCH, osResult.Distribution)
	}
	return fmt.Sprintf("OS: %s/%s", osResult.GOOS, osResult.GOARCH)
}

func formatShellLine(shell ShellResult) string {
	if shell.Name == unknown {
		return "Shell: unknown"
	}
	return fmt.Sprintf("Shell: %s (%s) %s", shell.Name, shell.Description, shell.Executable)
}

// BuildAugmentation runs the probes and returns the structured result together
// with its formatted summary.
func BuildAugmentation(ctx *Context) (Result, string) {
	result := Run(ctx)
	return result, FormatSummary(result)
}
