package bootprobe

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"
)

const unknown = "unknown"

// Result captures what the assistant is told about the user's machine.
type Result struct {
	OS       OSResult
	Shell    ShellResult
	Hostname string
	User     string
}

// OSResult describes the host operating system.
type OSResult struct {
	GOOS         string
	GOARCH       string
	Distribution string
}

// ShellResult describes the interactive shell the user runs.
type ShellResult struct {
	Executable  string
	Name        string
	Description string
}

type shellPattern struct {
	match       string
	name        string
	description string
}

// Matched against the lower-cased executable basename in order, so longer
// names precede their substrings.
var knownShells = []shellPattern{
	{"cmd.exe", "cmd", "Windows Command Line"},
	{"powershell", "powershell", "Windows PowerShell"},
	{"pwsh", "pwsh", "PowerShell Core"},
	{"bash", "bash", "Bash shell"},
	{"zsh", "zsh", "Z shell"},
	{"fish", "fish", "Fish shell"},
	{"tcsh", "tcsh", "TCSH shell"},
	{"csh", "csh", "C shell"},
	{"ksh", "ksh", "Korn shell"},
	{"dash", "dash", "Debian Almquist shell"},
}

// Environment variables consulted for the shell, by priority.
var shellVars = []string{"SHELL", "COMSPEC", "TERMINAL", "PSModulePath"}

// Run executes every probe against ctx.
func Run(ctx *Context) Result {
	return Result{
		OS:       detectOS(ctx),
		Shell:    detectShell(ctx),
		Hostname: detectHostname(ctx),
		User:     detectUser(ctx),
	}
}

func detectOS(ctx *Context) OSResult {
	result := OSResult{GOOS: ctx.GOOS(), GOARCH: ctx.GOARCH()}
	if result.GOOS == "linux" {
		result.Distribution = readOSRelease(ctx)
	}
	return result
}

func detectShell(ctx *Context) ShellResult {
	executable := ""
	for _, key := range shellVars {
		value := ctx.Getenv(key)
		if value == "" {
			continue
		}
		if key == "PSModulePath" {
			executable = "powershell"
			break
		}
		if ctx.FileExists(value) {
			executable = value
			break
		}
	}
	if executable == "" {
		return ShellResult{Executable: unknown, Name: unknown, Description: unknown}
	}
	return classifyShell(executable)
}

func classifyShell(executable string) ShellResult {
	// Windows paths are split by hand so the result does not depend on the
	// host separator.
	base := executable
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.ToLower(filepath.Clean(base))
	for _, shell := range knownShells {
		if strings.Contains(base, shell.match) {
			return ShellResult{Executable: executable, Name: shell.name, Description: shell.description}
		}
	}
	if base == "" || base == "." {
		base = unknown
	}
	return ShellResult{Executable: executable, Name: base, Description: "unknown shell type"}
}

func detectHostname(ctx *Context) string {
	name, err := ctx.Hostname()
	if err != nil || strings.TrimSpace(name) == "" {
		return "unavailable"
	}
	return name
}

func detectUser(ctx *Context) string {
	for _, key := range []string{"USER", "USERNAME"} {
		if value := ctx.Getenv(key); value != "" {
			return value
		}
	}
	return unknown
}

func readOSRelease(ctx *Context) string {
	for _, path := range []string{"/etc/os-release", "/usr/lib/os-release"} {
		data, err := ctx.ReadFile(path)
		if err != nil {
			continue
		}
		if name := parseOSRelease(data); name != "" {
			return name
		}
	}
	return ""
}

func parseOSRelease(data []byte) string {
	var name string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		switch key {
		case "PRETTY_NAME":
			return value
		case "NAME":
			name = value
		}
	}
	return name
}
