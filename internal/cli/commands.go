package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/asynkron/aishell/internal/core/runtime"
)

type slashCommand struct {
	name    string
	summary string
	run     func(s *Session, ctx context.Context) bool
}

// commandTable is a function rather than a package variable because /help
// lists the table it belongs to.
func commandTable() []slashCommand {
	return []slashCommand{
		{name: "/help", summary: "show this help", run: (*Session).help},
		{name: "/blocks", summary: "list the code blocks of the last reply", run: (*Session).listBlocks},
		{name: "/stats", summary: "show API call and execution statistics", run: (*Session).stats},
		{name: "/exit", summary: "end the session", run: func(*Session, context.Context) bool { return true }},
	}
}

// isSlashCommand accepts "/name args" but not paths such as "/etc/hosts".
func isSlashCommand(line string) bool {
	if !strings.HasPrefix(line, "/") {
		return false
	}
	name := strings.Fields(line)[0]
	return !strings.Contains(name[1:], "/")
}

func (s *Session) command(ctx context.Context, line string) bool {
	name := strings.ToLower(strings.Fields(line)[0])
	for _, cmd := range commandTable() {
		if cmd.name == name {
			return cmd.run(s, ctx)
		}
	}
	if suggestion, ok := suggestCommand(name); ok {
		s.out.Warn(fmt.Sprintf("Unknown command %s. Did you mean %s?", name, suggestion))
	} else {
		s.out.Warn(fmt.Sprintf("Unknown command %s. Type /help for the list.", name))
	}
	return false
}

// suggestCommand returns the closest known command within edit distance 2.
func suggestCommand(name string) (string, bool) {
	best, bestDist := "", 3
	for _, cmd := range commandTable() {
		if d := levenshtein.ComputeDistance(name, cmd.name); d < bestDist {
			best, bestDist = cmd.name, d
		}
	}
	return best, best != ""
}

func (s *Session) help(context.Context) bool {
	s.out.Dim("Type a question to ask the assistant.")
	s.out.Dim("  <number>   run the code block with that number")
	s.out.Dim("  .<command> run a shell command directly")
	s.out.Dim("  exit, quit, q  end the session")
	for _, cmd := range commandTable() {
		s.out.Dim(fmt.Sprintf("  %-10s %s", cmd.name, cmd.summary))
	}
	return false
}

func (s *Session) listBlocks(context.Context) bool {
	blocks := s.engine.Blocks()
	if len(blocks) == 0 {
		s.out.Dim("No code blocks yet.")
		return false
	}
	for _, block := range blocks {
		lang := block.Language
		if lang == "" {
			lang = "text"
		}
		s.out.Dim(fmt.Sprintf("[Code #%d] %s", block.Index, lang))
		s.out.Print(block.Body)
	}
	return false
}

func (s *Session) stats(context.Context) bool {
	snapshot := s.metrics.GetSnapshot()
	s.out.Dim(formatCalls("API calls", snapshot.APICalls))
	s.out.Dim(formatCalls("Executions", snapshot.CommandExecutions))
	return false
}

func formatCalls(label string, calls runtime.CallMetrics) string {
	return fmt.Sprintf("%s: %d (ok %d, failed %d), avg %s",
		label, calls.Total, calls.Success, calls.Failed, calls.Average().Round(time.Millisecond))
}
