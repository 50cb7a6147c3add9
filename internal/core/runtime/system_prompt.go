package runtime

import (
	"strings"

	"github.com/asynkron/aishell/internal/core/schema"
)

const assistantPersona = "Your name is Ai-eBash, a sysadmin assistant. " +
	"You and the user always work in a terminal. " +
	"Respond based on the user's environment and commands."

// CodeNumberingHint asks the model to label its code blocks so the user can
// run them by number. It is offered once as a hint block.
const CodeNumberingHint = "ALWAYS number code blocks in your replies so the user can reference them. " +
	"Numbering format: [Code #1]\n```bash ... ```, [Code #2]\n```bash ... ```, " +
	"etc. Insert the numbering BEFORE the block. " +
	"If there are multiple code blocks, number them sequentially. " +
	"In each new reply, start numbering from 1 again. Do not discuss numbering; just do it automatically."

// PromptOptions feeds BuildSystemPrompt.
type PromptOptions struct {
	// UserContent is the operator's own instruction text.
	UserContent string
	JSONMode    bool
	// Environment is a short description of the host, appended last.
	Environment string
}

// BuildSystemPrompt assembles the fixed system message of a session.
func BuildSystemPrompt(options PromptOptions) string {
	parts := make([]string, 0, 4)
	if content := strings.TrimSpace(options.UserContent); content != "" {
		parts = append(parts, content)
	}
	if options.JSONMode {
		parts = append(parts, schema.Instruction)
	}
	parts = append(parts, assistantPersona)

	prompt := strings.Join(parts, " ")
	if env := strings.TrimSpace(options.Environment); env != "" {
		prompt += "\n\nUser environment:\n" + env
	}
	return prompt
}
