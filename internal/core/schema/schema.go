// Package schema defines the structured reply contract used when the
// assistant runs in JSON mode and validates replies against it.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Reply mirrors the JSON object the assistant is asked to emit in JSON mode.
type Reply struct {
	Cmd  string `json:"cmd"`
	Info string `json:"info"`
}

// Instruction is appended to the system prompt when JSON mode is enabled.
const Instruction = "You must always respond with a single JSON object containing fields 'cmd' and 'info'."

const replySchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": true,
  "required": ["cmd", "info"],
  "properties": {
    "cmd": {
      "type": "string",
      "description": "Shell command the user can run, or an empty string when no command applies."
    },
    "info": {
      "type": "string",
      "description": "Explanation shown to the user."
    }
  }
}`

var (
	replySchemaLoader     gojsonschema.JSONLoader
	replySchemaLoaderErr  error
	replySchemaLoaderOnce sync.Once
)

// ErrNotJSON reports that the reply could not be parsed as a JSON object.
var ErrNotJSON = errors.New("schema: reply is not a JSON object")

// ValidationError lists every schema violation found in a reply.
type ValidationError struct {
	Issues []string
}

func (e ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "reply failed schema validation"
	}
	return strings.Join(e.Issues, "; ")
}

// ReplySchema returns a fresh copy of the reply schema as a generic map.
func ReplySchema() (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(replySchemaJSON), &out); err != nil {
		return nil, fmt.Errorf("schema: decode reply schema: %w", err)
	}
	return out, nil
}

func loadReplySchema() (gojsonschema.JSONLoader, error) {
	replySchemaLoaderOnce.Do(func() {
		schemaMap, err := ReplySchema()
		if err != nil {
			replySchemaLoaderErr = err
			return
		}
		replySchemaLoader = gojsonschema.NewGoLoader(schemaMap)
	})
	if replySchemaLoaderErr != nil {
		return nil, replySchemaLoaderErr
	}
	return replySchemaLoader, nil
}

// ParseReply strips an optional markdown fence around raw, validates the
// payload against the reply schema and decodes it.
func ParseReply(raw string) (Reply, error) {
	payload := stripFence(raw)
	if !strings.HasPrefix(payload, "{") {
		return Reply{}, ErrNotJSON
	}

	loader, err := loadReplySchema()
	if err != nil {
		return Reply{}, err
	}

	result, err := gojsonschema.Validate(loader, gojsonschema.NewStringLoader(payload))
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return Reply{}, ValidationError{Issues: issues}
	}

	var reply Reply
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	return reply, nil
}

func stripFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	// Drop the opening fence line (with its optional language tag).
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		return ""
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
