package config

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaskKey hides all but the last four characters of an API key.
func MaskKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 4:
		return strings.Repeat("*", len(key))
	default:
		return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
	}
}

// Render writes the configuration as YAML with every API key masked.
func Render(w io.Writer, c Config) error {
	masked := c
	masked.SupportedLLMs = make(map[string]LLMConfig, len(c.SupportedLLMs))
	for name, llm := range c.SupportedLLMs {
		llm.APIKey = MaskKey(llm.APIKey)
		masked.SupportedLLMs[name] = llm
	}

	source := c.Path
	if source == "" {
		source = "(defaults)"
	}
	if _, err := fmt.Fprintf(w, "# source: %s\n", source); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(masked); err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	return enc.Close()
}
