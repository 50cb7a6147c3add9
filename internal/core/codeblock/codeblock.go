// Package codeblock extracts fenced code blocks from assistant replies so
// they can be addressed by a 1-based index and executed later.
package codeblock

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/asynkron/aishell/internal/core/schema"
)

// CodeBlock is a fenced snippet taken from a reply.
type CodeBlock struct {
	// Index is the 1-based position in extraction order.
	Index    int
	Language string
	Body     string
}

// Extractor turns reply text into an ordered list of code blocks.
type Extractor interface {
	Extract(reply string) []CodeBlock
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func(reply string) []CodeBlock

// Extract calls f(reply).
func (f ExtractorFunc) Extract(reply string) []CodeBlock { return f(reply) }

// Markdown is the default extractor backed by a CommonMark parser.
var Markdown Extractor = ExtractorFunc(Extract)

var parser = goldmark.New().Parser()

// Extract returns every fenced code block in reply, in document order.
// Blocks with an empty body are skipped and do not consume an index.
func Extract(reply string) []CodeBlock {
	if strings.TrimSpace(reply) == "" {
		return nil
	}

	source := []byte(reply)
	doc := parser.Parse(text.NewReader(source))

	var blocks []CodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var body strings.Builder
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			segment := lines.At(i)
			body.Write(segment.Value(source))
		}
		code := strings.TrimRight(body.String(), "\r\n")
		if strings.TrimSpace(code) == "" {
			return ast.WalkSkipChildren, nil
		}

		blocks = append(blocks, CodeBlock{
			Index:    len(blocks) + 1,
			Language: string(fenced.Language(source)),
			Body:     code,
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// JSONExtractor reads structured JSON-mode replies. A reply that satisfies
// the reply schema and carries a non-empty cmd yields that command as block
// #1; anything else falls back to Markdown extraction.
type JSONExtractor struct {
	// OnInvalid, when set, is told why a reply was not accepted as JSON.
	OnInvalid func(err error)
}

// Extract implements Extractor.
func (j JSONExtractor) Extract(reply string) []CodeBlock {
	parsed, err := schema.ParseReply(reply)
	if err != nil {
		if j.OnInvalid != nil {
			j.OnInvalid(err)
		}
		return Extract(reply)
	}
	cmd := strings.TrimSpace(parsed.Cmd)
	if cmd == "" {
		return nil
	}
	return []CodeBlock{{Index: 1, Language: "bash", Body: cmd}}
}
