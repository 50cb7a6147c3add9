package runtime

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/asynkron/aishell/internal/logging"
)

// streamParser walks a Chat Completions SSE stream and yields the content
// deltas of the first choice.
type streamParser struct {
	reader *bufio.Reader
	logger logging.Logger
	done   bool
}

func newStreamParser(reader *bufio.Reader, logger logging.Logger) *streamParser {
	return &streamParser{reader: reader, logger: logging.OrNoOp(logger)}
}

// next returns the next non-empty content delta, or io.EOF once the stream
// signalled [DONE] or the body ended.
func (p *streamParser) next() (string, error) {
	for {
		if p.done {
			return "", io.EOF
		}

		line, rerr := p.reader.ReadString('\n')
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				return "", &APIError{Kind: KindConnection, Message: "stream read", Err: rerr}
			}
			p.done = true
		}

		content, err := p.parseLine(line)
		if err != nil {
			return "", err
		}
		if content != "" {
			return content, nil
		}
	}
}

func (p *streamParser) parseLine(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ":") {
		return "", nil // keepalive/comment
	}
	if !strings.HasPrefix(line, "data:") {
		return "", nil
	}
	chunkData := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if chunkData == "[DONE]" {
		p.done = true
		return "", nil
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(chunkData), &chunk); err != nil {
		p.logger.Debug(context.Background(), "Skipping undecodable stream chunk",
			logging.Field("error", err.Error()),
			logging.Field("chunk", preview(chunkData, 200)),
		)
		return "", nil
	}
	if chunk.Error != nil {
		return "", &APIError{Kind: KindAPI, Message: chunk.Error.Message}
	}
	if len(chunk.Choices) == 0 {
		return "", nil
	}
	return chunk.Choices[0].Delta.Content, nil
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiErrorBody `json:"error,omitempty"`
}

func preview(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
