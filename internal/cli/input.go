package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

type lineResult struct {
	text string
	err  error
}

// lineReader reads input on its own goroutine so a blocked read never holds
// up cancellation.
type lineReader struct {
	lines chan lineResult
}

func newLineReader(r io.Reader) *lineReader {
	l := &lineReader{lines: make(chan lineResult)}
	go l.pump(bufio.NewReader(r))
	return l
}

func (l *lineReader) pump(r *bufio.Reader) {
	defer close(l.lines)
	for {
		text, err := r.ReadString('\n')
		text = strings.TrimRight(text, "\r\n")
		if err != nil {
			if text != "" {
				l.lines <- lineResult{text: text}
			}
			if !errors.Is(err, io.EOF) {
				l.lines <- lineResult{err: err}
			}
			return
		}
		l.lines <- lineResult{text: text}
	}
}

// ReadLine returns the next line, io.EOF at end of input, or the context
// error once ctx is done.
func (l *lineReader) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-l.lines:
		if !ok {
			return "", io.EOF
		}
		return res.text, res.err
	}
}
