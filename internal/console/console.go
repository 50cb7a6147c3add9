// Package console is the terminal sink shared by the turn engine and the
// shell executor. It renders styled text and markdown, a one-line spinner
// status and a live region redrawn in place while a reply streams in.
package console

import (
	"io"
	"os"
	"strings"
	"sync"

	glam "github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/asynkron/aishell/internal/core/runtime"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// Options describes the terminal behind the writer.
type Options struct {
	// Interactive enables cursor control, colours and the status line.
	Interactive bool
	Width       int
	Height      int
	// Style is the glamour style used for interactive output.
	Style string
}

// Detect inspects f and reports whether it is a terminal and how large.
func Detect(f *os.File) Options {
	opts := Options{}
	if f == nil {
		return opts
	}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return opts
	}
	opts.Interactive = true
	if w, h, err := term.GetSize(fd); err == nil {
		opts.Width, opts.Height = w, h
	}
	return opts
}

// Console serializes every write to the underlying terminal.
type Console struct {
	mu sync.Mutex

	out         io.Writer
	termOut     *termenv.Output
	interactive bool
	width       int
	height      int

	glam *glam.TermRenderer

	dim    lipgloss.Style
	plain  lipgloss.Style
	warn   lipgloss.Style
	errors lipgloss.Style
	prompt lipgloss.Style

	statusShown bool
}

// New builds a console writing to out.
func New(out io.Writer, opts Options) *Console {
	if out == nil {
		out = io.Discard
	}
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = defaultHeight
	}

	var (
		termOut  *termenv.Output
		renderer *lipgloss.Renderer
	)
	if opts.Interactive {
		termOut = termenv.NewOutput(out)
		renderer = lipgloss.NewRenderer(out)
		// Fixed background avoids OSC queries leaking into stdin.
		renderer.SetHasDarkBackground(true)
	} else {
		termOut = termenv.NewOutput(out, termenv.WithProfile(termenv.Ascii))
		renderer = lipgloss.NewRenderer(out, termenv.WithProfile(termenv.Ascii))
	}

	c := &Console{
		out:         out,
		termOut:     termOut,
		interactive: opts.Interactive,
		width:       opts.Width,
		height:      opts.Height,
		dim:         renderer.NewStyle().Foreground(lipgloss.Color("244")),
		plain:       renderer.NewStyle(),
		warn:        renderer.NewStyle().Foreground(lipgloss.Color("214")),
		errors:      renderer.NewStyle().Foreground(lipgloss.Color("9")),
		prompt:      renderer.NewStyle().Foreground(lipgloss.Color("70")).Bold(true),
	}
	c.glam = newRenderer(opts, c.width)
	return c
}

// NewAuto builds a console on out, detecting terminal options when out is a
// file.
func NewAuto(out io.Writer) *Console {
	f, _ := out.(*os.File)
	opts := Detect(f)
	opts.Style = "dark"
	return New(out, opts)
}

func newRenderer(opts Options, width int) *glam.TermRenderer {
	style := opts.Style
	if !opts.Interactive {
		style = "notty"
	} else if style == "" {
		style = "dark"
	}
	wrap := width - 2
	if wrap < 20 {
		wrap = 20
	}
	r, err := glam.NewTermRenderer(
		glam.WithStylePath(style),
		glam.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return r
}

// Interactive reports whether the console drives a terminal.
func (c *Console) Interactive() bool {
	return c.interactive
}

func (c *Console) renderMarkdown(text string) string {
	if c.glam == nil {
		return text
	}
	rendered, err := c.glam.Render(text)
	if err != nil {
		return text
	}
	return rendered
}

// writeLocked writes s and guarantees a trailing newline. Callers hold mu.
func (c *Console) writeLocked(s string) {
	c.clearStatusLocked()
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, _ = io.WriteString(c.out, s)
}

func (c *Console) styled(style lipgloss.Style, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeLocked(style.Render(strings.TrimRight(text, "\n")))
}

// Dim prints secondary text such as headers and hints.
func (c *Console) Dim(text string) { c.styled(c.dim, text) }

// Print prints text unstyled.
func (c *Console) Print(text string) { c.styled(c.plain, text) }

// Warn prints a warning.
func (c *Console) Warn(text string) { c.styled(c.warn, text) }

// Error prints an error message.
func (c *Console) Error(text string) { c.styled(c.errors, text) }

// Blank prints an empty line.
func (c *Console) Blank() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeLocked("")
}

// Markdown renders text as formatted markdown.
func (c *Console) Markdown(text string) {
	rendered := c.renderMarkdown(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeLocked(rendered)
}

// Prompt returns the styled input prompt.
func (c *Console) Prompt() string {
	return c.prompt.Render(">>>") + " "
}

// Writer returns a writer for raw process output.
func (c *Console) Writer() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.clearStatusLocked()
		return c.out.Write(p)
	})
}

// ErrorWriter returns a writer that styles every line it receives as an error.
func (c *Console) ErrorWriter() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.clearStatusLocked()
		for _, line := range strings.SplitAfter(string(p), "\n") {
			if line == "" {
				continue
			}
			body := strings.TrimRight(line, "\n")
			rendered := c.errors.Render(body)
			if strings.HasSuffix(line, "\n") {
				rendered += "\n"
			}
			if _, err := io.WriteString(c.out, rendered); err != nil {
				return 0, err
			}
		}
		return len(p), nil
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

var _ runtime.Display = (*Console)(nil)
