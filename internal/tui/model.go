// Package tui runs the dialog in a full-screen bubbletea program. The turn
// engine and the executor write to a Bridge; the program turns bridge
// messages into transcript items.
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	glam "github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Options connects the program to a session.
type Options struct {
	// Handle processes one submitted line and reports whether to quit.
	Handle func(ctx context.Context, line string) bool
	// Hint returns the input placeholder for the current state.
	Hint func() string
	// Initial is submitted as soon as the program starts.
	Initial string
}

type transcriptKind int

const (
	itemPlain transcriptKind = iota
	itemDim
	itemWarn
	itemError
	itemOutput
	itemUser
	itemAssistantMD
)

type transcriptItem struct {
	kind transcriptKind
	text string // raw content; assistant content is markdown
}

type model struct {
	ctx    context.Context
	bridge *Bridge
	opts   Options

	// UI
	vp     viewport.Model
	ta     textarea.Model
	width  int
	height int
	ready  bool

	// Streaming markdown rendering
	glam            *glam.TermRenderer
	currentMD       string // latest full text of the streaming reply
	currentRendered string // last rendered ANSI of currentMD
	lastRender      time.Time
	pendingRender   bool

	// Activity
	spin       spinner.Model
	busy       bool
	status     string
	flashFrame int
	opCancel   context.CancelFunc

	// Styling
	border    lipgloss.Style
	userStyle lipgloss.Style
	styles    map[transcriptKind]lipgloss.Style

	// Transcript items (dynamic rendering on resize)
	items []transcriptItem
}

func newModel(ctx context.Context, bridge *Bridge, opts Options) *model {
	ta := textarea.New()
	ta.Placeholder = placeholder(opts)
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	m := &model{
		ctx:    ctx,
		bridge: bridge,
		opts:   opts,
		vp:     viewport.Model{},
		ta:     ta,
		border: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")),
		styles: map[transcriptKind]lipgloss.Style{
			itemPlain:  lipgloss.NewStyle(),
			itemDim:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
			itemWarn:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			itemError:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
			itemOutput: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		},
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	m.spin = sp
	_ = m.rebuildRenderer(80)
	// Bright purple rounded border, transparent background, 1-char horizontal padding.
	m.userStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("129")).
		Foreground(lipgloss.Color("252")).
		PaddingLeft(1).
		PaddingRight(1)
	return m
}

func placeholder(opts Options) string {
	if opts.Hint == nil {
		return "Your question... Esc - exit"
	}
	return opts.Hint()
}

// renderTranscript renders all transcript items according to current width.
func (m *model) renderTranscript() string {
	var out strings.Builder
	// left/right padding = 2, left/right border = 2 -> subtract 4.
	userWidth := m.vp.Width - 4
	if userWidth < 1 {
		userWidth = 1
	}
	for _, it := range m.items {
		switch it.kind {
		case itemUser:
			block := m.userStyle.Width(userWidth).Render(it.text)
			out.WriteString(block)
			if !strings.HasSuffix(block, "\n") {
				out.WriteString("\n")
			}
		case itemAssistantMD:
			out.WriteString(m.renderMarkdown(it.text))
			if !strings.HasSuffix(out.String(), "\n") {
				out.WriteString("\n")
			}
		default:
			out.WriteString(m.styles[it.kind].Render(it.text))
			out.WriteString("\n")
		}
	}
	return out.String()
}

func (m *model) renderMarkdown(text string) string {
	if m.glam == nil {
		return text
	}
	rendered, err := m.glam.Render(text)
	if err != nil {
		return text
	}
	return rendered
}

// refresh recomposes the viewport content from transcript + any streaming.
func (m *model) refresh() {
	content := m.renderTranscript()
	if m.currentRendered != "" {
		content += m.currentRendered
	}
	m.vp.SetContent(content)
	m.vp.GotoBottom()
}

// recalcLayout recomputes viewport sizes based on current terminal size.
func (m *model) recalcLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	inner := m.width - 2
	if inner < 1 {
		inner = 1
	}
	m.ta.SetWidth(inner)
	// Input box (3 rows + 2 border) and the status row below the viewport border.
	vpH := m.height - 9
	if vpH < 3 {
		vpH = 3
	}
	m.vp.Width = m.width
	m.vp.Height = vpH
	_ = m.rebuildRenderer(m.vp.Width - 2)
}

func (m *model) appendItem(kind transcriptKind, text string) {
	m.items = append(m.items, transcriptItem{kind: kind, text: text})
	m.refresh()
}

// rebuildRenderer recreates the Glamour renderer with the given wrap width.
func (m *model) rebuildRenderer(wrap int) error {
	if wrap < 10 {
		wrap = 10
	}
	r, err := glam.NewTermRenderer(
		glam.WithStylePath("dark"), // fixed style to avoid OSC queries
		glam.WithWordWrap(wrap),
	)
	if err != nil {
		return err
	}
	m.glam = r
	return nil
}

// renderCurrent re-renders the current streaming markdown and updates the view.
func (m *model) renderCurrent() {
	m.currentRendered = m.renderMarkdown(m.currentMD)
	m.refresh()
	m.lastRender = time.Now()
	m.pendingRender = false
}

type renderTick struct{}

// scheduleRender throttles re-rendering to avoid excessive work while streaming.
func (m *model) scheduleRender() tea.Cmd {
	const throttle = 80 * time.Millisecond
	now := time.Now()
	if now.Sub(m.lastRender) >= throttle && !m.pendingRender {
		m.renderCurrent()
		return nil
	}
	if m.pendingRender {
		return nil
	}
	m.pendingRender = true
	wait := throttle - now.Sub(m.lastRender)
	if wait < 10*time.Millisecond {
		wait = throttle
	}
	return tea.Tick(wait, func(time.Time) tea.Msg { return renderTick{} })
}

// submit shows the line in the transcript and hands it to the session on a
// command goroutine. Completion arrives as handledMsg through the bridge so
// it is ordered after the output the line produced.
func (m *model) submit(line string) tea.Cmd {
	m.items = append(m.items, transcriptItem{kind: itemUser, text: line})
	m.refresh()
	m.busy = true

	opCtx, cancel := context.WithCancel(m.ctx)
	m.opCancel = cancel
	handle, bridge := m.opts.Handle, m.bridge
	return func() tea.Msg {
		defer cancel()
		exit := handle(opCtx, line)
		bridge.send(handledMsg{exit: exit})
		return nil
	}
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.bridge.next(), textarea.Blink, m.spin.Tick}
	if initial := strings.TrimSpace(m.opts.Initial); initial != "" {
		cmds = append(cmds, m.submit(initial))
	}
	return tea.Batch(cmds...)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if !m.busy {
		m.ta, cmd = m.ta.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.spin, cmd = m.spin.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	m.vp, cmd = m.vp.Update(msg)
	cmds = append(cmds, cmd)

	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.busy {
			m.flashFrame++
		}
		return m, tea.Batch(cmds...)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			// Ctrl+C interrupts the running operation; when idle it quits.
			if m.busy && m.opCancel != nil {
				m.opCancel()
				return m, tea.Batch(cmds...)
			}
			return m, tea.Quit
		case tea.KeyEsc:
			if m.opCancel != nil {
				m.opCancel()
			}
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.ta.Value())
			m.ta.Reset()
			if m.busy || line == "" {
				return m, tea.Batch(cmds...)
			}
			return m, tea.Batch(append(cmds, m.submit(line))...)
		}
		return m, tea.Batch(cmds...)

	case statusMsg:
		m.status = msg.text
	case lineMsg:
		m.appendItem(transcriptKind(msg.kind), msg.text)
	case markdownMsg:
		m.appendItem(itemAssistantMD, msg.text)
	case liveMsg:
		if !msg.done {
			m.currentMD = msg.text
			if cmd := m.scheduleRender(); cmd != nil {
				cmds = append(cmds, cmd)
			}
			break
		}
		m.currentMD, m.currentRendered = "", ""
		if !msg.discard && strings.TrimSpace(msg.text) != "" {
			m.items = append(m.items, transcriptItem{kind: itemAssistantMD, text: msg.text})
		}
		m.refresh()
	case handledMsg:
		m.busy = false
		m.status = ""
		m.opCancel = nil
		m.ta.Placeholder = placeholder(m.opts)
		if msg.exit {
			return m, tea.Quit
		}
	case closedMsg:
		return m, tea.Quit
	case renderTick:
		if m.currentMD != "" {
			m.renderCurrent()
		} else {
			m.pendingRender = false
		}
		return m, tea.Batch(cmds...)
	default:
		return m, tea.Batch(cmds...)
	}

	// Every bridge message re-arms the reader.
	return m, tea.Batch(append(cmds, m.bridge.next())...)
}

func (m *model) View() string {
	if !m.ready {
		return "Initializing…"
	}
	top := m.border.Render(m.vp.View())
	inputBlock := m.ta.View()
	if m.busy {
		innerWidth := m.width - 2
		if innerWidth < 1 {
			innerWidth = 1
		}
		inputBlock = m.renderGradientBar(innerWidth) + "\n" + inputBlock
	}
	bottom := m.border.Render(inputBlock)
	status := m.styles[itemDim].Render(m.status)
	if m.busy && m.status == "" {
		status = m.spin.View()
	}
	return top + "\n" + bottom + "\n" + status
}

// renderGradientBar renders a full-width, color-cycling bar while busy.
func (m *model) renderGradientBar(width int) string {
	if width < 1 {
		width = 1
	}
	var b strings.Builder
	b.Grow(width * 10)
	// Animate hue offset with frame; wave lightness to get a subtle fade.
	baseHue := float64((m.flashFrame * 5) % 360)
	for i := 0; i < width; i++ {
		hue := math.Mod(baseHue+float64(i*3), 360.0)
		sat := 0.85
		phase := (float64(i)/float64(width))*2*math.Pi + float64(m.flashFrame)/8.0
		light := 0.50 + 0.15*math.Sin(phase)
		seg := lipgloss.NewStyle().Foreground(lipgloss.Color(hslToHex(hue, sat, light))).Render("█")
		b.WriteString(seg)
	}
	return b.String()
}

// hslToHex converts H,S,L (H in [0,360), S/L in [0,1]) to a #RRGGBB string.
func hslToHex(h, s, l float64) string {
	r, g, b := hslToRGB(h, s, l)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	c := (1 - math.Abs(2*l-1)) * s
	hp := h / 60.0
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r1, g1, b1 float64
	switch {
	case 0 <= hp && hp < 1:
		r1, g1, b1 = c, x, 0
	case 1 <= hp && hp < 2:
		r1, g1, b1 = x, c, 0
	case 2 <= hp && hp < 3:
		r1, g1, b1 = 0, c, x
	case 3 <= hp && hp < 4:
		r1, g1, b1 = 0, x, c
	case 4 <= hp && hp < 5:
		r1, g1, b1 = x, 0, c
	default:
		r1, g1, b1 = c, 0, x
	}
	m := l - c/2
	r := uint8(clamp01(r1+m) * 255)
	g := uint8(clamp01(g1+m) * 255)
	b := uint8(clamp01(b1+m) * 255)
	return r, g, b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Run launches the full-screen dialog and blocks until the user leaves.
func Run(ctx context.Context, bridge *Bridge, opts Options) error {
	if opts.Handle == nil {
		return errors.New("tui: no input handler")
	}

	// Prevent OSC background color queries from contaminating stdin by
	// explicitly setting color profile and background for lipgloss/termenv.
	lipgloss.SetColorProfile(termenv.TrueColor)
	lipgloss.SetHasDarkBackground(true)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer bridge.Close()

	p := tea.NewProgram(newModel(runCtx, bridge, opts), tea.WithAltScreen())
	go func() {
		<-runCtx.Done()
		p.Quit()
	}()
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
