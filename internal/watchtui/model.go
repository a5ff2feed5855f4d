package watchtui

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ResultMsg is sent into the bubbletea program each time the supervisor
// forwards an EvaluateResult for the watched query.
type ResultMsg struct {
	Value      interface{}
	Statistics map[string]interface{}
	At         time.Time
}

// RecompileMsg reports the outcome of hot-recompiling the query file
// after an fsnotify change.
type RecompileMsg struct {
	Err error
	At  time.Time
}

// QuitRequestedMsg is a message type for a quit request. Nothing sends it:
// Model.Update answers q, ctrl+c and esc with tea.Quit directly.
type QuitRequestedMsg struct{}

// Model is the root bubbletea model for `reflexd watch`.
type Model struct {
	width, height int
	label         string
	styles        Styles
	spin          spinner.Model
	vp            viewport.Model

	evaluating   bool
	lastResult   *ResultMsg
	lastErr      error
	recompiledAt time.Time
	evalCount    int
}

// NewModel constructs the watch TUI model for the query named label.
func NewModel(label string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = DefaultStyles().Muted

	vp := viewport.New(0, 0)
	vp.SetContent("waiting for the first evaluation…")

	return Model{
		label:      label,
		styles:     DefaultStyles(),
		spin:       s,
		vp:         vp,
		evaluating: true,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case ResultMsg:
		m.evaluating = false
		m.lastErr = nil
		m.evalCount++
		msgCopy := msg
		m.lastResult = &msgCopy
		m.vp.SetContent(m.renderValue())
		return m, nil

	case RecompileMsg:
		m.recompiledAt = msg.At
		if msg.Err != nil {
			m.lastErr = msg.Err
		}
		m.evaluating = true
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	header := m.styles.Header.Render(fmt.Sprintf("reflexd watch — %s", m.label))

	status := m.styles.Success.Render(fmt.Sprintf("evaluations: %d", m.evalCount))
	if m.evaluating {
		status = fmt.Sprintf("%s %s", m.spin.View(), m.styles.Muted.Render("evaluating…"))
	}
	if m.lastErr != nil {
		status = m.styles.Error.Render("recompile failed: " + m.lastErr.Error())
	}

	footer := m.styles.Footer.Render("q: quit")
	if !m.recompiledAt.IsZero() {
		footer = m.styles.Footer.Render(fmt.Sprintf("last recompiled %s ago • q: quit", time.Since(m.recompiledAt).Round(time.Second)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, m.vp.View(), status, footer)
}

func (m *Model) setSize(w, h int) {
	m.width, m.height = w, h
	m.vp.Width = w - 4
	m.vp.Height = h - 6
}

func (m Model) renderValue() string {
	if m.lastResult == nil {
		return "waiting for the first evaluation…"
	}
	body, err := json.MarshalIndent(m.lastResult.Value, "", "  ")
	if err != nil {
		return m.styles.Error.Render(err.Error())
	}
	stats, _ := json.MarshalIndent(m.lastResult.Statistics, "", "  ")
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.styles.Label.Render("value:"),
		m.styles.Value.Render(string(body)),
		m.styles.Label.Render("statistics:"),
		string(stats),
	)
}
