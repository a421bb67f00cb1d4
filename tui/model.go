// Package tui provides the Bubble Tea tap pad.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mobile-next/doubletap/sessions"
	"github.com/mobile-next/doubletap/types"
)

const (
	historySize = 8
	// outcomes are queued so double tap callbacks, which run inside Update,
	// never block on the program loop
	outcomeBuffer = 64
)

// outcomeMsg carries a classification from the session to Update.
type outcomeMsg types.Outcome

type keyMap struct {
	Tap  key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Tap:  key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space/enter", "tap")),
	Quit: key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Model implements the Bubble Tea tap pad.
type Model struct {
	session     *sessions.Session
	outcomes    chan types.Outcome
	unsubscribe func()

	width  int
	height int

	taps    int
	singles int
	doubles int
	dropped int
	history []types.Outcome
	closed  bool
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	padStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#6E6E6E")).Padding(1, 4)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	singleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	doubleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a tap pad over a fresh session.
func NewModel(opts sessions.Options) *Model {
	m := &Model{
		session:  sessions.NewSession(opts),
		outcomes: make(chan types.Outcome, outcomeBuffer),
	}
	m.unsubscribe = m.session.Subscribe(func(o types.Outcome) {
		select {
		case m.outcomes <- o:
		default:
		}
	})
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitForOutcome()
}

func (m *Model) waitForOutcome() tea.Cmd {
	return func() tea.Msg {
		o, ok := <-m.outcomes
		if !ok {
			return nil
		}
		return outcomeMsg(o)
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case outcomeMsg:
		m.record(types.Outcome(msg))
		return m, m.waitForOutcome()
	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			m.tap(msg.X, msg.Y)
		}
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.Close()
			return m, tea.Quit
		case key.Matches(msg, keys.Tap):
			m.tap(0, 0)
			return m, nil
		default:
			return m, nil
		}
	default:
		return m, nil
	}
}

func (m *Model) tap(x, y int) {
	if m.closed {
		return
	}
	m.taps++
	m.session.Tap(x, y)
}

func (m *Model) record(o types.Outcome) {
	switch o.Kind {
	case types.KindSingleTap:
		m.singles++
	case types.KindDoubleTap:
		m.doubles++
	}
	m.history = append(m.history, o)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
}

// Close disposes the session. No outcome is reported afterwards.
func (m *Model) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.unsubscribe()
	m.session.Close()
}

// View implements tea.Model.
func (m *Model) View() string {
	info := m.session.Info()

	var b strings.Builder
	b.WriteString(titleStyle.Render("doubletap"))
	b.WriteString("\n\n")

	state := "idle"
	if info.Inert {
		state = "inert"
	} else if info.Pending {
		state = "waiting for a second tap"
	}
	b.WriteString(fmt.Sprintf("threshold %dms  %s\n", info.ThresholdMs, pendingStyle.Render(state)))
	b.WriteString(fmt.Sprintf("taps %d  single %d  double %d\n", m.taps, m.singles, m.doubles))

	if len(m.history) > 0 {
		b.WriteString("\n")
	}
	for i := len(m.history) - 1; i >= 0; i-- {
		b.WriteString(renderOutcome(m.history[i]))
		b.WriteString("\n")
	}

	pad := padStyle.Render(strings.TrimRight(b.String(), "\n"))
	footer := footerStyle.Render(fmt.Sprintf("%s/click: %s  %s: %s",
		keys.Tap.Help().Key, keys.Tap.Help().Desc, keys.Quit.Help().Key, keys.Quit.Help().Desc))

	if m.width == 0 || m.height < 3 {
		return pad + "\n" + footer
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, pad)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func renderOutcome(o types.Outcome) string {
	ts := o.At.Format("15:04:05.000")
	switch o.Kind {
	case types.KindDoubleTap:
		line := fmt.Sprintf("%s  double tap at %d,%d", ts, o.Tap.X, o.Tap.Y)
		if o.Tap.DefaultPrevented {
			line += " (default prevented)"
		}
		return doubleStyle.Render(line)
	default:
		return singleStyle.Render(fmt.Sprintf("%s  single tap at %d,%d", ts, o.Tap.X, o.Tap.Y))
	}
}

// Run starts the tap pad and blocks until the user quits.
func Run(opts sessions.Options) error {
	m := NewModel(opts)
	defer m.Close()

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tap pad failed: %w", err)
	}
	return nil
}
