// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package console provides the Bubble Tea terminal consumer: it polls the
// session bridge once per tick and shows connection state and recent actions.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/relabs-tech/gesture_computer/internal/gesture"
	"github.com/relabs-tech/gesture_computer/internal/server"
	"github.com/relabs-tech/gesture_computer/internal/session"
)

const (
	defaultTick = 50 * time.Millisecond
	maxRecent   = 10
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	leftStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#40A9FF")).Bold(true)
	rightStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F759AB")).Bold(true)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
)

// StatusSource reports connection manager state.
type StatusSource interface {
	Status() server.Status
}

// Options configures the console model.
type Options struct {
	Bridge  *session.Bridge
	Status  StatusSource // optional
	Session string
	Tick    time.Duration
}

type tickMsg time.Time

// Model implements tea.Model.
type Model struct {
	opts Options

	server server.Status
	bridge session.Status
	recent []session.ActionEvent
	left   int
	right  int
	width  int
}

// NewModel constructs the console model.
func NewModel(opts Options) *Model {
	if opts.Tick <= 0 {
		opts.Tick = defaultTick
	}
	return &Model{opts: opts}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Tick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		return m, nil
	case tickMsg:
		m.refresh()
		return m, m.tick()
	}
	return m, nil
}

// refresh drains the bridge. It is the only consumer while the console runs.
func (m *Model) refresh() {
	for _, ev := range m.opts.Bridge.Poll() {
		switch ev.Action {
		case gesture.Left:
			m.left++
		case gesture.Right:
			m.right++
		}
		m.recent = append(m.recent, ev)
	}
	if n := len(m.recent); n > maxRecent {
		m.recent = append([]session.ActionEvent(nil), m.recent[n-maxRecent:]...)
	}
	m.bridge = m.opts.Bridge.Status()
	if m.opts.Status != nil {
		m.server = m.opts.Status.Status()
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("gesture server"))
	if m.opts.Session != "" {
		b.WriteString(labelStyle.Render("  session " + m.opts.Session))
	}
	b.WriteString("\n\n")

	state := warnStyle.Render("waiting for device")
	if m.bridge.Connected {
		state = okStyle.Render("connected " + m.bridge.Peer)
	}
	rows := []string{
		row("device", state),
		row("server", valueStyle.Render(m.server.State.String())),
	}
	if m.server.Advertise != "" {
		rows = append(rows, row("dial", valueStyle.Render(m.server.Advertise)))
	}
	rows = append(rows,
		row("left", leftStyle.Render(fmt.Sprint(m.left))),
		row("right", rightStyle.Render(fmt.Sprint(m.right))),
	)
	if m.bridge.Dropped > 0 {
		rows = append(rows, row("dropped", warnStyle.Render(fmt.Sprint(m.bridge.Dropped))))
	}
	b.WriteString(cardStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("recent actions"))
	b.WriteString("\n")
	if len(m.recent) == 0 {
		b.WriteString(footerStyle.Render("  none yet"))
		b.WriteString("\n")
	}
	for i := len(m.recent) - 1; i >= 0; i-- {
		ev := m.recent[i]
		style := leftStyle
		if ev.Action == gesture.Right {
			style = rightStyle
		}
		fmt.Fprintf(&b, "  %s %s %s\n",
			footerStyle.Render(ev.At.Format("15:04:05.000")),
			style.Render(fmt.Sprintf("%-5s", ev.Action)),
			labelStyle.Render(fmt.Sprintf("%s #%d", ev.Label, ev.WindowID)),
		)
	}
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("q quit"))
	return b.String()
}

func row(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-8s", label)) + " " + value
}

// Run shows the model until the user quits or ctx is cancelled.
func Run(ctx context.Context, m *Model) error {
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
