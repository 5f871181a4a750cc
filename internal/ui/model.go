// Package ui is the terminal dashboard for a LiveHelper host.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/teslashibe/go-livehelper/pkg/helper"
	"github.com/teslashibe/go-livehelper/pkg/web"
)

const (
	maxLines       = 8
	commandTimeout = 15 * time.Second
	width          = 56
)

// Host is what the dashboard drives.
type Host interface {
	Start(ctx context.Context, persona, focus string) error
	Switch(ctx context.Context, persona, focus string) error
	Stop() error
	SetMuted(muted bool)
}

// StatusMsg replaces the displayed status.
type StatusMsg web.Status

// TranscriptMsg appends one transcript line.
type TranscriptMsg web.TranscriptLine

// errMsg reports a failed host command.
type errMsg struct{ err error }

// Model is the dashboard state.
type Model struct {
	host Host

	status  web.Status
	lines   []web.TranscriptLine
	persona int
	err     string
}

// NewModel creates a dashboard for host.
func NewModel(host Host) Model {
	return Model{host: host, status: web.Status{State: "idle"}}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case StatusMsg:
		m.status = web.Status(msg)
		for i, p := range helper.Personas() {
			if p.ID == m.status.Persona {
				m.persona = i
			}
		}
		if m.status.Error != "" {
			m.err = m.status.Error
		}
	case TranscriptMsg:
		m.lines = append(m.lines, web.TranscriptLine(msg))
		if len(m.lines) > maxLines {
			m.lines = m.lines[len(m.lines)-maxLines:]
		}
	case errMsg:
		m.err = msg.err.Error()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "s":
		m.err = ""
		return m, m.command(func(ctx context.Context) error {
			return m.host.Start(ctx, m.selected(), "")
		})
	case "x":
		return m, m.command(func(context.Context) error { return m.host.Stop() })
	case "m":
		muted := !m.status.Muted
		m.status.Muted = muted
		return m, m.command(func(context.Context) error {
			m.host.SetMuted(muted)
			return nil
		})
	case "tab":
		m.persona = (m.persona + 1) % len(helper.Personas())
		if m.active() {
			m.err = ""
			return m, m.command(func(ctx context.Context) error {
				return m.host.Switch(ctx, m.selected(), "")
			})
		}
	}
	return m, nil
}

func (m Model) selected() string {
	return helper.Personas()[m.persona].ID
}

func (m Model) active() bool {
	return m.status.State == "connecting" || m.status.State == "active"
}

func (m Model) command(fn func(ctx context.Context) error) tea.Cmd {
	if m.host == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	p := helper.Personas()[m.persona]

	b.WriteString("┌─ LiveHelper " + strings.Repeat("─", width-13) + "┐\n")
	row(&b, "State:   %s", m.status.State)
	row(&b, "Persona: %s (%s)", p.Name, p.Voice)
	if m.status.Focus != "" {
		row(&b, "Focus:   %s", m.status.Focus)
	}

	mic := "live"
	if m.status.Muted {
		mic = "muted"
	}
	speaking := ""
	if m.status.Vocalizing {
		speaking = "  ♪ speaking"
	}
	row(&b, "Mic:     %s%s", mic, speaking)

	mt := m.status.Metrics
	row(&b, "Frames:  %d sent  %d dropped  Tools: %d", mt.FramesSent, mt.FramesDropped, mt.ToolCalls)

	b.WriteString("├" + strings.Repeat("─", width) + "┤\n")
	if len(m.lines) == 0 {
		row(&b, "(no transcript yet)")
	}
	for _, l := range m.lines {
		row(&b, "%-6s %s", l.Speaker+":", truncate(l.Text, width-9))
	}
	if m.err != "" {
		b.WriteString("├" + strings.Repeat("─", width) + "┤\n")
		row(&b, "Error: %s", truncate(m.err, width-9))
	}
	b.WriteString("├" + strings.Repeat("─", width) + "┤\n")
	row(&b, "s:Start  x:Stop  m:Mute  tab:Persona  q:Quit")
	b.WriteString("└" + strings.Repeat("─", width) + "┘\n")
	return b.String()
}

func row(b *strings.Builder, format string, args ...any) {
	line := truncate(fmt.Sprintf(format, args...), width-2)
	fmt.Fprintf(b, "│ %-*s │\n", width-2, line)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
