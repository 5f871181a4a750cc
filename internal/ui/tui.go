package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/teslashibe/go-livehelper/pkg/web"
)

// Program wraps the bubbletea program driving the dashboard.
type Program struct {
	p *tea.Program
}

// NewProgram creates a full-screen dashboard for host.
func NewProgram(host Host, opts ...tea.ProgramOption) *Program {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &Program{p: tea.NewProgram(NewModel(host), opts...)}
}

// Run blocks until the user quits.
func (p *Program) Run() error {
	_, err := p.p.Run()
	return err
}

// Status pushes a status update. Safe from any goroutine.
func (p *Program) Status(st web.Status) { p.p.Send(StatusMsg(st)) }

// Transcript pushes a transcript line. Safe from any goroutine.
func (p *Program) Transcript(line web.TranscriptLine) { p.p.Send(TranscriptMsg(line)) }

// Quit stops the program.
func (p *Program) Quit() { p.p.Quit() }
