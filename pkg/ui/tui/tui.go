package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nateesh/polygon-options-agg/pkg/models"
)

// TUI is a full-screen dashboard for a fetch run. It satisfies the
// fetcher's progress interface, so it can be handed straight to it.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates the dashboard; onQuit runs when the user presses q
func NewTUI(onQuit func()) *TUI {
	model := NewModel(onQuit)
	program := tea.NewProgram(&model, tea.WithAltScreen())

	return &TUI{
		program: program,
		model:   &model,
	}
}

// Run blocks until the dashboard exits
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Stop quits the dashboard
func (t *TUI) Stop() {
	t.program.Quit()
}

func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TUI) Start(category models.Category, total int) {
	t.Send(CategoryStartMsg{Category: category, Total: total})
}

func (t *TUI) Handled(category models.Category, ticker string, outcome models.Outcome) {
	t.Send(OutcomeMsg{Category: category, Ticker: ticker, Outcome: outcome})
}

// Done reports the end of the run; the dashboard stays up until quit
func (t *TUI) Done(err error) {
	t.Send(DoneMsg{Err: err})
}

func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}
