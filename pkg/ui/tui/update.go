package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nateesh/polygon-options-agg/pkg/models"
)

// CategoryStartMsg is sent when the fetcher begins a category
type CategoryStartMsg struct {
	Category models.Category
	Total    int
}

// OutcomeMsg is sent for every handled identifier
type OutcomeMsg struct {
	Category models.Category
	Ticker   string
	Outcome  models.Outcome
}

// DoneMsg is sent once the run returns
type DoneMsg struct {
	Err error
}

// LogMsg adds a line to the activity panel
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg refreshes elapsed time and rate
type TickMsg time.Time

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()

	case CategoryStartMsg:
		m.StartCategory(msg.Category, msg.Total)
		return m, nil

	case OutcomeMsg:
		m.RecordOutcome(msg.Category, msg.Ticker, msg.Outcome)
		return m, nil

	case DoneMsg:
		m.Finish(msg.Err)
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.onQuit != nil && !m.done {
			m.onQuit()
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
