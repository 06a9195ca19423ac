package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nateesh/polygon-options-agg/pkg/models"
)

// CategoryState tracks one category of the current run
type CategoryState struct {
	Category    models.Category
	Total       int
	Succeeded   int
	Unavailable int
	Transient   int
	Started     bool
}

// Handled is the number of identifiers with a terminal outcome
func (c *CategoryState) Handled() int {
	return c.Succeeded + c.Unavailable + c.Transient
}

// Percent is the completed fraction, 1 for an empty category
func (c *CategoryState) Percent() float64 {
	if c.Total == 0 {
		return 1
	}
	return float64(c.Handled()) / float64(c.Total)
}

// Model is the dashboard state. It is only mutated from Update.
type Model struct {
	spinner spinner.Model
	bars    map[models.Category]progress.Model

	categories map[models.Category]*CategoryState
	current    models.Category
	lastTicker string

	startTime time.Time
	done      bool
	doneErr   error

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	// called when the user quits so the fetch can be cancelled
	onQuit func()
}

// LogMessage is one line of the activity panel
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates the dashboard model
func NewModel(onQuit func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	m := Model{
		spinner:        s,
		bars:           make(map[models.Category]progress.Model),
		categories:     make(map[models.Category]*CategoryState),
		startTime:      time.Now(),
		maxLogMessages: 50,
		onQuit:         onQuit,
	}
	for _, c := range models.Categories() {
		p := progress.New(progress.WithDefaultGradient())
		p.Width = 40
		m.bars[c] = p
		m.categories[c] = &CategoryState{Category: c}
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// StartCategory records the planned total of a category
func (m *Model) StartCategory(category models.Category, total int) {
	state := m.categories[category]
	state.Total = total
	state.Started = true
	m.current = category
	m.AddLogMessage("INFO", fmt.Sprintf("Fetching %d %s contracts", total, category))
}

// RecordOutcome counts one handled identifier
func (m *Model) RecordOutcome(category models.Category, ticker string, outcome models.Outcome) {
	state := m.categories[category]
	m.lastTicker = ticker

	switch outcome {
	case models.OutcomeSucceeded:
		state.Succeeded++
	case models.OutcomeTransient:
		state.Transient++
		m.AddLogMessage("WARN", ticker+" failed, will retry next run")
	default:
		state.Unavailable++
		m.AddLogMessage("ERROR", ticker+" unavailable")
	}
}

// Finish marks the run as over
func (m *Model) Finish(err error) {
	m.done = true
	m.doneErr = err
	if err != nil {
		m.AddLogMessage("ERROR", "Run stopped: "+err.Error())
		return
	}
	m.AddLogMessage("SUCCESS", "Run complete")
}

// AddLogMessage adds a line to the activity panel
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Category returns the state of one category
func (m *Model) Category(category models.Category) CategoryState {
	return *m.categories[category]
}

// Rate is identifiers handled per minute since the dashboard started
func (m *Model) Rate() float64 {
	elapsed := time.Since(m.startTime).Minutes()
	if elapsed == 0 {
		return 0
	}
	handled := 0
	for _, c := range m.categories {
		handled += c.Handled()
	}
	return float64(handled) / elapsed
}

// ETA estimates the time left from the observed rate
func (m *Model) ETA() time.Duration {
	rate := m.Rate()
	if rate == 0 {
		return 0
	}
	left := 0
	for _, c := range m.categories {
		if c.Started {
			left += c.Total - c.Handled()
		}
	}
	return time.Duration(float64(left) / rate * float64(time.Minute))
}
