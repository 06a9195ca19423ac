package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nateesh/polygon-options-agg/pkg/models"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())

	leftColumn := m.renderLeftColumn()
	rightColumn := m.renderLogsPanel((m.width - 4) / 2)

	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, leftColumn, "  ", rightColumn))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to stop"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m Model) renderHeader() string {
	status := m.spinner.View() + " fetching"
	switch {
	case m.done && m.doneErr != nil:
		status = errorStyle.Render("stopped")
	case m.done:
		status = successStyle.Render("complete")
	}
	title := fmt.Sprintf("POLYAGG  options aggregates  %s", status)
	return logoStyle.Width(m.width).Render(title)
}

func (m Model) renderLeftColumn() string {
	width := (m.width - 4) / 2

	sections := []string{m.renderStatsPanel(width)}
	for _, c := range models.Categories() {
		sections = append(sections, m.renderCategoryPanel(c, width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" RUN ")

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(formatDuration(time.Since(m.startTime)))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f/min", m.Rate()))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("ETA:"), statsValueStyle.Render(formatDuration(m.ETA()))),
	}
	if m.lastTicker != "" {
		stats = append(stats, fmt.Sprintf("%s %s", statsLabelStyle.Render("Last:"), statsValueStyle.Render(m.lastTicker)))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m Model) renderCategoryPanel(category models.Category, width int) string {
	state := m.categories[category]
	title := titleStyle.Render(" " + strings.ToUpper(string(category)) + "S ")

	if !state.Started {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("Waiting")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	bar := m.bars[category]
	if width > 24 {
		bar.Width = width - 12
	}

	counts := fmt.Sprintf("%s %s %s",
		successStyle.Render(fmt.Sprintf("✓ %d", state.Succeeded)),
		errorStyle.Render(fmt.Sprintf("✗ %d", state.Unavailable)),
		warningStyle.Render(fmt.Sprintf("↻ %d", state.Transient)),
	)
	total := statsValueStyle.Render(fmt.Sprintf("%d/%d", state.Handled(), state.Total))

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, bar.ViewAs(state.Percent()), total+"  "+counts),
	)
}

func (m Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" ACTIVITY ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))

		message := log.Message
		if maxLen := width - 25; maxLen > 3 && len(message) > maxLen {
			message = message[:maxLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(message)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No activity yet...")
	}

	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Stop the run (progress so far is kept)
    ctrl+l   - Clear activity
    ?        - Toggle this help

  Outcomes:
    ` + successStyle.Render("✓") + `        - Succeeded
    ` + errorStyle.Render("✗") + `        - Unavailable, not retried
    ` + warningStyle.Render("↻") + `        - Transient, retried next run
`
	return panelStyle.Width(m.width).Render(help)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
