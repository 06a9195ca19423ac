package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nateesh/polygon-options-agg/pkg/models"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 20
)

// StatusTracker renders a single self-overwriting progress line per
// category. It is handed to the fetcher as its progress sink.
type StatusTracker struct {
	out       io.Writer
	category  models.Category
	total     int
	counts    map[models.Outcome]int
	StartTime time.Time
}

// NewStatusTracker creates a tracker writing to out
func NewStatusTracker(out io.Writer) *StatusTracker {
	return &StatusTracker{
		out:       out,
		counts:    make(map[models.Outcome]int),
		StartTime: time.Now(),
	}
}

// Start begins a new category, finishing the line of the previous one
func (st *StatusTracker) Start(category models.Category, total int) {
	if st.category != "" {
		fmt.Fprintln(st.out)
	}
	st.category = category
	st.total = total
	st.counts = make(map[models.Outcome]int)
	fmt.Fprintf(st.out, "%s %s: %d remaining\n", Magenta("[PLANNED]"), category, total)
	if total == 0 {
		st.category = ""
	}
}

// Handled counts one identifier and redraws the line
func (st *StatusTracker) Handled(category models.Category, ticker string, outcome models.Outcome) {
	st.counts[outcome]++
	st.PrintProgress()
}

// Done is the number of identifiers handled in the current category
func (st *StatusTracker) Done() int {
	n := 0
	for _, c := range st.counts {
		n += c
	}
	return n
}

// GetProgressBar returns a bar for the current category
func (st *StatusTracker) GetProgressBar() string {
	filled := barWidth
	if st.total > 0 {
		filled = st.Done() * barWidth / st.total
	}
	if filled > barWidth {
		filled = barWidth
	}

	bar := strings.Repeat(ProgressBar, filled) +
		strings.Repeat(ProgressEmpty, barWidth-filled)

	return fmt.Sprintf("[%s] %d/%d", bar, st.Done(), st.total)
}

func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// GetRate returns identifiers handled per minute in the current category
func (st *StatusTracker) GetRate() float64 {
	elapsed := st.GetElapsedTime().Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(st.Done()) / elapsed
}

func (st *StatusTracker) PrintProgress() {
	fmt.Fprintf(st.out, "\r%s %s %s %s %s %s",
		Green("[FETCHING]"),
		st.category,
		st.GetProgressBar(),
		Green(fmt.Sprintf("ok %d", st.counts[models.OutcomeSucceeded])),
		Red(fmt.Sprintf("unavailable %d", st.counts[models.OutcomeUnavailable])),
		Yellow(fmt.Sprintf("transient %d", st.counts[models.OutcomeTransient])))
}

// Finish ends the current line
func (st *StatusTracker) Finish() {
	if st.category != "" {
		fmt.Fprintln(st.out)
		st.category = ""
	}
}
