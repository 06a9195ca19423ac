package fetcher

import (
	"time"

	errs "github.com/nateesh/polygon-options-agg/pkg/errors"
	"github.com/nateesh/polygon-options-agg/pkg/models"
)

// CategorySummary counts what happened to one category in a run
type CategorySummary struct {
	Inventory   int
	Remaining   int
	Succeeded   int
	Unavailable int
	Transient   int
	Truncated   int
	Rows        int
	Failures    map[errs.ErrorType]int
}

// Handled is the number of identifiers that reached a terminal state
func (c CategorySummary) Handled() int {
	return c.Succeeded + c.Unavailable + c.Transient
}

func (c *CategorySummary) countFailure(t errs.ErrorType) {
	if c.Failures == nil {
		c.Failures = make(map[errs.ErrorType]int)
	}
	c.Failures[t]++
}

// Summary describes a whole run
type Summary struct {
	RunID      string
	StartedAt  time.Time
	Duration   time.Duration
	Categories map[models.Category]*CategorySummary
}

func newSummary(runID string, start time.Time) *Summary {
	s := &Summary{
		RunID:      runID,
		StartedAt:  start,
		Categories: make(map[models.Category]*CategorySummary),
	}
	for _, c := range models.Categories() {
		s.Categories[c] = &CategorySummary{}
	}
	return s
}

func (s *Summary) finish(end time.Time) {
	s.Duration = end.Sub(s.StartedAt)
}

// Total adds up every category
func (s *Summary) Total() CategorySummary {
	var total CategorySummary
	for _, c := range s.Categories {
		total.Inventory += c.Inventory
		total.Remaining += c.Remaining
		total.Succeeded += c.Succeeded
		total.Unavailable += c.Unavailable
		total.Transient += c.Transient
		total.Truncated += c.Truncated
		total.Rows += c.Rows
		for t, n := range c.Failures {
			if total.Failures == nil {
				total.Failures = make(map[errs.ErrorType]int)
			}
			total.Failures[t] += n
		}
	}
	return total
}
