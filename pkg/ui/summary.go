package ui

import (
	"fmt"
	"sort"
	"strings"

	errs "github.com/nateesh/polygon-options-agg/pkg/errors"
	"github.com/nateesh/polygon-options-agg/pkg/fetcher"
	"github.com/nateesh/polygon-options-agg/pkg/models"
)

// Summary prints the end-of-run report
func (p *Printer) Summary(s *fetcher.Summary) {
	if p.quiet || s == nil {
		return
	}

	p.Highlight(fmt.Sprintf("Run %s finished in %s", s.RunID, s.Duration.Round(1e6)))
	for _, category := range models.Categories() {
		cs := s.Categories[category]
		if cs == nil {
			continue
		}
		p.Info(strings.ToUpper(string(category))+"S", FormatCategory(cs))
		if failures := FormatFailures(cs.Failures); failures != "" {
			fmt.Fprintf(p.out, "  %s %s\n", Dim("failures:"), failures)
		}
	}
}

// FormatCategory renders one category's counters on a line
func FormatCategory(cs *fetcher.CategorySummary) string {
	line := fmt.Sprintf("%d/%d handled, %d succeeded, %d unavailable, %d transient, %d rows",
		cs.Handled(), cs.Remaining, cs.Succeeded, cs.Unavailable, cs.Transient, cs.Rows)
	if cs.Truncated > 0 {
		line += fmt.Sprintf(", %d truncated", cs.Truncated)
	}
	return line
}

// FormatFailures renders failure counts by type in a stable order
func FormatFailures(failures map[errs.ErrorType]int) string {
	if len(failures) == 0 {
		return ""
	}
	types := make([]string, 0, len(failures))
	for t := range failures {
		types = append(types, string(t))
	}
	sort.Strings(types)

	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = fmt.Sprintf("%s=%d", t, failures[errs.ErrorType(t)])
	}
	return strings.Join(parts, " ")
}
