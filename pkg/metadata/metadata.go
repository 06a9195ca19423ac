// Package metadata keeps a JSON sidecar next to each output file describing
// the query its rows were fetched with.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nateesh/polygon-options-agg/pkg/config"
	"github.com/nateesh/polygon-options-agg/pkg/models"
)

// OutputMetadata describes one category output file
type OutputMetadata struct {
	Underlying string          `json:"underlying"`
	Category   models.Category `json:"category"`
	Multiplier int             `json:"multiplier"`
	Timespan   string          `json:"timespan"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Limit      int             `json:"limit"`

	// Bookkeeping of the runs that appended to the file
	LastRunID    string    `json:"last_run_id"`
	UpdatedAt    time.Time `json:"updated_at"`
	Runs         int       `json:"runs"`
	RowsAppended int       `json:"rows_appended"`
}

// FromRun describes the query a run issues for category
func FromRun(run config.RunConfig, category models.Category) *OutputMetadata {
	return &OutputMetadata{
		Underlying: run.Underlying,
		Category:   category,
		Multiplier: run.Multiplier,
		Timespan:   run.Timespan,
		From:       run.From,
		To:         run.To,
		Limit:      run.Limit,
	}
}

// Path is the sidecar location for an output file
func Path(outputPath string) string {
	return outputPath + ".json"
}

// Save writes the sidecar atomically
func (m *OutputMetadata) Save(outputPath string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tmp := Path(outputPath) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	if err := os.Rename(tmp, Path(outputPath)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace metadata file: %w", err)
	}
	return nil
}

// Load reads the sidecar of an output file. A missing sidecar is (nil, nil).
func Load(outputPath string) (*OutputMetadata, error) {
	data, err := os.ReadFile(Path(outputPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta OutputMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &meta, nil
}

// Mismatches lists the query fields in which other differs from m. Rows
// fetched with different queries should not share one output file.
func (m *OutputMetadata) Mismatches(other *OutputMetadata) []string {
	var fields []string
	if m.Underlying != other.Underlying {
		fields = append(fields, "underlying")
	}
	if m.Category != other.Category {
		fields = append(fields, "category")
	}
	if m.Multiplier != other.Multiplier {
		fields = append(fields, "multiplier")
	}
	if m.Timespan != other.Timespan {
		fields = append(fields, "timespan")
	}
	if m.From != other.From {
		fields = append(fields, "from")
	}
	if m.To != other.To {
		fields = append(fields, "to")
	}
	if m.Limit != other.Limit {
		fields = append(fields, "limit")
	}
	return fields
}

// Record folds one run into the bookkeeping, keeping the query of m
func (m *OutputMetadata) Record(previous *OutputMetadata, runID string, rows int, at time.Time) {
	if previous != nil {
		m.Runs = previous.Runs
		m.RowsAppended = previous.RowsAppended
	}
	m.Runs++
	m.RowsAppended += rows
	m.LastRunID = runID
	m.UpdatedAt = at.UTC()
}
