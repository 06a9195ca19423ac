package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nateesh/polygon-options-agg/pkg/logger"
	"github.com/nateesh/polygon-options-agg/pkg/models"
)

// JournalFile is the name of the pending-append journal inside the work dir
const JournalFile = ".pending.json"

// Entry describes the one output append that is in flight
type Entry struct {
	RunID     string          `json:"run_id"`
	Ticker    string          `json:"ticker"`
	Category  models.Category `json:"category"`
	Output    string          `json:"output"`
	Offset    int64           `json:"offset"`
	StartedAt time.Time       `json:"started_at"`
}

// Truncater cuts a file back to a previous size
type Truncater interface {
	Truncate(path string, size int64) error
}

// Journal records an output append before it happens so a crash between
// writing rows and checkpointing the ticker can be undone on the next start.
type Journal struct {
	path   string
	logger logger.Logger
}

// NewJournal creates a journal in dir
func NewJournal(dir string, log logger.Logger) *Journal {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Journal{path: filepath.Join(dir, JournalFile), logger: log}
}

// Path returns the journal file location
func (j *Journal) Path() string { return j.path }

// Begin saves the entry atomically
func (j *Journal) Begin(entry Entry) error {
	tempPath := j.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary journal file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(entry); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync journal file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close journal file: %w", err)
	}
	if err := os.Rename(tempPath, j.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace journal file: %w", err)
	}
	return nil
}

// Load returns the pending entry, or nil when there is none
func (j *Journal) Load() (*Entry, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode journal: %w", err)
	}
	return &entry, nil
}

// Clear removes the pending entry
func (j *Journal) Clear() error {
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear journal: %w", err)
	}
	return nil
}

// Recover settles an entry left behind by an interrupted run. If the ticker
// made it into the succeeded record its rows are kept; otherwise the output
// is cut back to where it was before the append. It returns the entry it
// handled, or nil when the journal was empty.
func Recover(j *Journal, records *Manager, store Truncater) (*Entry, error) {
	entry, err := j.Load()
	if err != nil || entry == nil {
		return nil, err
	}

	succeeded, err := records.Load(entry.Category, models.OutcomeSucceeded)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"run_id":   entry.RunID,
		"ticker":   entry.Ticker,
		"category": string(entry.Category),
		"output":   entry.Output,
		"offset":   entry.Offset,
	}

	if succeeded.Has(entry.Ticker) {
		j.logger.InfoWithFields("Pending append was committed, clearing journal", fields)
	} else {
		if err := store.Truncate(entry.Output, entry.Offset); err != nil {
			return nil, fmt.Errorf("failed to roll back uncommitted rows: %w", err)
		}
		j.logger.WarnWithFields("Rolled back uncommitted rows from interrupted run", fields)
	}

	if err := j.Clear(); err != nil {
		return nil, err
	}
	return entry, nil
}
