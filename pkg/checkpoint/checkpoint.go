package checkpoint

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nateesh/polygon-options-agg/pkg/logger"
	"github.com/nateesh/polygon-options-agg/pkg/models"
)

// Set is a set of identifier tickers
type Set map[string]struct{}

// NewSet creates a set holding items
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, item := range items {
		s.Add(item)
	}
	return s
}

func (s Set) Add(ticker string) { s[ticker] = struct{}{} }

func (s Set) Has(ticker string) bool {
	_, ok := s[ticker]
	return ok
}

func (s Set) Len() int { return len(s) }

// Sorted returns the members in ascending order
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Manager owns the checkpoint records of one working directory. Each
// (category, outcome) pair is a newline-delimited file of tickers that only
// ever grows during a run.
type Manager struct {
	dir    string
	logger logger.Logger
}

// NewManager creates a checkpoint manager rooted at dir
func NewManager(dir string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{dir: dir, logger: log}
}

// RecordPath returns the file backing a checkpoint record
func (m *Manager) RecordPath(category models.Category, outcome models.Outcome) string {
	var name string
	switch outcome {
	case models.OutcomeUnavailable:
		name = fmt.Sprintf("%s_requested_not_working.txt", category)
	case models.OutcomeTransient:
		name = fmt.Sprintf("%s_requested_transient.txt", category)
	default:
		name = fmt.Sprintf("%s_requested.txt", category)
	}
	return filepath.Join(m.dir, name)
}

// Load reads one checkpoint record. A record that does not exist yet is
// an empty set.
func (m *Manager) Load(category models.Category, outcome models.Outcome) (Set, error) {
	path := m.RecordPath(category, outcome)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSet(), nil
		}
		return nil, fmt.Errorf("failed to open checkpoint record: %w", err)
	}
	defer file.Close()

	set := NewSet()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if ticker := strings.TrimSpace(scanner.Text()); ticker != "" {
			set.Add(ticker)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read checkpoint record %s: %w", path, err)
	}

	m.logger.DebugWithFields("Checkpoint record loaded", map[string]interface{}{
		"category": string(category),
		"outcome":  string(outcome),
		"entries":  set.Len(),
	})
	return set, nil
}

// LoadAll reads every record of a category
func (m *Manager) LoadAll(category models.Category) (map[models.Outcome]Set, error) {
	records := make(map[models.Outcome]Set, len(models.Outcomes()))
	for _, outcome := range models.Outcomes() {
		set, err := m.Load(category, outcome)
		if err != nil {
			return nil, err
		}
		records[outcome] = set
	}
	return records, nil
}

// Append durably adds ticker to a checkpoint record, creating it if needed.
// A torn final line left by an earlier crash is terminated first so the
// new entry stays on its own line.
func (m *Manager) Append(category models.Category, outcome models.Outcome, ticker string) error {
	path := m.RecordPath(category, outcome)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint record: %w", err)
	}
	defer file.Close()

	line := ticker + "\n"
	torn, err := endsWithoutNewline(file)
	if err != nil {
		return fmt.Errorf("failed to inspect checkpoint record: %w", err)
	}
	if torn {
		line = "\n" + line
	}

	if _, err := io.WriteString(file, line); err != nil {
		return fmt.Errorf("failed to append checkpoint: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync checkpoint record: %w", err)
	}
	return nil
}

func endsWithoutNewline(file *os.File) (bool, error) {
	info, err := file.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

// Reset removes a checkpoint record
func (m *Manager) Reset(category models.Category, outcome models.Outcome) error {
	if err := os.Remove(m.RecordPath(category, outcome)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to reset checkpoint record: %w", err)
	}
	return nil
}
