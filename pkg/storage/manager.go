package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	errs "github.com/nateesh/polygon-options-agg/pkg/errors"
)

// Manager handles the delimited output files of a work directory
type Manager struct {
	dir string
	mu  sync.Mutex
}

// NewManager creates the output directory if needed
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrOutputDirectory, dir, err)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the managed directory
func (m *Manager) Dir() string { return m.dir }

// Size returns the current size of a file; a missing file has size zero
func (m *Manager) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return info.Size(), nil
}

// AppendRows appends records to path in a single write and fsyncs. The
// header is written only when the file is new or empty. It returns the
// file size before the append so the caller can roll it back. On a failed
// write the file is cut back to that size before returning.
func (m *Manager) AppendRows(path string, header []string, rows [][]string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeIO, "open output", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeIO, "stat output", err)
	}
	offset := info.Size()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if offset == 0 && len(header) > 0 {
		if err := w.Write(header); err != nil {
			return offset, errs.Wrap(errs.ErrorTypeIO, "encode header", err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return offset, errs.Wrap(errs.ErrorTypeIO, "encode rows", err)
	}

	if _, err := file.Write(buf.Bytes()); err != nil {
		_ = file.Truncate(offset)
		return offset, errs.Wrap(errs.ErrorTypeIO, "append rows", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Truncate(offset)
		return offset, errs.Wrap(errs.ErrorTypeIO, "sync output", err)
	}
	return offset, nil
}

// Truncate cuts path back to size. Files that are missing or already no
// larger than size are left alone.
func (m *Manager) Truncate(path string, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() <= size {
		return nil
	}
	if err := os.Truncate(path, size); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", path, err)
	}
	return nil
}

// WriteTable replaces path with a complete table, atomically
func (m *Manager) WriteTable(path string, header []string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	w := csv.NewWriter(out)
	err = w.Write(header)
	if err == nil {
		err = w.WriteAll(rows)
	}
	if err != nil {
		out.Close()
		os.Remove(tempFile)
		return fmt.Errorf("failed to write table: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tempFile)
		return fmt.Errorf("failed to sync table: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
