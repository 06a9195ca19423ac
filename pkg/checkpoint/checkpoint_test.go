package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nateesh/polygon-options-agg/pkg/logger"
	"github.com/nateesh/polygon-options-agg/pkg/models"
)

func TestRecordPaths(t *testing.T) {
	m := NewManager("work", logger.NewNopLogger())

	assert.Equal(t, filepath.Join("work", "call_requested.txt"), m.RecordPath(models.CategoryCall, models.OutcomeSucceeded))
	assert.Equal(t, filepath.Join("work", "put_requested_not_working.txt"), m.RecordPath(models.CategoryPut, models.OutcomeUnavailable))
	assert.Equal(t, filepath.Join("work", "put_requested_transient.txt"), m.RecordPath(models.CategoryPut, models.OutcomeTransient))
}

func TestLoadMissingRecordIsEmpty(t *testing.T) {
	m := NewManager(t.TempDir(), logger.NewNopLogger())

	set, err := m.Load(models.CategoryCall, models.OutcomeSucceeded)
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestAppendAndLoad(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, logger.NewNopLogger())

	require.NoError(t, m.Append(models.CategoryCall, models.OutcomeSucceeded, "O:A"))
	require.NoError(t, m.Append(models.CategoryCall, models.OutcomeSucceeded, "O:B"))
	require.NoError(t, m.Append(models.CategoryCall, models.OutcomeUnavailable, "O:C"))

	data, err := os.ReadFile(filepath.Join(dir, "call_requested.txt"))
	require.NoError(t, err)
	assert.Equal(t, "O:A\nO:B\n", string(data))

	records, err := m.LoadAll(models.CategoryCall)
	require.NoError(t, err)
	assert.Equal(t, []string{"O:A", "O:B"}, records[models.OutcomeSucceeded].Sorted())
	assert.Equal(t, []string{"O:C"}, records[models.OutcomeUnavailable].Sorted())
	assert.Equal(t, 0, records[models.OutcomeTransient].Len())

	puts, err := m.Load(models.CategoryPut, models.OutcomeSucceeded)
	require.NoError(t, err)
	assert.Equal(t, 0, puts.Len(), "categories are independent")
}

func TestLoadToleratesBlankLinesAndWhitespace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "put_requested.txt"), []byte("O:A\r\n\n  O:B  \nO:A\n"), 0644))

	set, err := NewManager(dir, logger.NewNopLogger()).Load(models.CategoryPut, models.OutcomeSucceeded)
	require.NoError(t, err)
	assert.Equal(t, []string{"O:A", "O:B"}, set.Sorted())
}

func TestAppendAfterTornLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "call_requested.txt")
	require.NoError(t, os.WriteFile(path, []byte("O:A\nO:B"), 0644))

	m := NewManager(dir, logger.NewNopLogger())
	require.NoError(t, m.Append(models.CategoryCall, models.OutcomeSucceeded, "O:C"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "O:A\nO:B\nO:C\n", string(data))
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, logger.NewNopLogger())

	require.NoError(t, m.Append(models.CategoryCall, models.OutcomeTransient, "O:A"))
	require.NoError(t, m.Reset(models.CategoryCall, models.OutcomeTransient))
	require.NoError(t, m.Reset(models.CategoryCall, models.OutcomeTransient), "resetting a missing record is fine")

	set, err := m.Load(models.CategoryCall, models.OutcomeTransient)
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestSet(t *testing.T) {
	s := NewSet("b", "a", "b")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("c"))
	assert.Equal(t, []string{"a", "b"}, s.Sorted())
}

type fileTruncater struct{ calls int }

func (f *fileTruncater) Truncate(path string, size int64) error {
	f.calls++
	return os.Truncate(path, size)
}

func TestJournalBeginLoadClear(t *testing.T) {
	j := NewJournal(t.TempDir(), logger.NewNopLogger())

	entry, err := j.Load()
	require.NoError(t, err)
	assert.Nil(t, entry)

	want := Entry{RunID: "run-1", Ticker: "O:A", Category: models.CategoryCall, Output: "out.csv", Offset: 42, StartedAt: time.Unix(1700000000, 0).UTC()}
	require.NoError(t, j.Begin(want))
	assert.NoFileExists(t, j.Path()+".tmp")

	got, err := j.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))
	got.StartedAt = want.StartedAt
	assert.Equal(t, want, *got)

	require.NoError(t, j.Clear())
	assert.NoFileExists(t, j.Path())
	require.NoError(t, j.Clear())
}

func TestRecoverRollsBackUncommittedRows(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "SPY_call_minute_15x.csv")
	committed := "Date,open\n2022-11-04 13:30:00,1\n"
	require.NoError(t, os.WriteFile(output, []byte(committed+"2022-11-04 13:45:00,2\n"), 0644))

	records := NewManager(dir, logger.NewNopLogger())
	tl := logger.NewTestLogger()
	j := NewJournal(dir, tl)
	require.NoError(t, j.Begin(Entry{RunID: "r", Ticker: "O:B", Category: models.CategoryCall, Output: output, Offset: int64(len(committed))}))

	store := &fileTruncater{}
	entry, err := Recover(j, records, store)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "O:B", entry.Ticker)
	assert.Equal(t, 1, store.calls)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, committed, string(data))
	assert.NoFileExists(t, j.Path())
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
}

func TestRecoverKeepsCommittedRows(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "SPY_put_minute_15x.csv")
	content := "Date,open\n2022-11-04 13:30:00,1\n"
	require.NoError(t, os.WriteFile(output, []byte(content), 0644))

	records := NewManager(dir, logger.NewNopLogger())
	require.NoError(t, records.Append(models.CategoryPut, models.OutcomeSucceeded, "O:P"))

	j := NewJournal(dir, logger.NewNopLogger())
	require.NoError(t, j.Begin(Entry{Ticker: "O:P", Category: models.CategoryPut, Output: output, Offset: 10}))

	store := &fileTruncater{}
	_, err := Recover(j, records, store)
	require.NoError(t, err)
	assert.Equal(t, 0, store.calls)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
	assert.NoFileExists(t, j.Path())
}

func TestRecoverWithoutJournal(t *testing.T) {
	dir := t.TempDir()
	entry, err := Recover(NewJournal(dir, logger.NewNopLogger()), NewManager(dir, logger.NewNopLogger()), &fileTruncater{})
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRecoverCorruptJournal(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir, logger.NewNopLogger())
	require.NoError(t, os.WriteFile(j.Path(), []byte("{not json"), 0644))

	_, err := Recover(j, NewManager(dir, logger.NewNopLogger()), &fileTruncater{})
	assert.Error(t, err)
}
