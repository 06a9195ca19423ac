package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nateesh/polygon-options-agg/pkg/config"
	"github.com/nateesh/polygon-options-agg/pkg/models"
)

func testRun() config.RunConfig {
	return config.RunConfig{
		Underlying: "SPY",
		Multiplier: 15,
		Timespan:   "minute",
		From:       "2020-01-01",
		To:         "2100-01-01",
		Limit:      1000,
	}
}

func TestSaveAndLoad(t *testing.T) {
	output := filepath.Join(t.TempDir(), "SPY_call_minute_15x.csv")

	meta := FromRun(testRun(), models.CategoryCall)
	meta.Record(nil, "run-1", 42, time.Date(2022, 11, 10, 14, 0, 0, 0, time.UTC))
	require.NoError(t, meta.Save(output))

	_, err := os.Stat(output + ".json")
	require.NoError(t, err)
	_, err = os.Stat(output + ".json.tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := Load(output)
	require.NoError(t, err)
	assert.Empty(t, meta.Mismatches(loaded))
	assert.Equal(t, "run-1", loaded.LastRunID)
	assert.Equal(t, 42, loaded.RowsAppended)
	assert.True(t, meta.UpdatedAt.Equal(loaded.UpdatedAt))
}

func TestLoadMissingIsNil(t *testing.T) {
	meta, err := Load(filepath.Join(t.TempDir(), "none.csv"))
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestLoadCorrupt(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(Path(output), []byte("{not json"), 0644))

	_, err := Load(output)
	assert.Error(t, err)
}

func TestMismatches(t *testing.T) {
	a := FromRun(testRun(), models.CategoryCall)
	assert.Empty(t, a.Mismatches(FromRun(testRun(), models.CategoryCall)))

	other := testRun()
	other.To = "2023-01-01"
	other.Multiplier = 5
	assert.Equal(t, []string{"multiplier", "to"}, a.Mismatches(FromRun(other, models.CategoryCall)))

	// bookkeeping is not part of the query
	b := FromRun(testRun(), models.CategoryCall)
	b.Record(nil, "run-2", 3, time.Now())
	assert.Empty(t, a.Mismatches(b))
}

func TestRecordAccumulates(t *testing.T) {
	first := FromRun(testRun(), models.CategoryPut)
	first.Record(nil, "run-1", 10, time.Now())

	second := FromRun(testRun(), models.CategoryPut)
	at := time.Date(2022, 11, 11, 9, 30, 0, 0, time.FixedZone("EST", -5*3600))
	second.Record(first, "run-2", 5, at)

	assert.Equal(t, 2, second.Runs)
	assert.Equal(t, 15, second.RowsAppended)
	assert.Equal(t, "run-2", second.LastRunID)
	assert.Equal(t, time.UTC, second.UpdatedAt.Location())
}
