package contracts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nateesh/polygon-options-agg/pkg/config"
	errs "github.com/nateesh/polygon-options-agg/pkg/errors"
	"github.com/nateesh/polygon-options-agg/pkg/inventory"
	"github.com/nateesh/polygon-options-agg/pkg/logger"
	"github.com/nateesh/polygon-options-agg/pkg/models"
	"github.com/nateesh/polygon-options-agg/pkg/polygon"
	"github.com/nateesh/polygon-options-agg/pkg/retry"
)

type fakeLister struct {
	byType  map[models.Category][]models.ContractRecord
	err     error
	queries []polygon.ContractsQuery
}

func (f *fakeLister) ListContracts(ctx context.Context, q polygon.ContractsQuery) ([]models.ContractRecord, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.byType[q.ContractType], nil
}

func contract(ticker, kind string, strike float64) models.ContractRecord {
	return models.ContractRecord{
		Ticker:            ticker,
		UnderlyingTicker:  "SPY",
		ContractType:      kind,
		ExpirationDate:    "2022-01-21",
		StrikePrice:       strike,
		ExerciseStyle:     "american",
		SharesPerContract: 100,
		PrimaryExchange:   "BATO",
		CFI:               "OCASPS",
	}
}

func newTestExporter(t *testing.T, lister Lister) (*Exporter, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "contract_data")
	e, err := NewExporter(lister, dir, logger.NewNopLogger())
	require.NoError(t, err)
	e.now = func() time.Time { return time.Date(2022, 11, 10, 9, 0, 0, 0, time.UTC) }
	return e, dir
}

func TestFileName(t *testing.T) {
	day := time.Date(2022, 11, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "SPY_contracts_call_2022-11-10.csv", FileName("spy", models.CategoryCall, day))
}

func TestDefaultInventoryMatchesExportName(t *testing.T) {
	cfg := config.DefaultConfig()
	day := time.Date(2022, 11, 4, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, filepath.Join(cfg.Contracts.OutputDir, FileName(cfg.Underlying.Ticker, models.CategoryCall, day)), cfg.Inventory.CallPath)
	assert.Equal(t, filepath.Join(cfg.Contracts.OutputDir, FileName(cfg.Underlying.Ticker, models.CategoryPut, day)), cfg.Inventory.PutPath)
}

func TestExportWritesIndexedTable(t *testing.T) {
	lister := &fakeLister{byType: map[models.Category][]models.ContractRecord{
		models.CategoryCall: {
			contract("O:SPY220121C00400000", "call", 400),
			contract("O:SPY220121C00402500", "call", 402.5),
		},
	}}
	e, dir := newTestExporter(t, lister)

	result, err := e.Export(context.Background(), polygon.ContractsQuery{Underlying: "SPY", ContractType: models.CategoryCall, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Contracts)
	assert.Equal(t, filepath.Join(dir, "SPY_contracts_call_2022-11-10.csv"), result.Path)

	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, ",ticker,underlying_ticker,contract_type,expiration_date,strike_price,exercise_style,shares_per_contract,primary_exchange,cfi", lines[0])
	assert.Equal(t, "0,O:SPY220121C00400000,SPY,call,2022-01-21,400,american,100,BATO,OCASPS", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "1,O:SPY220121C00402500,"))
}

func TestExportIsUsableAsInventory(t *testing.T) {
	lister := &fakeLister{byType: map[models.Category][]models.ContractRecord{
		models.CategoryPut: {contract("O:SPY220121P00400000", "put", 400)},
	}}
	e, _ := newTestExporter(t, lister)

	result, err := e.Export(context.Background(), polygon.ContractsQuery{Underlying: "SPY", ContractType: models.CategoryPut})
	require.NoError(t, err)

	inv, err := inventory.Load(result.Path, models.CategoryPut)
	require.NoError(t, err)
	assert.Equal(t, []string{"O:SPY220121P00400000"}, inv.Tickers())
}

func TestExportAllRunsBothCategories(t *testing.T) {
	lister := &fakeLister{byType: map[models.Category][]models.ContractRecord{
		models.CategoryCall: {contract("O:C", "call", 1)},
	}}
	e, _ := newTestExporter(t, lister)

	results, err := e.ExportAll(context.Background(), polygon.ContractsQuery{Underlying: "SPY", Expired: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Contracts)
	assert.Equal(t, 0, results[1].Contracts)

	require.Len(t, lister.queries, 2)
	assert.Equal(t, models.CategoryCall, lister.queries[0].ContractType)
	assert.Equal(t, models.CategoryPut, lister.queries[1].ContractType)
	assert.True(t, lister.queries[1].Expired)
}

func TestExportListingFailureWritesNothing(t *testing.T) {
	lister := &fakeLister{err: errs.New(errs.ErrorTypeAuth, "list contracts", "bad key").WithCode(401)}
	e, dir := newTestExporter(t, lister)

	_, err := e.Export(context.Background(), polygon.ContractsQuery{Underlying: "SPY", ContractType: models.CategoryCall})
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeAuth, errs.TypeOf(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// flakyLister fails transiently a fixed number of times before delegating
type flakyLister struct {
	failures int
	calls    int
	next     Lister
}

func (f *flakyLister) ListContracts(ctx context.Context, q polygon.ContractsQuery) ([]models.ContractRecord, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errs.New(errs.ErrorTypeServerError, "list contracts", "bad gateway").WithCode(502)
	}
	return f.next.ListContracts(ctx, q)
}

func TestExportRetriesTransientListingFailure(t *testing.T) {
	lister := &flakyLister{failures: 2, next: &fakeLister{byType: map[models.Category][]models.ContractRecord{
		models.CategoryPut: {contract("O:SPY220121P00400000", "put", 400)},
	}}}
	e, _ := newTestExporter(t, lister)
	e.WithRetry(&retry.Config{MaxAttempts: 3, Backoff: &retry.ConstantBackoff{Delay: time.Millisecond}})

	result, err := e.Export(context.Background(), polygon.ContractsQuery{Underlying: "SPY", ContractType: models.CategoryPut})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Contracts)
	assert.Equal(t, 3, lister.calls)
}

func TestExportGivesUpAfterRetries(t *testing.T) {
	lister := &flakyLister{failures: 5, next: &fakeLister{}}
	e, dir := newTestExporter(t, lister)
	e.WithRetry(&retry.Config{MaxAttempts: 2, Backoff: &retry.ConstantBackoff{Delay: time.Millisecond}})

	_, err := e.Export(context.Background(), polygon.ContractsQuery{Underlying: "SPY", ContractType: models.CategoryCall})
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeServerError, errs.TypeOf(err))
	assert.Equal(t, 2, lister.calls)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestQueryFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Underlying.Ticker = "qqq"

	q := QueryFromConfig(cfg)
	assert.Equal(t, "QQQ", q.Underlying)
	assert.True(t, q.Expired)
	assert.Equal(t, "2020-01-01", q.ExpirationGTE)
	assert.Equal(t, "2024-01-01", q.ExpirationLTE)
	assert.Equal(t, 1000, q.Limit)
}
