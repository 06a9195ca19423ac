package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nateesh/polygon-options-agg/pkg/config"
	"github.com/nateesh/polygon-options-agg/pkg/contracts"
	"github.com/nateesh/polygon-options-agg/pkg/logger"
	"github.com/nateesh/polygon-options-agg/pkg/models"
	"github.com/nateesh/polygon-options-agg/pkg/polygon"
)

// mockPolygon serves the listing and aggregates endpoints from memory
type mockPolygon struct {
	server   *httptest.Server
	requests int32

	mu        sync.RWMutex
	contracts []models.ContractRecord
	bars      map[string][]polygon.Bar
	failures  map[string]int // ticker -> status code
}

func newMockPolygon(t *testing.T) *mockPolygon {
	t.Helper()
	m := &mockPolygon{
		bars:     make(map[string][]polygon.Bar),
		failures: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(polygon.ContractsEndpoint, m.handleContracts)
	mux.HandleFunc("/v2/aggs/ticker/", m.handleAggregates)

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockPolygon) addContract(ticker string, category models.Category, bars ...polygon.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts = append(m.contracts, models.ContractRecord{
		Ticker:            ticker,
		UnderlyingTicker:  "SPY",
		ContractType:      string(category),
		ExpirationDate:    "2022-11-04",
		StrikePrice:       350,
		ExerciseStyle:     "american",
		SharesPerContract: 100,
	})
	m.bars[ticker] = bars
}

func (m *mockPolygon) setFailure(ticker string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == 0 {
		delete(m.failures, ticker)
		return
	}
	m.failures[ticker] = status
}

func (m *mockPolygon) requestCount() int {
	return int(atomic.LoadInt32(&m.requests))
}

func (m *mockPolygon) handleContracts(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.requests, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()

	kind := r.URL.Query().Get("contract_type")
	results := []models.ContractRecord{}
	for _, c := range m.contracts {
		if kind == "" || c.ContractType == kind {
			results = append(results, c)
		}
	}
	writeMockJSON(w, http.StatusOK, map[string]interface{}{"status": "OK", "results": results})
}

// handleAggregates serves /v2/aggs/ticker/{ticker}/range/...
func (m *mockPolygon) handleAggregates(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.requests, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v2/aggs/ticker/"), "/")
	ticker := parts[0]

	if status, ok := m.failures[ticker]; ok {
		writeMockJSON(w, status, map[string]interface{}{"status": "ERROR", "error": http.StatusText(status)})
		return
	}

	bars := m.bars[ticker]
	writeMockJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":       ticker,
		"status":       "OK",
		"resultsCount": len(bars),
		"results":      bars,
	})
}

func writeMockJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// exportInventories runs the listing export and points run at its files
func exportInventories(t *testing.T, m *mockPolygon, client *polygon.Client, dir string) config.RunConfig {
	t.Helper()
	exporter, err := contracts.NewExporter(client, filepath.Join(dir, "contract_data"), logger.NewNopLogger())
	require.NoError(t, err)

	results, err := exporter.ExportAll(context.Background(), polygon.ContractsQuery{Underlying: "SPY", Expired: true, Limit: 1000})
	require.NoError(t, err)
	require.Len(t, results, 2)

	return config.RunConfig{
		Underlying:    "SPY",
		Multiplier:    15,
		Timespan:      "minute",
		From:          "2022-11-01",
		To:            "2022-11-04",
		Limit:         1000,
		CallInventory: results[0].Path,
		PutInventory:  results[1].Path,
		WorkDir:       filepath.Join(dir, "work"),
	}
}

func TestEndToEndExportThenFetch(t *testing.T) {
	m := newMockPolygon(t)
	m.addContract("O:SPY221104C00350000", models.CategoryCall, bar(1667481300000, 12.5), bar(1667482200000, 12.75))
	m.addContract("O:SPY221104C00355000", models.CategoryCall)
	m.addContract("O:SPY221104P00350000", models.CategoryPut, bar(1667481300000, 3.25))
	m.addContract("O:SPY221104P00355000", models.CategoryPut, bar(1667481300000, 4.5))
	m.setFailure("O:SPY221104P00355000", http.StatusServiceUnavailable)

	client := polygon.NewClient(m.server.URL, "test-key", 5*time.Second, logger.NewNopLogger())
	run := exportInventories(t, m, client, t.TempDir())
	run.SeparateTransient = true

	summary, err := newTestFetcher(t, run, client).Run(context.Background())
	require.NoError(t, err)

	calls := summary.Categories[models.CategoryCall]
	assert.Equal(t, 1, calls.Succeeded)
	assert.Equal(t, 1, calls.Unavailable, "empty result")
	puts := summary.Categories[models.CategoryPut]
	assert.Equal(t, 1, puts.Succeeded)
	assert.Equal(t, 1, puts.Transient)

	assert.Equal(t, []string{"O:SPY221104C00355000"}, loadRecord(t, run, models.CategoryCall, models.OutcomeUnavailable))
	assert.Equal(t, []string{"O:SPY221104P00355000"}, loadRecord(t, run, models.CategoryPut, models.OutcomeTransient))

	callRows := readLines(t, run.OutputPath(models.CategoryCall))
	require.Len(t, callRows, 3)
	assert.Equal(t, "2022-11-03 13:15:00,12.5,12.5,12.5,12.5,10,12.5,3,false,O:SPY221104C00350000,call", callRows[1])

	// the outage is over; only the transient put is requested again
	m.setFailure("O:SPY221104P00355000", 0)
	before := m.requestCount()

	summary, err = newTestFetcher(t, run, client).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, m.requestCount()-before)
	assert.Equal(t, 1, summary.Categories[models.CategoryPut].Succeeded)
	assert.Equal(t, 0, summary.Categories[models.CategoryCall].Remaining)

	assert.Equal(t, []string{"O:SPY221104P00350000", "O:SPY221104P00355000"},
		loadRecord(t, run, models.CategoryPut, models.OutcomeSucceeded))
	assert.Empty(t, loadRecord(t, run, models.CategoryPut, models.OutcomeTransient))
	assert.Len(t, readLines(t, run.OutputPath(models.CategoryPut)), 3)

	// a third run has nothing left to do
	before = m.requestCount()
	summary, err = newTestFetcher(t, run, client).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, m.requestCount())
	assert.Equal(t, 0, summary.Total().Handled())
}
