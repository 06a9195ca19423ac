package polygon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/nateesh/polygon-options-agg/pkg/errors"
	"github.com/nateesh/polygon-options-agg/pkg/logger"
	"github.com/nateesh/polygon-options-agg/pkg/models"
)

var testQuery = AggregatesQuery{Multiplier: 15, Timespan: "minute", From: "2020-01-01", To: "2100-01-01", Limit: 1000}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-key", 5*time.Second, logger.NewNopLogger())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestFetchAggregates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/aggs/ticker/O:SPY221104C00350000/range/15/minute/2020-01-01/2100-01-01", r.URL.Path)
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		assert.Equal(t, "true", r.URL.Query().Get("adjusted"))
		assert.Equal(t, "asc", r.URL.Query().Get("sort"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ticker":       "O:SPY221104C00350000",
			"status":       "OK",
			"resultsCount": 2,
			"results": []map[string]interface{}{
				{"o": 1.5, "h": 1.7, "l": 1.4, "c": 1.6, "v": 10, "vw": 1.55, "t": 1667568600000, "n": 3},
				{"o": 1.6, "h": 1.6, "l": 1.2, "c": 1.3, "v": 4, "vw": 1.41, "t": 1667569500000, "n": 2, "otc": true},
			},
		})
	})

	aggs, err := client.FetchAggregates(context.Background(), "O:SPY221104C00350000", testQuery)
	require.NoError(t, err)
	require.Len(t, aggs.Bars, 2)
	assert.False(t, aggs.Truncated)
	assert.Equal(t, int64(1667568600000), aggs.Bars[0].Timestamp)
	assert.Equal(t, 1.55, aggs.Bars[0].VWAP)
	assert.True(t, aggs.Bars[1].OTC)
}

func TestFetchAggregatesTruncation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "next_url present",
			body: map[string]interface{}{"status": "OK", "resultsCount": 1, "next_url": "https://api.polygon.io/v2/aggs/cursor", "results": []map[string]interface{}{{"t": 1}}},
		},
		{
			name: "results at limit",
			body: map[string]interface{}{"status": "OK", "resultsCount": 2, "results": []map[string]interface{}{{"t": 1}, {"t": 2}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})
			q := testQuery
			q.Limit = 2
			aggs, err := client.FetchAggregates(context.Background(), "O:X", q)
			require.NoError(t, err)
			assert.True(t, aggs.Truncated)
		})
	}
}

func TestFetchAggregatesErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantType  errs.ErrorType
		transient bool
	}{
		{"empty result", 200, `{"status":"OK","resultsCount":0}`, errs.ErrorTypeEmpty, false},
		{"not found", 404, `{"status":"NOT_FOUND","message":"ticker not found"}`, errs.ErrorTypeNotFound, false},
		{"unauthorized", 401, `{"status":"ERROR","error":"bad key"}`, errs.ErrorTypeAuth, false},
		{"rate limited", 429, `{"status":"ERROR","error":"too many requests"}`, errs.ErrorTypeRateLimit, true},
		{"server error", 502, `<html>bad gateway</html>`, errs.ErrorTypeServerError, true},
		{"malformed body", 200, `{"results": [`, errs.ErrorTypeParsing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.FetchAggregates(context.Background(), "O:X", testQuery)
			require.Error(t, err)

			var apiErr *errs.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantType, apiErr.Type)
			assert.Equal(t, "O:X", apiErr.Ticker)
			assert.Equal(t, tt.transient, errs.IsTransient(apiErr.Type))
		})
	}
}

func TestFetchAggregatesErrorMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"status": "NOT_AUTHORIZED", "message": "plan does not include options"})
	})

	_, err := client.FetchAggregates(context.Background(), "O:X", testQuery)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan does not include options")
	assert.Contains(t, err.Error(), "code 403")
}

func TestFetchAggregatesNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, "k", time.Second, logger.NewNopLogger())
	_, err := client.FetchAggregates(context.Background(), "O:X", testQuery)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
}

func TestFetchAggregatesCancelled(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchAggregates(ctx, "O:X", testQuery)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, classified := err.(*errs.Error)
	assert.False(t, classified, "cancellation is not a fetch failure")
}

func TestListContractsFollowsNextURL(t *testing.T) {
	var calls int32
	var serverURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ContractsEndpoint, r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		switch atomic.AddInt32(&calls, 1) {
		case 1:
			q := r.URL.Query()
			assert.Equal(t, "SPY", q.Get("underlying_ticker"))
			assert.Equal(t, "call", q.Get("contract_type"))
			assert.Equal(t, "true", q.Get("expired"))
			assert.Equal(t, "2020-01-01", q.Get("expiration_date.gte"))
			assert.Equal(t, "2024-01-01", q.Get("expiration_date.lte"))
			assert.Equal(t, "1000", q.Get("limit"))
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status":   "OK",
				"results":  []map[string]interface{}{{"ticker": "O:SPY200117C00100000", "contract_type": "call", "strike_price": 100}},
				"next_url": serverURL + ContractsEndpoint + "?cursor=page2",
			})
		case 2:
			assert.Equal(t, "page2", r.URL.Query().Get("cursor"))
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status":  "OK",
				"results": []map[string]interface{}{{"ticker": "O:SPY200117C00105000", "contract_type": "call", "strike_price": 105}},
			})
		default:
			t.Errorf("unexpected request %s", r.URL)
		}
	}))
	defer server.Close()
	serverURL = server.URL

	client := NewClient(server.URL, "test-key", 5*time.Second, logger.NewNopLogger())
	contracts, err := client.ListContracts(context.Background(), ContractsQuery{
		Underlying:    "SPY",
		ContractType:  models.CategoryCall,
		Expired:       true,
		ExpirationGTE: "2020-01-01",
		ExpirationLTE: "2024-01-01",
		Limit:         1000,
	})
	require.NoError(t, err)
	require.Len(t, contracts, 2)
	assert.Equal(t, "O:SPY200117C00105000", contracts[1].Ticker)
	assert.Equal(t, 105.0, contracts[1].StrikePrice)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestListContractsStopsOnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.ListContracts(context.Background(), ContractsQuery{Underlying: "SPY"})
	assert.Equal(t, errs.ErrorTypeServerError, errs.TypeOf(err))
}

type countingLimiter struct{ waits int }

func (l *countingLimiter) Allow() bool { return true }
func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits++
	return ctx.Err()
}
func (l *countingLimiter) Reset() {}

func TestClientWaitsOnLimiter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "OK", "results": []map[string]interface{}{{"t": 1}}})
	})
	limiter := &countingLimiter{}
	client.WithLimiter(limiter)

	_, err := client.FetchAggregates(context.Background(), "O:X", testQuery)
	require.NoError(t, err)
	_, err = client.FetchAggregates(context.Background(), "O:Y", testQuery)
	require.NoError(t, err)
	assert.Equal(t, 2, limiter.waits)
}
