package fetcher

import (
	"context"

	"github.com/nateesh/polygon-options-agg/pkg/models"
	"github.com/nateesh/polygon-options-agg/pkg/polygon"
)

// AggregatesClient performs one bounded aggregates request per call
type AggregatesClient interface {
	FetchAggregates(ctx context.Context, ticker string, q polygon.AggregatesQuery) (*polygon.Aggregates, error)
}

// Metrics receives run counters
type Metrics interface {
	RecordOutcome(category, outcome string)
	RecordFailure(category, errorType string)
	RecordRows(category string, n int)
	RecordTruncated(category string)
	SetRemaining(category string, n int)
	RecordLatency(category string, seconds float64)
}

// Progress is told about every identifier as it is handled
type Progress interface {
	Start(category models.Category, total int)
	Handled(category models.Category, ticker string, outcome models.Outcome)
}

type nopMetrics struct{}

func (nopMetrics) RecordOutcome(string, string)  {}
func (nopMetrics) RecordFailure(string, string)  {}
func (nopMetrics) RecordRows(string, int)        {}
func (nopMetrics) RecordTruncated(string)        {}
func (nopMetrics) SetRemaining(string, int)      {}
func (nopMetrics) RecordLatency(string, float64) {}

type nopProgress struct{}

func (nopProgress) Start(models.Category, int)                      {}
func (nopProgress) Handled(models.Category, string, models.Outcome) {}