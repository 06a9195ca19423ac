package polygon

import "github.com/nateesh/polygon-options-agg/pkg/models"

// Bar is one aggregate as returned by the aggregates endpoint
type Bar struct {
	Timestamp    int64   `json:"t"` // Unix milliseconds, start of the window
	Open         float64 `json:"o"`
	High         float64 `json:"h"`
	Low          float64 `json:"l"`
	Close        float64 `json:"c"`
	Volume       float64 `json:"v"`
	VWAP         float64 `json:"vw"`
	Transactions int64   `json:"n"`
	OTC          bool    `json:"otc"`
}

// AggregatesResponse is the body of GET /v2/aggs/ticker/...
type AggregatesResponse struct {
	Ticker       string `json:"ticker"`
	Status       string `json:"status"`
	Adjusted     bool   `json:"adjusted"`
	QueryCount   int    `json:"queryCount"`
	ResultsCount int    `json:"resultsCount"`
	RequestID    string `json:"request_id"`
	Results      []Bar  `json:"results"`
	NextURL      string `json:"next_url"`
	Error        string `json:"error"`
	Message      string `json:"message"`
}

// Aggregates is the outcome of a single bounded aggregates request
type Aggregates struct {
	Ticker string
	Bars   []Bar
	// Truncated is set when the API signalled that more bars exist
	// beyond the requested limit.
	Truncated bool
}

// ContractsResponse is one page of GET /v3/reference/options/contracts
type ContractsResponse struct {
	Status    string                  `json:"status"`
	RequestID string                  `json:"request_id"`
	Results   []models.ContractRecord `json:"results"`
	NextURL   string                  `json:"next_url"`
	Error     string                  `json:"error"`
	Message   string                  `json:"message"`
}

// AggregatesQuery is the fixed query shape applied to every contract
type AggregatesQuery struct {
	Multiplier int
	Timespan   string
	From       string
	To         string
	Limit      int
}

// ContractsQuery filters the contract listing
type ContractsQuery struct {
	Underlying    string
	ContractType  models.Category
	Expired       bool
	ExpirationGTE string
	ExpirationLTE string
	Limit         int
}
