package polygon

import (
	"strconv"
)

const (
	// DefaultBaseURL is the production REST host
	DefaultBaseURL = "https://api.polygon.io"

	// AggregatesEndpoint returns bars for one ticker over a date range
	AggregatesEndpoint = "/v2/aggs/ticker/{ticker}/range/{multiplier}/{timespan}/{from}/{to}"

	// ContractsEndpoint lists options contracts
	ContractsEndpoint = "/v3/reference/options/contracts"

	// MaxContractsLimit is the largest page size the contracts endpoint accepts
	MaxContractsLimit = 1000
)

func aggregatesPathParams(ticker string, q AggregatesQuery) map[string]string {
	return map[string]string{
		"ticker":     ticker,
		"multiplier": strconv.Itoa(q.Multiplier),
		"timespan":   q.Timespan,
		"from":       q.From,
		"to":         q.To,
	}
}

func aggregatesQueryParams(q AggregatesQuery) map[string]string {
	return map[string]string{
		"adjusted": "true",
		"sort":     "asc",
		"limit":    strconv.Itoa(q.Limit),
	}
}

func contractsQueryParams(q ContractsQuery) map[string]string {
	limit := q.Limit
	if limit <= 0 || limit > MaxContractsLimit {
		limit = MaxContractsLimit
	}
	params := map[string]string{
		"underlying_ticker": q.Underlying,
		"expired":           strconv.FormatBool(q.Expired),
		"limit":             strconv.Itoa(limit),
		"order":             "asc",
		"sort":              "ticker",
	}
	if q.ContractType != "" {
		params["contract_type"] = string(q.ContractType)
	}
	if q.ExpirationGTE != "" {
		params["expiration_date.gte"] = q.ExpirationGTE
	}
	if q.ExpirationLTE != "" {
		params["expiration_date.lte"] = q.ExpirationLTE
	}
	return params
}
