package polygon

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	errs "github.com/nateesh/polygon-options-agg/pkg/errors"
	"github.com/nateesh/polygon-options-agg/pkg/logger"
	"github.com/nateesh/polygon-options-agg/pkg/models"
	"github.com/nateesh/polygon-options-agg/pkg/ratelimit"
)

// Client talks to the Polygon REST API. Each call issues exactly one
// request per page and never retries.
type Client struct {
	http    *resty.Client
	limiter ratelimit.Limiter
	logger  logger.Logger
}

// NewClient creates a new API client authenticating with a bearer token
func NewClient(baseURL, apiKey string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "polyagg/1.0")

	return &Client{http: rc, limiter: ratelimit.Unlimited{}, logger: log}
}

// WithLimiter paces every request, including pagination, through l
func (c *Client) WithLimiter(l ratelimit.Limiter) *Client {
	if l != nil {
		c.limiter = l
	}
	return c
}

// get performs one GET and decodes a JSON body into target. Failures come
// back as *errors.Error, except cancellation which is returned as the
// context's own error.
func (c *Client) get(ctx context.Context, op string, req *resty.Request, url string, target interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	resp, err := req.SetContext(ctx).Get(url)
	duration := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"op":       op,
			"error":    err.Error(),
			"duration": duration,
		})
		return errs.Wrap(errs.ErrorTypeNetwork, op, err)
	}

	logger.LogRequest(c.logger, http.MethodGet, resp.Request.URL, resp.StatusCode(), duration)

	if err := checkResponseStatus(op, resp); err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body(), target); err != nil {
		preview := string(resp.Body())
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"op":           op,
			"status":       resp.StatusCode(),
			"body_preview": preview,
		})
		return errs.Wrap(errs.ErrorTypeParsing, op, err).WithCode(resp.StatusCode())
	}
	return nil
}

// checkResponseStatus classifies non-2xx responses
func checkResponseStatus(op string, resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}

	message := http.StatusText(code)
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(resp.Body(), &body) == nil {
		if body.Error != "" {
			message = body.Error
		} else if body.Message != "" {
			message = body.Message
		}
	}

	return errs.New(errs.TypeFromStatusCode(code), op, message).WithCode(code)
}

// FetchAggregates requests the bars of one contract in a single bounded
// call. No pages beyond the first are followed; Truncated reports whether
// the result was capped. An empty result is an error.
func (c *Client) FetchAggregates(ctx context.Context, ticker string, q AggregatesQuery) (*Aggregates, error) {
	const op = "fetch aggregates"

	req := c.http.R().
		SetPathParams(aggregatesPathParams(ticker, q)).
		SetQueryParams(aggregatesQueryParams(q))

	var body AggregatesResponse
	if err := c.get(ctx, op, req, AggregatesEndpoint, &body); err != nil {
		if e, ok := err.(*errs.Error); ok {
			return nil, e.WithTicker(ticker)
		}
		return nil, err
	}

	if body.Status == "ERROR" {
		return nil, errs.New(errs.ErrorTypeUnknown, op, body.Error).WithTicker(ticker)
	}
	if len(body.Results) == 0 {
		return nil, errs.New(errs.ErrorTypeEmpty, op, "no aggregates returned").WithTicker(ticker)
	}

	truncated := body.NextURL != "" || (q.Limit > 0 && body.ResultsCount >= q.Limit)

	c.logger.DebugWithFields("fetched aggregates", map[string]interface{}{
		"ticker":    ticker,
		"bars":      len(body.Results),
		"truncated": truncated,
	})

	return &Aggregates{Ticker: ticker, Bars: body.Results, Truncated: truncated}, nil
}

// ListContracts pages through the contract listing, following next_url
// until it is exhausted. Every page is one paced request.
func (c *Client) ListContracts(ctx context.Context, q ContractsQuery) ([]models.ContractRecord, error) {
	const op = "list contracts"

	var contracts []models.ContractRecord
	url := ContractsEndpoint
	params := contractsQueryParams(q)

	for page := 1; url != ""; page++ {
		req := c.http.R()
		if params != nil {
			req.SetQueryParams(params)
			// next_url already carries the filters and the cursor
			params = nil
		}

		var body ContractsResponse
		if err := c.get(ctx, op, req, url, &body); err != nil {
			return contracts, err
		}

		contracts = append(contracts, body.Results...)
		c.logger.DebugWithFields("fetched contracts page", map[string]interface{}{
			"page":       page,
			"contracts":  len(body.Results),
			"underlying": q.Underlying,
			"type":       string(q.ContractType),
		})
		url = body.NextURL
	}

	return contracts, nil
}
