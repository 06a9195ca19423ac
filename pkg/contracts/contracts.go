// Package contracts exports the contract listing of an underlying to CSV
// files that can be used directly as fetch inventories.
package contracts

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nateesh/polygon-options-agg/pkg/config"
	"github.com/nateesh/polygon-options-agg/pkg/logger"
	"github.com/nateesh/polygon-options-agg/pkg/models"
	"github.com/nateesh/polygon-options-agg/pkg/polygon"
	"github.com/nateesh/polygon-options-agg/pkg/retry"
	"github.com/nateesh/polygon-options-agg/pkg/storage"
)

// Lister pages through the contract listing
type Lister interface {
	ListContracts(ctx context.Context, q polygon.ContractsQuery) ([]models.ContractRecord, error)
}

// Result describes one written export
type Result struct {
	Category  models.Category
	Path      string
	Contracts int
}

type Exporter struct {
	client Lister
	store  *storage.Manager
	retry  *retry.Config
	logger logger.Logger
	now    func() time.Time
}

// NewExporter creates the output directory up front. A listing that fails
// transiently is retried from the first page.
func NewExporter(client Lister, dir string, log logger.Logger) (*Exporter, error) {
	store, err := storage.NewManager(dir)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetLogger()
	}
	rc := retry.DefaultConfig()
	rc.Logger = log
	return &Exporter{client: client, store: store, retry: rc, logger: log, now: time.Now}, nil
}

// WithRetry replaces the retry policy of the listing
func (e *Exporter) WithRetry(cfg *retry.Config) *Exporter {
	if cfg != nil {
		e.retry = cfg
	}
	return e
}

// FileName is <TICKER>_contracts_<category>_<YYYY-MM-DD>.csv
func FileName(underlying string, category models.Category, day time.Time) string {
	return fmt.Sprintf("%s_contracts_%s_%s.csv", strings.ToUpper(underlying), category, day.Format(config.DateLayout))
}

// Header is the export header; the first column is the row index
func Header() []string {
	return append([]string{""}, models.ContractHeader...)
}

// Export lists every contract matching q and writes them in one file.
// The file is replaced atomically; nothing is written if listing fails.
func (e *Exporter) Export(ctx context.Context, q polygon.ContractsQuery) (*Result, error) {
	contracts, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]models.ContractRecord, error) {
		return e.client.ListContracts(ctx, q)
	}, e.retry)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, len(contracts))
	for i, c := range contracts {
		rows[i] = append([]string{strconv.Itoa(i)}, c.Record()...)
	}

	path := filepath.Join(e.store.Dir(), FileName(q.Underlying, q.ContractType, e.now()))
	if err := e.store.WriteTable(path, Header(), rows); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"underlying": q.Underlying,
		"category":   string(q.ContractType),
		"contracts":  len(contracts),
		"path":       path,
	}
	if len(contracts) == 0 {
		e.logger.WarnWithFields("Contract listing is empty", fields)
	} else {
		e.logger.InfoWithFields("Contract listing exported", fields)
	}

	return &Result{Category: q.ContractType, Path: path, Contracts: len(contracts)}, nil
}

// ExportAll exports calls then puts with the same filters
func (e *Exporter) ExportAll(ctx context.Context, base polygon.ContractsQuery) ([]Result, error) {
	var results []Result
	for _, category := range models.Categories() {
		q := base
		q.ContractType = category
		r, err := e.Export(ctx, q)
		if err != nil {
			return results, fmt.Errorf("export %s contracts: %w", category, err)
		}
		results = append(results, *r)
	}
	return results, nil
}

// QueryFromConfig builds the listing filters from configuration
func QueryFromConfig(cfg *config.Config) polygon.ContractsQuery {
	return polygon.ContractsQuery{
		Underlying:    strings.ToUpper(cfg.Underlying.Ticker),
		Expired:       cfg.Contracts.Expired,
		ExpirationGTE: cfg.Contracts.ExpirationGTE,
		ExpirationLTE: cfg.Contracts.ExpirationLTE,
		Limit:         cfg.Contracts.Limit,
	}
}
