package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nateesh/polygon-options-agg/pkg/checkpoint"
	"github.com/nateesh/polygon-options-agg/pkg/config"
	errs "github.com/nateesh/polygon-options-agg/pkg/errors"
	"github.com/nateesh/polygon-options-agg/pkg/inventory"
	"github.com/nateesh/polygon-options-agg/pkg/logger"
	"github.com/nateesh/polygon-options-agg/pkg/metadata"
	"github.com/nateesh/polygon-options-agg/pkg/models"
	"github.com/nateesh/polygon-options-agg/pkg/polygon"
	"github.com/nateesh/polygon-options-agg/pkg/storage"
)

// progressEvery controls how often progress is logged within a category
const progressEvery = 25

// Fetcher works through the remaining identifiers of every category, one
// request at a time, recording each outcome before moving on.
type Fetcher struct {
	run      config.RunConfig
	client   AggregatesClient
	store    *storage.Manager
	records  *checkpoint.Manager
	journal  *checkpoint.Journal
	metrics  Metrics
	progress Progress
	logger   logger.Logger
	runID    string
	now      func() time.Time
}

// Option customises a Fetcher
type Option func(*Fetcher)

func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

func WithMetrics(m Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

func WithProgress(p Progress) Option {
	return func(f *Fetcher) { f.progress = p }
}

// WithRunID overrides the generated run identifier
func WithRunID(id string) Option {
	return func(f *Fetcher) { f.runID = id }
}

// New prepares a fetcher. The work directory is created here; failing to
// create it is fatal.
func New(run config.RunConfig, client AggregatesClient, opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		run:      run,
		client:   client,
		metrics:  nopMetrics{},
		progress: nopProgress{},
		logger:   logger.GetLogger(),
		runID:    uuid.NewString(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.WithField("run_id", f.runID)

	store, err := storage.NewManager(run.WorkDir)
	if err != nil {
		return nil, err
	}
	f.store = store
	f.records = checkpoint.NewManager(run.WorkDir, f.logger)
	f.journal = checkpoint.NewJournal(run.WorkDir, f.logger)
	return f, nil
}

// RunID identifies this run in logs and in the journal
func (f *Fetcher) RunID() string { return f.runID }

type plan struct {
	category  models.Category
	inventory *inventory.Inventory
	remaining []string
	previous  *metadata.OutputMetadata
}

// Run executes one pass over the remaining work. It returns a nil error on
// natural completion, however many identifiers failed. Fatal conditions
// (unreadable inventory, journal recovery or checkpoint I/O) and
// cancellation are returned as errors alongside the partial summary.
func (f *Fetcher) Run(ctx context.Context) (*Summary, error) {
	summary := newSummary(f.runID, f.now())

	logger.LogComponentStart(f.logger, "fetcher", map[string]interface{}{
		"work_dir":           f.run.WorkDir,
		"underlying":         f.run.Underlying,
		"multiplier":         f.run.Multiplier,
		"timespan":           f.run.Timespan,
		"separate_transient": f.run.SeparateTransient,
	})

	if _, err := checkpoint.Recover(f.journal, f.records, f.store); err != nil {
		return summary, fmt.Errorf("journal recovery failed: %w", err)
	}

	plans, err := f.plan(summary)
	if err != nil {
		return summary, err
	}

	for _, p := range plans {
		cs := summary.Categories[p.category]
		err := f.runCategory(ctx, p, cs)
		f.saveMetadata(p, cs)
		if err != nil {
			summary.finish(f.now())
			logger.LogComponentStop(f.logger, "fetcher", err.Error())
			return summary, err
		}
	}

	summary.finish(f.now())
	logger.LogComponentStop(f.logger, "fetcher", "completed")
	return summary, nil
}

// plan loads every inventory and checkpoint record once, before any request
func (f *Fetcher) plan(summary *Summary) ([]plan, error) {
	var plans []plan
	for _, category := range models.Categories() {
		inv, err := inventory.Load(f.run.InventoryPath(category), category)
		if err != nil {
			return nil, err
		}

		if f.run.SeparateTransient {
			if err := f.records.Reset(category, models.OutcomeTransient); err != nil {
				return nil, err
			}
		}

		succeeded, err := f.records.Load(category, models.OutcomeSucceeded)
		if err != nil {
			return nil, err
		}
		unavailable, err := f.records.Load(category, models.OutcomeUnavailable)
		if err != nil {
			return nil, err
		}

		previous, err := metadata.Load(f.run.OutputPath(category))
		if err != nil {
			f.logger.WithError(err).Warn("Ignoring unreadable output metadata")
			previous = nil
		}
		if previous != nil {
			if fields := metadata.FromRun(f.run, category).Mismatches(previous); len(fields) > 0 {
				f.logger.WarnWithFields("Output file was written with a different query", map[string]interface{}{
					"category": string(category),
					"output":   f.run.OutputPath(category),
					"fields":   fields,
				})
			}
		}

		remaining := inv.Remaining(succeeded, unavailable)
		cs := summary.Categories[category]
		cs.Inventory = inv.Len()
		cs.Remaining = len(remaining)
		f.metrics.SetRemaining(string(category), len(remaining))

		f.logger.InfoWithFields("Work planned", map[string]interface{}{
			"category":    string(category),
			"inventory":   inv.Len(),
			"succeeded":   succeeded.Len(),
			"unavailable": unavailable.Len(),
			"remaining":   len(remaining),
		})

		plans = append(plans, plan{category: category, inventory: inv, remaining: remaining, previous: previous})
	}
	return plans, nil
}

// saveMetadata updates the output sidecar once a category has appended rows
func (f *Fetcher) saveMetadata(p plan, cs *CategorySummary) {
	if cs.Succeeded == 0 {
		return
	}
	output := f.run.OutputPath(p.category)
	meta := metadata.FromRun(f.run, p.category)
	meta.Record(p.previous, f.runID, cs.Rows, f.now())
	if err := meta.Save(output); err != nil {
		f.logger.WithError(err).Warn("Failed to save output metadata")
	}
}

func (f *Fetcher) runCategory(ctx context.Context, p plan, cs *CategorySummary) error {
	total := len(p.remaining)
	f.progress.Start(p.category, total)

	for i, ticker := range p.remaining {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := f.processOne(ctx, p.category, ticker, cs); err != nil {
			return err
		}

		if done := i + 1; done%progressEvery == 0 || done == total {
			logger.LogRunProgress(f.logger, string(p.category), done, total)
		}
	}
	return nil
}

// processOne fetches one identifier and records its outcome. Only fatal
// errors and cancellation are returned.
func (f *Fetcher) processOne(ctx context.Context, category models.Category, ticker string, cs *CategorySummary) error {
	start := f.now()
	aggs, err := f.client.FetchAggregates(ctx, ticker, polygon.AggregatesQuery{
		Multiplier: f.run.Multiplier,
		Timespan:   f.run.Timespan,
		From:       f.run.From,
		To:         f.run.To,
		Limit:      f.run.Limit,
	})
	f.metrics.RecordLatency(string(category), f.now().Sub(start).Seconds())

	if err != nil && ctx.Err() != nil {
		f.logger.WithField("ticker", ticker).Info("Fetch aborted by cancellation, identifier stays remaining")
		return ctx.Err()
	}

	if err == nil && aggs.Truncated {
		cs.Truncated++
		f.metrics.RecordTruncated(string(category))
		f.logger.WarnWithFields("Aggregates hit the request limit, result may be incomplete", map[string]interface{}{
			"category": string(category),
			"ticker":   ticker,
			"bars":     len(aggs.Bars),
			"limit":    f.run.Limit,
		})
		if f.run.FailOnTruncation {
			err = errs.New(errs.ErrorTypeTruncated, "fetch aggregates", "result truncated at request limit").WithTicker(ticker)
		}
	}

	if err == nil {
		rows := Transform(ticker, category, aggs.Bars)
		err = f.commit(category, ticker, rows)
		var fe *fatalError
		if errors.As(err, &fe) {
			return fe.err
		}
		if err == nil {
			cs.Succeeded++
			cs.Rows += len(rows)
			f.metrics.RecordRows(string(category), len(rows))
			f.metrics.RecordOutcome(string(category), string(models.OutcomeSucceeded))
			f.progress.Handled(category, ticker, models.OutcomeSucceeded)
			logger.LogFetch(f.logger, string(category), ticker, string(models.OutcomeSucceeded), len(rows), nil)
			return nil
		}
	}

	return f.recordFailure(category, ticker, err, cs)
}

// fatalError marks a commit failure that must stop the run
type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func fatal(err error) error { return &fatalError{err: err} }

// commit appends rows and checkpoints the ticker. A plain error is a
// per-identifier failure that left nothing on disk; a *fatalError means
// state could not be kept consistent.
func (f *Fetcher) commit(category models.Category, ticker string, rows []models.ObservationRow) error {
	output := f.run.OutputPath(category)

	offset, err := f.store.Size(output)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeIO, "stat output", err).WithTicker(ticker)
	}
	if err := f.journal.Begin(checkpoint.Entry{
		RunID:     f.runID,
		Ticker:    ticker,
		Category:  category,
		Output:    output,
		Offset:    offset,
		StartedAt: f.now().UTC(),
	}); err != nil {
		// nothing has been appended yet
		return errs.Wrap(errs.ErrorTypeIO, "journal pending append", err).WithTicker(ticker)
	}

	records := make([][]string, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}

	if _, err := f.store.AppendRows(output, models.ObservationHeader, records); err != nil {
		if terr := f.store.Truncate(output, offset); terr != nil {
			return fatal(fmt.Errorf("failed to roll back partial append: %w", terr))
		}
		if cerr := f.journal.Clear(); cerr != nil {
			return fatal(cerr)
		}
		var apiErr *errs.Error
		if errors.As(err, &apiErr) {
			return apiErr.WithTicker(ticker)
		}
		return errs.Wrap(errs.ErrorTypeIO, "append rows", err).WithTicker(ticker)
	}

	if err := f.records.Append(category, models.OutcomeSucceeded, ticker); err != nil {
		// rows without a checkpoint would be duplicated next run
		if terr := f.store.Truncate(output, offset); terr == nil {
			_ = f.journal.Clear()
		}
		return fatal(fmt.Errorf("failed to checkpoint %s: %w", ticker, err))
	}

	if err := f.journal.Clear(); err != nil {
		f.logger.WithError(err).Warn("Failed to clear journal after commit")
	}
	return nil
}

func (f *Fetcher) recordFailure(category models.Category, ticker string, cause error, cs *CategorySummary) error {
	errorType := errs.TypeOf(cause)
	outcome := models.OutcomeUnavailable
	if f.run.SeparateTransient && errs.IsTransient(errorType) {
		outcome = models.OutcomeTransient
	}

	if err := f.records.Append(category, outcome, ticker); err != nil {
		return fmt.Errorf("failed to checkpoint %s: %w", ticker, err)
	}

	switch outcome {
	case models.OutcomeTransient:
		cs.Transient++
	default:
		cs.Unavailable++
	}
	cs.countFailure(errorType)
	f.metrics.RecordOutcome(string(category), string(outcome))
	f.metrics.RecordFailure(string(category), string(errorType))
	f.progress.Handled(category, ticker, outcome)
	logger.LogFetch(f.logger, string(category), ticker, string(outcome), 0, cause)
	return nil
}

// Transform turns API bars into output rows. The millisecond timestamp
// becomes the row's Date and is not carried as its own column.
func Transform(ticker string, category models.Category, bars []polygon.Bar) []models.ObservationRow {
	rows := make([]models.ObservationRow, len(bars))
	for i, b := range bars {
		rows[i] = models.ObservationRow{
			Date:         time.Unix(0, b.Timestamp*int64(time.Millisecond)).UTC(),
			Open:         b.Open,
			High:         b.High,
			Low:          b.Low,
			Close:        b.Close,
			Volume:       b.Volume,
			VWAP:         b.VWAP,
			Transactions: b.Transactions,
			OTC:          b.OTC,
			Contract:     ticker,
			ContractType: category,
		}
	}
	return rows
}
