package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nateesh/polygon-options-agg/pkg/auth"
	"github.com/nateesh/polygon-options-agg/pkg/config"
	"github.com/nateesh/polygon-options-agg/pkg/fetcher"
	"github.com/nateesh/polygon-options-agg/pkg/logger"
	"github.com/nateesh/polygon-options-agg/pkg/metrics"
	"github.com/nateesh/polygon-options-agg/pkg/polygon"
	"github.com/nateesh/polygon-options-agg/pkg/ratelimit"
	"github.com/nateesh/polygon-options-agg/pkg/ui"
	"github.com/nateesh/polygon-options-agg/pkg/ui/tui"
)

var (
	useTUI bool
	notify bool
)

var fetchFlagNames = []string{
	"api-key", "ticker", "multiplier", "timespan", "from", "to",
	"call-inventory", "put-inventory", "work-dir", "requests-per-minute",
	"separate-transient", "fail-on-truncation", "metrics-textfile",
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch aggregates for every remaining contract",
	Long: `Fetch aggregates for every contract in the call and put inventories that
has no checkpoint record yet. Calls are processed before puts, one request at a
time, at the configured pace.

Each contract ends in one of:
  <work_dir>/<category>_requested.txt              rows appended
  <work_dir>/<category>_requested_not_working.txt  fetch failed, not retried
  <work_dir>/<category>_requested_transient.txt    with --separate-transient,
                                                   retried on the next run

Interrupting the run (Ctrl+C) leaves the contract in flight unrecorded, so it
is fetched again next time.`,
	Example: `  # Fetch with defaults from polyagg.yaml
  polyagg fetch

  # Hourly bars for another underlying, separate work directory
  polyagg fetch --ticker QQQ --timespan hour --multiplier 1 --work-dir qqq_hourly

  # Keep network and rate-limit failures eligible for the next run
  polyagg fetch --separate-transient

  # Full-screen dashboard
  polyagg fetch --tui`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	f := fetchCmd.Flags()
	f.String("api-key", "", "market-data API key")
	f.String("ticker", "", "underlying ticker")
	f.Int("multiplier", 0, "aggregate window multiplier")
	f.String("timespan", "", "aggregate window unit (minute, hour, day, ...)")
	f.String("from", "", "first date, YYYY-MM-DD")
	f.String("to", "", "last date, YYYY-MM-DD")
	f.String("call-inventory", "", "CSV listing the call contracts")
	f.String("put-inventory", "", "CSV listing the put contracts")
	f.String("work-dir", "", "directory for output and checkpoint records")
	f.Int("requests-per-minute", 0, "request pace, 0 for unlimited")
	f.Bool("separate-transient", false, "record network, rate-limit and server failures apart and retry them next run")
	f.Bool("fail-on-truncation", false, "treat results cut off at the request limit as failures")
	f.String("metrics-textfile", "", "write Prometheus metrics to this file when the run ends")
	f.BoolVar(&useTUI, "tui", false, "full-screen dashboard")
	f.BoolVar(&notify, "notify", false, "desktop notification when the run ends")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(changedFlags(cmd, fetchFlagNames...))
	if err != nil {
		return err
	}
	if useTUI && cfg.Logging.File == "" {
		// console logs would tear the dashboard
		cfg.Logging.Level = "disabled"
	}
	log, err := setupLogger(cfg)
	if err != nil {
		return err
	}

	printer := newPrinter()
	if !useTUI {
		printer.Logo()
	}

	key, source, err := resolveAPIKey(cfg)
	if err != nil {
		return fmt.Errorf("%w: use --api-key, %s, 'polyagg auth login' or %s", err, auth.APIKeyEnv, auth.DefaultCredsFile)
	}
	log.WithField("source", source).Debug("API key resolved")

	run := cfg.RunConfig()
	run.APIKey = key

	limiter, err := ratelimit.New(run.RateStrategy, run.RequestsPerMinute)
	if err != nil {
		return err
	}
	client := polygon.NewClient(run.BaseURL, run.APIKey, run.Timeout, log).WithLimiter(limiter)
	recorder := metrics.New()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !useTUI {
		printer.Info("Underlying", run.Underlying)
		printer.Info("Window", fmt.Sprintf("%dx %s, %s to %s", run.Multiplier, run.Timespan, run.From, run.To))
		printer.Info("Work directory", run.WorkDir)
		printer.Info("Pace", paceDescription(run))
	}

	opts := []fetcher.Option{fetcher.WithLogger(log), fetcher.WithMetrics(recorder)}
	var dashboard *tui.TUI
	var tracker *ui.StatusTracker
	switch {
	case useTUI:
		dashboard = tui.NewTUI(stop)
		opts = append(opts, fetcher.WithProgress(dashboard))
	case !quiet:
		tracker = ui.NewStatusTracker(os.Stdout)
		opts = append(opts, fetcher.WithProgress(tracker))
	}

	f, err := fetcher.New(run, client, opts...)
	if err != nil {
		return err
	}

	var summary *fetcher.Summary
	if dashboard != nil {
		summary, err = runWithDashboard(ctx, f, dashboard)
	} else {
		summary, err = f.Run(ctx)
	}
	if tracker != nil {
		tracker.Finish()
	}

	if run.MetricsTextfile != "" {
		if werr := writeMetrics(recorder, run.MetricsTextfile); werr != nil {
			log.WithError(werr).Warn("Failed to write metrics textfile")
		}
	}

	printer.Summary(summary)
	notifier := ui.NewNotifier(os.Stdout, notify)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			err = fmt.Errorf("interrupted, rerun to continue: %w", err)
		}
		log.WithError(err).Error("Fetch stopped")
		if notify {
			notifier.SendError("polyagg fetch stopped", err.Error())
		}
		return err
	}

	total := summary.Total()
	if notify {
		notifier.SendSuccess("polyagg fetch complete",
			fmt.Sprintf("%d succeeded, %d unavailable, %d transient", total.Succeeded, total.Unavailable, total.Transient))
	}
	printer.Success("[FETCH COMPLETE]")
	return nil
}

// runWithDashboard runs the fetch in the background while the dashboard owns
// the terminal. Quitting the dashboard cancels the fetch; after a clean
// finish the dashboard stays up until the user quits.
func runWithDashboard(ctx context.Context, f *fetcher.Fetcher, dashboard *tui.TUI) (*fetcher.Summary, error) {
	type result struct {
		summary *fetcher.Summary
		err     error
	}
	done := make(chan result, 1)

	go func() {
		summary, err := f.Run(ctx)
		dashboard.Done(err)
		if err != nil {
			dashboard.Stop()
		}
		done <- result{summary, err}
	}()

	if err := dashboard.Run(); err != nil {
		logger.GetLogger().WithError(err).Warn("Dashboard exited with error")
	}
	r := <-done
	return r.summary, r.err
}

func resolveAPIKey(cfg *config.Config) (string, string, error) {
	resolver := &auth.Resolver{
		CredsFile: auth.NewCredsFile(auth.DefaultCredsFile),
		Profile:   auth.DefaultProfile,
	}
	if dir, err := auth.ConfigDir(); err == nil {
		if manager, err := auth.NewManager(dir); err == nil {
			resolver.Manager = manager
		}
	}
	return resolver.Resolve(cfg.API.Key)
}

func writeMetrics(recorder *metrics.Recorder, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return recorder.WriteTextfile(path)
}

func paceDescription(run config.RunConfig) string {
	if run.RequestsPerMinute <= 0 || run.RateStrategy == "none" {
		return "unlimited"
	}
	return fmt.Sprintf("%d requests/minute (%s)", run.RequestsPerMinute, run.RateStrategy)
}
