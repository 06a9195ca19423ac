package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nateesh/polygon-options-agg/pkg/contracts"
	"github.com/nateesh/polygon-options-agg/pkg/models"
	"github.com/nateesh/polygon-options-agg/pkg/polygon"
	"github.com/nateesh/polygon-options-agg/pkg/ratelimit"
)

var contractsCategory string

var contractsFlagNames = []string{
	"api-key", "ticker", "expired", "expiration-gte", "expiration-lte",
	"contracts-dir", "requests-per-minute",
}

var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "Export the contract listing of an underlying",
	Long: `List every options contract of the underlying that matches the expiration
filters and write one CSV per category:

  <contracts_dir>/<TICKER>_contracts_<category>_<YYYY-MM-DD>.csv

The files can be used unchanged as the call and put inventories of 'fetch'.`,
	Example: `  # Expired SPY contracts of 2022
  polyagg contracts --ticker SPY --expiration-gte 2022-01-01 --expiration-lte 2023-01-01

  # Only puts, active contracts
  polyagg contracts --category put --expired=false`,
	Args: cobra.NoArgs,
	RunE: runContracts,
}

func init() {
	rootCmd.AddCommand(contractsCmd)

	f := contractsCmd.Flags()
	f.String("api-key", "", "market-data API key")
	f.String("ticker", "", "underlying ticker")
	f.Bool("expired", true, "list expired contracts")
	f.String("expiration-gte", "", "earliest expiration date, YYYY-MM-DD")
	f.String("expiration-lte", "", "latest expiration date, YYYY-MM-DD")
	f.String("contracts-dir", "", "directory the listings are written to")
	f.Int("requests-per-minute", 0, "request pace, 0 for unlimited")
	f.StringVar(&contractsCategory, "category", "all", "call, put or all")
}

func runContracts(cmd *cobra.Command, args []string) error {
	var only models.Category
	if contractsCategory != "all" {
		cat, err := models.ParseCategory(contractsCategory)
		if err != nil {
			return err
		}
		only = cat
	}

	cfg, err := loadConfig(changedFlags(cmd, contractsFlagNames...))
	if err != nil {
		return err
	}
	log, err := setupLogger(cfg)
	if err != nil {
		return err
	}

	printer := newPrinter()
	printer.Logo()

	key, _, err := resolveAPIKey(cfg)
	if err != nil {
		return err
	}

	limiter, err := ratelimit.New(cfg.RateLimit.Strategy, cfg.RateLimit.RequestsPerMinute)
	if err != nil {
		return err
	}
	client := polygon.NewClient(cfg.API.BaseURL, key, cfg.API.Timeout, log).WithLimiter(limiter)

	exporter, err := contracts.NewExporter(client, cfg.Contracts.OutputDir, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	base := contracts.QueryFromConfig(cfg)
	var results []contracts.Result
	if only == "" {
		results, err = exporter.ExportAll(ctx, base)
	} else {
		base.ContractType = only
		var r *contracts.Result
		if r, err = exporter.Export(ctx, base); err == nil {
			results = append(results, *r)
		}
	}
	if err != nil {
		return err
	}

	for _, r := range results {
		printer.Info(string(r.Category), fmt.Sprintf("%d contracts -> %s", r.Contracts, r.Path))
	}
	printer.Success("[EXPORT COMPLETE]")
	return nil
}
