package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nateesh/polygon-options-agg/pkg/checkpoint"
	"github.com/nateesh/polygon-options-agg/pkg/config"
	"github.com/nateesh/polygon-options-agg/pkg/inventory"
	"github.com/nateesh/polygon-options-agg/pkg/logger"
	"github.com/nateesh/polygon-options-agg/pkg/models"
	"github.com/nateesh/polygon-options-agg/pkg/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how much of each inventory has been handled",
	Long: `Read the inventories and checkpoint records of the work directory and show,
per category, how many contracts succeeded, failed and are still remaining.
Nothing is fetched or modified.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	f := statusCmd.Flags()
	f.String("call-inventory", "", "CSV listing the call contracts")
	f.String("put-inventory", "", "CSV listing the put contracts")
	f.String("work-dir", "", "directory holding output and checkpoint records")
}

// categoryStatus is what status reports for one category
type categoryStatus struct {
	Category    models.Category
	Inventory   int
	Succeeded   int
	Unavailable int
	Transient   int
	Remaining   int
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(changedFlags(cmd, "call-inventory", "put-inventory", "work-dir"))
	if err != nil {
		return err
	}
	log, err := setupLogger(cfg)
	if err != nil {
		return err
	}

	run := cfg.RunConfig()
	rows, err := collectStatus(run, log)
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(os.Stdout, false)
	printer.Info("Work directory", run.WorkDir)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "CATEGORY\tINVENTORY\tSUCCEEDED\tUNAVAILABLE\tTRANSIENT\tREMAINING\t")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t\n",
			r.Category, r.Inventory, r.Succeeded, r.Unavailable, r.Transient, r.Remaining)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	entry, err := checkpoint.NewJournal(run.WorkDir, log).Load()
	if err != nil {
		return err
	}
	if entry != nil {
		printer.Warning(fmt.Sprintf("An append for %s (%s) was interrupted; the next fetch settles it", entry.Ticker, entry.Category))
	}
	return nil
}

// collectStatus reads every record without touching it. Transient tickers
// count as remaining because the next fetch retries them.
func collectStatus(run config.RunConfig, log logger.Logger) ([]categoryStatus, error) {
	records := checkpoint.NewManager(run.WorkDir, log)

	var rows []categoryStatus
	for _, category := range models.Categories() {
		inv, err := inventory.Load(run.InventoryPath(category), category)
		if err != nil {
			return nil, err
		}
		sets, err := records.LoadAll(category)
		if err != nil {
			return nil, fmt.Errorf("failed to read checkpoint records: %w", err)
		}

		succeeded := sets[models.OutcomeSucceeded]
		unavailable := sets[models.OutcomeUnavailable]
		rows = append(rows, categoryStatus{
			Category:    category,
			Inventory:   inv.Len(),
			Succeeded:   succeeded.Len(),
			Unavailable: unavailable.Len(),
			Transient:   sets[models.OutcomeTransient].Len(),
			Remaining:   len(inv.Remaining(succeeded, unavailable)),
		})
	}
	return rows, nil
}
