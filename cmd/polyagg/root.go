package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nateesh/polygon-options-agg/pkg/config"
	"github.com/nateesh/polygon-options-agg/pkg/logger"
	"github.com/nateesh/polygon-options-agg/pkg/ui"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	configFile string
	logLevel   string
	logFile    string
	quiet      bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "polyagg",
	Short: "Resumable bulk fetcher for options contract aggregates",
	Long: `polyagg downloads historical price aggregates for every options contract
listed in a call and a put inventory, one request at a time, appending the bars
to one CSV per category.

Every contract ends up in exactly one checkpoint record, so an interrupted run
can simply be started again and continues with what is left.

  - Paced requests that respect the API's per-minute limit
  - Crash-safe appends: rows without a checkpoint are rolled back
  - Contract listing export to build the inventories
  - API key from flag, environment, config, keyring or creds.json`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			logLevel = "error"
		} else if verbose {
			logLevel = "debug"
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, ui.Red("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: ./polyagg.yaml or ~/.config/polyagg/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.SetVersionTemplate(`polyagg {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the global flags into flags and loads every source
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}
	return config.Load(configFile, flags)
}

// setupLogger installs the global logger for cfg and returns it
func setupLogger(cfg *config.Config) (logger.Logger, error) {
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.GetLogger(), nil
}

func newPrinter() *ui.Printer {
	return ui.NewPrinter(os.Stdout, quiet)
}

// changedFlags collects the flags the user actually set, keyed by name
func changedFlags(cmd *cobra.Command, names ...string) map[string]interface{} {
	out := make(map[string]interface{})
	for _, name := range names {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		switch f.Value.Type() {
		case "int":
			v, _ := cmd.Flags().GetInt(name)
			out[name] = v
		case "bool":
			v, _ := cmd.Flags().GetBool(name)
			out[name] = v
		default:
			out[name] = f.Value.String()
		}
	}
	return out
}
