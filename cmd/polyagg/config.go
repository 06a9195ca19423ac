package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nateesh/polygon-options-agg/pkg/auth"
	"github.com/nateesh/polygon-options-agg/pkg/config"
)

// defaultConfigPath is where config init writes when --config is not given
const defaultConfigPath = "polyagg.yaml"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage polyagg configuration files.

Configuration is merged from:
  - Command line flags (highest priority)
  - Environment variables (POLYAGG_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every default",
	Long: `Write a configuration file holding every option at its default value.

The file is created as 'polyagg.yaml' in the current directory unless another
path is given with --config. An existing file is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. The API key is masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Long: `Validate the merged configuration and check that both inventories can be
read and the work directory can be created.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = defaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s (remove it first to start over)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	printer := newPrinter()
	printer.Success("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set the underlying, window and inventories in the file")
	fmt.Println("2. Store your API key with 'polyagg auth login'")
	fmt.Println("3. Run 'polyagg config validate', then 'polyagg fetch'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	if display.API.Key != "" {
		display.API.Key = auth.MaskKey(display.API.Key)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	printer := newPrinter()
	printer.Highlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (POLYAGG_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched in default locations)")
	}
	fmt.Println("4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	var problems []error
	run := cfg.RunConfig()
	for _, path := range []string{run.CallInventory, run.PutInventory} {
		if _, err := os.Stat(path); err != nil {
			problems = append(problems, fmt.Errorf("inventory %s: %w", path, err))
		}
	}
	if err := os.MkdirAll(run.WorkDir, 0755); err != nil {
		problems = append(problems, fmt.Errorf("cannot create work directory: %w", err))
	}

	printer := newPrinter()
	if _, _, err := resolveAPIKey(cfg); err != nil {
		printer.Warning("No API key found", err)
	}

	if err := errors.Join(problems...); err != nil {
		return fmt.Errorf("configuration has errors:\n%w", err)
	}

	printer.Success("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Underlying: %s\n", run.Underlying)
	fmt.Printf("  Window: %dx %s, %s to %s\n", run.Multiplier, run.Timespan, run.From, run.To)
	fmt.Printf("  Work directory: %s\n", run.WorkDir)
	fmt.Printf("  Pace: %s\n", paceDescription(run))
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
