package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nateesh/polygon-options-agg/pkg/models"
)

// DateLayout is the calendar-date format used for every date setting
const DateLayout = "2006-01-02"

// Config holds all configuration options for polyagg
type Config struct {
	API        APIConfig        `yaml:"api" json:"api"`
	Underlying UnderlyingConfig `yaml:"underlying" json:"underlying"`
	Aggregates AggregatesConfig `yaml:"aggregates" json:"aggregates"`
	Contracts  ContractsConfig  `yaml:"contracts" json:"contracts"`
	Inventory  InventoryConfig  `yaml:"inventory" json:"inventory"`
	Output     OutputConfig     `yaml:"output" json:"output"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" json:"rate_limit"`
	Fetch      FetchConfig      `yaml:"fetch" json:"fetch"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// APIConfig describes how to reach the market-data API
type APIConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url" default:"https://api.polygon.io" validate:"required,url"`
	Key     string        `yaml:"key,omitempty" json:"-"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" default:"30s" validate:"gt=0"`
}

type UnderlyingConfig struct {
	Ticker string `yaml:"ticker" json:"ticker" default:"SPY" validate:"required"`
}

// AggregatesConfig is the fixed aggregate query applied to every identifier
type AggregatesConfig struct {
	Multiplier int    `yaml:"multiplier" json:"multiplier" default:"15" validate:"gt=0"`
	Timespan   string `yaml:"timespan" json:"timespan" default:"minute" validate:"oneof=second minute hour day week month quarter year"`
	From       string `yaml:"from" json:"from" default:"2020-01-01" validate:"datetime=2006-01-02"`
	To         string `yaml:"to" json:"to" default:"2100-01-01" validate:"datetime=2006-01-02"`
	Limit      int    `yaml:"limit" json:"limit" default:"1000" validate:"gt=0,lte=50000"`
}

// ContractsConfig drives the contract listing export
type ContractsConfig struct {
	Expired       bool   `yaml:"expired" json:"expired" default:"true"`
	ExpirationGTE string `yaml:"expiration_gte" json:"expiration_gte" default:"2020-01-01" validate:"datetime=2006-01-02"`
	ExpirationLTE string `yaml:"expiration_lte" json:"expiration_lte" default:"2024-01-01" validate:"datetime=2006-01-02"`
	OutputDir     string `yaml:"output_dir" json:"output_dir" default:"contract_data" validate:"required"`
	Limit         int    `yaml:"limit" json:"limit" default:"1000" validate:"gt=0,lte=1000"`
}

// InventoryConfig points at the contract listings used as the inventory
type InventoryConfig struct {
	CallPath string `yaml:"call_path" json:"call_path" default:"contract_data/SPY_contracts_call_2022-11-04.csv" validate:"required"`
	PutPath  string `yaml:"put_path" json:"put_path" default:"contract_data/SPY_contracts_put_2022-11-04.csv" validate:"required"`
}

type OutputConfig struct {
	WorkDir string `yaml:"work_dir" json:"work_dir" default:"options_data_2022_11_10" validate:"required"`
}

// RateLimitConfig paces requests; it never retries
type RateLimitConfig struct {
	RequestsPerMinute int    `yaml:"requests_per_minute" json:"requests_per_minute" default:"5" validate:"gte=0"`
	Strategy          string `yaml:"strategy" json:"strategy" default:"token_bucket" validate:"oneof=token_bucket sliding_window none"`
}

type FetchConfig struct {
	FailOnTruncation bool `yaml:"fail_on_truncation" json:"fail_on_truncation"`
}

type CheckpointConfig struct {
	SeparateTransient bool `yaml:"separate_transient" json:"separate_transient"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile" json:"textfile"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" default:"info" validate:"oneof=debug info warn warning error"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config populated from the default struct tags
func DefaultConfig() *Config {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		panic(fmt.Sprintf("invalid default config tags: %v", err))
	}
	return c
}

// LoadFromEnv overrides settings from POLYAGG_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}

	setString("POLYAGG_API_KEY", &c.API.Key)
	setString("POLYAGG_BASE_URL", &c.API.BaseURL)
	setString("POLYAGG_TICKER", &c.Underlying.Ticker)
	setInt("POLYAGG_MULTIPLIER", &c.Aggregates.Multiplier)
	setString("POLYAGG_TIMESPAN", &c.Aggregates.Timespan)
	setString("POLYAGG_CALL_INVENTORY", &c.Inventory.CallPath)
	setString("POLYAGG_PUT_INVENTORY", &c.Inventory.PutPath)
	setString("POLYAGG_WORK_DIR", &c.Output.WorkDir)
	setInt("POLYAGG_REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	setBool("POLYAGG_SEPARATE_TRANSIENT", &c.Checkpoint.SeparateTransient)
	setBool("POLYAGG_FAIL_ON_TRUNCATION", &c.Fetch.FailOnTruncation)
	setString("POLYAGG_METRICS_TEXTFILE", &c.Metrics.Textfile)
	setString("POLYAGG_LOG_LEVEL", &c.Logging.Level)
	setString("POLYAGG_LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the default locations and is not an error when nothing is found.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"polyagg.yaml",
		".polyagg.yaml",
		".polyagg.yml",
		filepath.Join(home, ".config", "polyagg", "config.yaml"),
		filepath.Join(home, ".polyagg.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

var validate = validator.New()

// Validate checks field constraints and the relationships between fields,
// reporting every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = append(errs, errors.New(fieldErrorMessage(fe)))
		}
	}

	if err := checkDateOrder("aggregates.from", c.Aggregates.From, "aggregates.to", c.Aggregates.To); err != nil {
		errs = append(errs, err)
	}
	if err := checkDateOrder("contracts.expiration_gte", c.Contracts.ExpirationGTE, "contracts.expiration_lte", c.Contracts.ExpirationLTE); err != nil {
		errs = append(errs, err)
	}
	if c.Inventory.CallPath == c.Inventory.PutPath && c.Inventory.CallPath != "" {
		errs = append(errs, errors.New("inventory.call_path and inventory.put_path must differ"))
	}

	return errors.Join(errs...)
}

func checkDateOrder(fromName, from, toName, to string) error {
	start, err1 := time.Parse(DateLayout, from)
	end, err2 := time.Parse(DateLayout, to)
	if err1 != nil || err2 != nil {
		// already reported by the datetime tag
		return nil
	}
	if !start.Before(end) {
		return fmt.Errorf("%s (%s) must be before %s (%s)", fromName, from, toName, to)
	}
	return nil
}

func fieldErrorMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return fmt.Sprintf("%s must be a date formatted as %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// Save writes the configuration as YAML. The API key is never persisted.
func (c *Config) Save(path string) error {
	cp := *c
	cp.API.Key = ""

	data, err := yaml.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags applies flag values that were explicitly set
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["api-key"].(string); ok && v != "" {
		c.API.Key = v
	}
	if v, ok := flags["ticker"].(string); ok && v != "" {
		c.Underlying.Ticker = v
	}
	if v, ok := flags["multiplier"].(int); ok && v > 0 {
		c.Aggregates.Multiplier = v
	}
	if v, ok := flags["timespan"].(string); ok && v != "" {
		c.Aggregates.Timespan = v
	}
	if v, ok := flags["from"].(string); ok && v != "" {
		c.Aggregates.From = v
	}
	if v, ok := flags["to"].(string); ok && v != "" {
		c.Aggregates.To = v
	}
	if v, ok := flags["call-inventory"].(string); ok && v != "" {
		c.Inventory.CallPath = v
	}
	if v, ok := flags["put-inventory"].(string); ok && v != "" {
		c.Inventory.PutPath = v
	}
	if v, ok := flags["work-dir"].(string); ok && v != "" {
		c.Output.WorkDir = v
	}
	if v, ok := flags["contracts-dir"].(string); ok && v != "" {
		c.Contracts.OutputDir = v
	}
	if v, ok := flags["expired"].(bool); ok {
		c.Contracts.Expired = v
	}
	if v, ok := flags["expiration-gte"].(string); ok && v != "" {
		c.Contracts.ExpirationGTE = v
	}
	if v, ok := flags["expiration-lte"].(string); ok && v != "" {
		c.Contracts.ExpirationLTE = v
	}
	if v, ok := flags["requests-per-minute"].(int); ok && v >= 0 {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["separate-transient"].(bool); ok {
		c.Checkpoint.SeparateTransient = v
	}
	if v, ok := flags["fail-on-truncation"].(bool); ok {
		c.Fetch.FailOnTruncation = v
	}
	if v, ok := flags["metrics-textfile"].(string); ok && v != "" {
		c.Metrics.Textfile = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
}

// Load builds the configuration from every source.
// Precedence: flags > environment (including .env) > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".polyagg.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// RunConfig is the immutable view of the configuration handed to components
type RunConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	Underlying string
	Multiplier int
	Timespan   string
	From       string
	To         string
	Limit      int

	CallInventory string
	PutInventory  string
	WorkDir       string

	RequestsPerMinute int
	RateStrategy      string

	FailOnTruncation  bool
	SeparateTransient bool

	MetricsTextfile string
}

// RunConfig snapshots the configuration by value
func (c *Config) RunConfig() RunConfig {
	return RunConfig{
		BaseURL:           strings.TrimRight(c.API.BaseURL, "/"),
		APIKey:            c.API.Key,
		Timeout:           c.API.Timeout,
		Underlying:        strings.ToUpper(c.Underlying.Ticker),
		Multiplier:        c.Aggregates.Multiplier,
		Timespan:          c.Aggregates.Timespan,
		From:              c.Aggregates.From,
		To:                c.Aggregates.To,
		Limit:             c.Aggregates.Limit,
		CallInventory:     c.Inventory.CallPath,
		PutInventory:      c.Inventory.PutPath,
		WorkDir:           c.Output.WorkDir,
		RequestsPerMinute: c.RateLimit.RequestsPerMinute,
		RateStrategy:      c.RateLimit.Strategy,
		FailOnTruncation:  c.Fetch.FailOnTruncation,
		SeparateTransient: c.Checkpoint.SeparateTransient,
		MetricsTextfile:   c.Metrics.Textfile,
	}
}

// InventoryPath returns the listing file for a category
func (r RunConfig) InventoryPath(category models.Category) string {
	if category == models.CategoryPut {
		return r.PutInventory
	}
	return r.CallInventory
}

// OutputPath returns the store file rows of a category are appended to
func (r RunConfig) OutputPath(category models.Category) string {
	name := fmt.Sprintf("%s_%s_%s_%dx.csv", r.Underlying, category, r.Timespan, r.Multiplier)
	return filepath.Join(r.WorkDir, name)
}
