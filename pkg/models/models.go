package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Category is the contract type an identifier belongs to
type Category string

const (
	CategoryCall Category = "call"
	CategoryPut  Category = "put"
)

// Categories returns every category in processing order
func Categories() []Category {
	return []Category{CategoryCall, CategoryPut}
}

// ParseCategory converts a string to a Category
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryCall:
		return CategoryCall, nil
	case CategoryPut:
		return CategoryPut, nil
	default:
		return "", fmt.Errorf("unknown category: %q", s)
	}
}

// Identifier names one fetchable options contract
type Identifier struct {
	Ticker   string
	Category Category
}

func (id Identifier) String() string {
	return fmt.Sprintf("%s/%s", id.Category, id.Ticker)
}

// Outcome is the terminal state of an identifier within a run
type Outcome string

const (
	OutcomeSucceeded   Outcome = "succeeded"
	OutcomeUnavailable Outcome = "unavailable"
	// OutcomeTransient is only recorded when transient failures are kept
	// apart from permanent ones; such identifiers stay in the remaining set.
	OutcomeTransient Outcome = "transient"
)

// Outcomes returns every outcome that has its own checkpoint record
func Outcomes() []Outcome {
	return []Outcome{OutcomeSucceeded, OutcomeUnavailable, OutcomeTransient}
}

// ObservationRow is one normalized aggregate bar for a contract
type ObservationRow struct {
	Date         time.Time
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
	VWAP         float64
	Transactions int64
	OTC          bool
	Contract     string
	ContractType Category
}

// ObservationHeader is the structural header of an output store file
var ObservationHeader = []string{
	"Date", "open", "high", "low", "close", "volume", "vwap", "transactions", "otc", "Contract", "Contract_type",
}

// DateLayout is how row time indexes are rendered
const DateLayout = "2006-01-02 15:04:05"

// Record renders the row in ObservationHeader column order
func (r ObservationRow) Record() []string {
	return []string{
		r.Date.UTC().Format(DateLayout),
		formatFloat(r.Open),
		formatFloat(r.High),
		formatFloat(r.Low),
		formatFloat(r.Close),
		formatFloat(r.Volume),
		formatFloat(r.VWAP),
		strconv.FormatInt(r.Transactions, 10),
		strconv.FormatBool(r.OTC),
		r.Contract,
		string(r.ContractType),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ContractRecord is one row of the contract listing export
type ContractRecord struct {
	Ticker            string  `json:"ticker"`
	UnderlyingTicker  string  `json:"underlying_ticker"`
	ContractType      string  `json:"contract_type"`
	ExpirationDate    string  `json:"expiration_date"`
	StrikePrice       float64 `json:"strike_price"`
	ExerciseStyle     string  `json:"exercise_style"`
	SharesPerContract float64 `json:"shares_per_contract"`
	PrimaryExchange   string  `json:"primary_exchange"`
	CFI               string  `json:"cfi"`
}

// Record renders the contract in ContractHeader column order
func (c ContractRecord) Record() []string {
	return []string{
		c.Ticker,
		c.UnderlyingTicker,
		c.ContractType,
		c.ExpirationDate,
		formatFloat(c.StrikePrice),
		c.ExerciseStyle,
		formatFloat(c.SharesPerContract),
		c.PrimaryExchange,
		c.CFI,
	}
}

// ContractHeader is the header of the contract listing export (after the index column)
var ContractHeader = []string{
	"ticker", "underlying_ticker", "contract_type", "expiration_date", "strike_price",
	"exercise_style", "shares_per_contract", "primary_exchange", "cfi",
}
