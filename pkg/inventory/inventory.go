// Package inventory loads the contract listings a fetch works through.
package inventory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nateesh/polygon-options-agg/pkg/checkpoint"
	errs "github.com/nateesh/polygon-options-agg/pkg/errors"
	"github.com/nateesh/polygon-options-agg/pkg/models"
)

const (
	tickerColumn       = "ticker"
	contractTypeColumn = "contract_type"
)

// Inventory is the full set of identifiers known for one category
type Inventory struct {
	Category models.Category
	Path     string
	tickers  checkpoint.Set
}

// Load reads a contract listing. The listing must have a header with a
// ticker column; any other columns, including a leading unnamed index, are
// ignored except contract_type, which must agree with category when present.
func Load(path string, category models.Category) (*Inventory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedInventory, err)
	}
	defer file.Close()

	return Parse(file, path, category)
}

// Parse reads a listing from r; name is only used in error messages
func Parse(r io.Reader, name string, category models.Category) (*Inventory, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s: empty listing", errs.ErrMalformedInventory, name)
		}
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrMalformedInventory, name, err)
	}

	tickerIdx, typeIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))) {
		case tickerColumn:
			tickerIdx = i
		case contractTypeColumn:
			typeIdx = i
		}
	}
	if tickerIdx < 0 {
		return nil, fmt.Errorf("%w: %s: no %q column", errs.ErrMalformedInventory, name, tickerColumn)
	}

	inv := &Inventory{Category: category, Path: name, tickers: checkpoint.NewSet()}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", errs.ErrMalformedInventory, name, err)
		}

		if tickerIdx >= len(record) || strings.TrimSpace(record[tickerIdx]) == "" {
			return nil, fmt.Errorf("%w: %s line %d: empty ticker", errs.ErrMalformedInventory, name, line)
		}
		if typeIdx >= 0 && typeIdx < len(record) {
			if ct := strings.TrimSpace(record[typeIdx]); ct != "" && !strings.EqualFold(ct, string(category)) {
				return nil, fmt.Errorf("%w: %s line %d: contract_type %q in %s listing", errs.ErrMalformedInventory, name, line, ct, category)
			}
		}

		inv.tickers.Add(strings.TrimSpace(record[tickerIdx]))
	}

	return inv, nil
}

// New builds an inventory from tickers already in memory
func New(category models.Category, tickers ...string) *Inventory {
	return &Inventory{Category: category, tickers: checkpoint.NewSet(tickers...)}
}

// Len returns the number of distinct identifiers
func (inv *Inventory) Len() int { return inv.tickers.Len() }

// Has reports whether ticker is part of the inventory
func (inv *Inventory) Has(ticker string) bool { return inv.tickers.Has(ticker) }

// Tickers returns every identifier in ascending order
func (inv *Inventory) Tickers() []string { return inv.tickers.Sorted() }

// Remaining returns the identifiers not present in any of the handled sets,
// in ascending order.
func (inv *Inventory) Remaining(handled ...checkpoint.Set) []string {
	remaining := make([]string, 0, inv.tickers.Len())
	for _, ticker := range inv.tickers.Sorted() {
		done := false
		for _, set := range handled {
			if set.Has(ticker) {
				done = true
				break
			}
		}
		if !done {
			remaining = append(remaining, ticker)
		}
	}
	return remaining
}
