// Package dataloader turns a raw sales table into an immutable dataset.
package dataloader

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"salesdash/internal/models"
)

// headerSearchRows is how many leading rows may precede the header (workbook title rows)
const headerSearchRows = 10

// Source yields a raw string table, header row first
type Source interface {
	Name() string
	Rows(ctx context.Context) ([][]string, error)
}

// DataLoader reads and parses the sales table. It does not filter, sort or
// aggregate, and it does not cache; see the cache package for memoization.
type DataLoader struct {
	source Source
}

// New creates a DataLoader for src
func New(src Source) *DataLoader {
	return &DataLoader{source: src}
}

// SourceName returns the name of the underlying source
func (dl *DataLoader) SourceName() string {
	return dl.source.Name()
}

// Load reads the source and parses every row. Any unreadable source,
// missing column or unparseable value fails the whole load with a *LoadError.
func (dl *DataLoader) Load(ctx context.Context) (*models.Dataset, error) {
	start := time.Now()
	name := dl.source.Name()

	rows, err := dl.source.Rows(ctx)
	if err != nil {
		return nil, &LoadError{Source: name, Err: err}
	}

	headerIdx, colIndex, lerr := findHeader(rows)
	if lerr != nil {
		lerr.Source = name
		return nil, lerr
	}

	records := make([]models.SalesRecord, 0, len(rows)-headerIdx-1)
	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		rec, lerr := parseRecord(row, colIndex)
		if lerr != nil {
			lerr.Source = name
			lerr.Line = i + 1
			return nil, lerr
		}
		rec.ComputeDerivedFields()
		records = append(records, rec)
	}

	ds := models.NewDataset(name, records)
	log.Info().
		Str("source", name).
		Int("rows", ds.Len()).
		Dur("took", time.Since(start)).
		Msg("Loaded sales dataset")
	return ds, nil
}

// findHeader locates the first row that resolves every required column
func findHeader(rows [][]string) (int, map[string]int, *LoadError) {
	if len(rows) == 0 {
		return 0, nil, &LoadError{Err: ErrNoHeader}
	}

	// Report against the row that came closest to being the header
	var missing []string
	limit := min(len(rows), headerSearchRows)
	for i := 0; i < limit; i++ {
		colIndex := buildColumnIndex(rows[i])
		m := missingColumns(colIndex)
		if len(m) == 0 {
			return i, colIndex, nil
		}
		if missing == nil || len(m) < len(missing) {
			missing = m
		}
	}

	err := ErrMissingColumn
	if len(missing) > 1 {
		err = fmt.Errorf("%w (also missing: %s)", ErrMissingColumn, strings.Join(missing[1:], ", "))
	}
	return 0, nil, &LoadError{Column: missing[0], Err: err}
}

// parseRecord converts one data row
func parseRecord(row []string, colIndex map[string]int) (models.SalesRecord, *LoadError) {
	var rec models.SalesRecord

	text := func(col string) (string, *LoadError) {
		v := cell(row, colIndex, col)
		if v == "" {
			return "", &LoadError{Column: col, Err: ErrEmptyValue}
		}
		return v, nil
	}

	for _, f := range []struct {
		col string
		dst *string
	}{
		{ColState, &rec.State},
		{ColCategory, &rec.ProductCategory},
		{ColRetailer, &rec.Retailer},
		{ColSalesMethod, &rec.SalesMethod},
	} {
		v, lerr := text(f.col)
		if lerr != nil {
			return rec, lerr
		}
		*f.dst = v
	}

	dateStr, lerr := text(ColInvoiceDate)
	if lerr != nil {
		return rec, lerr
	}
	date, err := parseDate(dateStr)
	if err != nil {
		return rec, &LoadError{Column: ColInvoiceDate, Err: err}
	}
	rec.InvoiceDate = date

	for _, f := range []struct {
		col string
		dst *decimal.Decimal
	}{
		{ColTotalSales, &rec.TotalSales},
		{ColProfit, &rec.OperatingProfit},
	} {
		v, lerr := text(f.col)
		if lerr != nil {
			return rec, lerr
		}
		amount, err := parseAmount(v)
		if err != nil {
			return rec, &LoadError{Column: f.col, Err: err}
		}
		*f.dst = amount
	}

	// Optional columns: carried when present, ignored when unparseable
	rec.Region = cell(row, colIndex, ColRegion)
	rec.City = cell(row, colIndex, ColCity)
	rec.Product = cell(row, colIndex, ColProduct)
	if v := cell(row, colIndex, ColPricePerUnit); v != "" {
		if price, err := parseAmount(v); err == nil {
			rec.PricePerUnit = price
		}
	}
	if v := cell(row, colIndex, ColMargin); v != "" {
		if margin, err := parseMargin(v); err == nil {
			rec.Margin = margin
		}
	}
	if v := cell(row, colIndex, ColUnitsSold); v != "" {
		if units, err := strconv.ParseInt(strings.ReplaceAll(v, ",", ""), 10, 64); err == nil {
			rec.UnitsSold = units
		}
	}

	return rec, nil
}

// cell returns the trimmed value of col in row, or "" when absent
func cell(row []string, colIndex map[string]int, col string) string {
	idx, ok := colIndex[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// dateFormats are tried in order; US month-first forms win over day-first
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"1/2/2006",
	"01/02/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"01/02/2006 15:04:05",
	"1/2/06",
	"2006/01/02",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// minExcelSerial is 1927-05-18; smaller bare numbers (e.g. "2021") are not read as serial dates
const minExcelSerial = 10000

// parseDate tries each known format, then an Excel serial day number
func parseDate(s string) (time.Time, error) {
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return models.Day(t), nil
		}
	}

	if isSerial(s) {
		if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= minExcelSerial {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return models.Day(t), nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
}

// isSerial reports whether s is a plain day number such as "44262" or "44262.5"
func isSerial(s string) bool {
	digits, frac, _ := strings.Cut(s, ".")
	if digits == "" {
		return false
	}
	for _, r := range digits + frac {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parseAmount parses a money string, handling currency symbols, grouping and parentheses
func parseAmount(s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))

	// (100.00) -> -100.00
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		clean = "-" + clean[1:len(clean)-1]
	}

	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w %q", ErrInvalidNumber, s)
	}
	return amount, nil
}

// parseMargin accepts "50%" or a plain ratio such as "0.5"
func parseMargin(s string) (decimal.Decimal, error) {
	if pct, ok := strings.CutSuffix(strings.TrimSpace(s), "%"); ok {
		d, err := decimal.NewFromString(strings.TrimSpace(pct))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w %q", ErrInvalidNumber, s)
		}
		return d.Div(decimal.NewFromInt(100)), nil
	}
	return parseAmount(s)
}
