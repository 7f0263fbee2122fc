package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SalesRecord represents a single row of the retail sales table
type SalesRecord struct {
	State           string          `json:"state"`
	ProductCategory string          `json:"product_category"`
	Retailer        string          `json:"retailer"`
	SalesMethod     string          `json:"sales_method"`
	InvoiceDate     time.Time       `json:"invoice_date"`
	TotalSales      decimal.Decimal `json:"total_sales"`
	OperatingProfit decimal.Decimal `json:"operating_profit"`

	// Optional columns, carried when the source has them
	Region       string          `json:"region,omitempty"`
	City         string          `json:"city,omitempty"`
	Product      string          `json:"product,omitempty"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	UnitsSold    int64           `json:"units_sold,omitempty"`
	Margin       decimal.Decimal `json:"operating_margin"`

	// Derived fields (computed at load, not read from the source)
	Month     string `json:"month,omitempty"`      // "2021-03"
	MonthName string `json:"month_name,omitempty"` // "March"
}

// ComputeDerivedFields populates the time bucket keys from InvoiceDate
func (r *SalesRecord) ComputeDerivedFields() {
	r.InvoiceDate = Day(r.InvoiceDate)
	r.Month = r.InvoiceDate.Format("2006-01")
	r.MonthName = r.InvoiceDate.Month().String()
}

// Day truncates t to its calendar date at UTC midnight
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SalesSet wraps an ordered slice of records with filtering/aggregation methods.
// Methods never modify the receiver; filters always return a fresh set.
type SalesSet struct {
	Records []SalesRecord
}

// NewSalesSet creates a new SalesSet from a slice
func NewSalesSet(records []SalesRecord) *SalesSet {
	return &SalesSet{Records: records}
}

// Len returns the number of records
func (s *SalesSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Where returns the records for which keep reports true, in their original order
func (s *SalesSet) Where(keep func(r *SalesRecord) bool) *SalesSet {
	result := &SalesSet{}
	for i := range s.Records {
		if keep(&s.Records[i]) {
			result.Records = append(result.Records, s.Records[i])
		}
	}
	return result
}

// FilterByState returns records whose State equals state exactly
func (s *SalesSet) FilterByState(state string) *SalesSet {
	return s.Where(func(r *SalesRecord) bool { return r.State == state })
}

// FilterByCategory returns records whose ProductCategory equals category exactly
func (s *SalesSet) FilterByCategory(category string) *SalesSet {
	return s.Where(func(r *SalesRecord) bool { return r.ProductCategory == category })
}

// InDateRange reports whether t falls within [start, end], inclusive by calendar day
func InDateRange(t, start, end time.Time) bool {
	d := Day(t)
	return !d.Before(Day(start)) && !d.After(Day(end))
}

// SumSales returns the sum of TotalSales
func (s *SalesSet) SumSales() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range s.Records {
		sum = sum.Add(r.TotalSales)
	}
	return sum
}

// SumProfit returns the sum of OperatingProfit
func (s *SalesSet) SumProfit() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range s.Records {
		sum = sum.Add(r.OperatingProfit)
	}
	return sum
}

// DistinctDates returns the number of distinct invoice calendar dates
func (s *SalesSet) DistinctDates() int {
	seen := make(map[time.Time]struct{})
	for _, r := range s.Records {
		seen[Day(r.InvoiceDate)] = struct{}{}
	}
	return len(seen)
}

// SumBy groups records by key and sums value per group
func (s *SalesSet) SumBy(key func(r *SalesRecord) string, value func(r *SalesRecord) decimal.Decimal) map[string]decimal.Decimal {
	result := make(map[string]decimal.Decimal)
	for i := range s.Records {
		r := &s.Records[i]
		k := key(r)
		result[k] = result[k].Add(value(r))
	}
	return result
}

// MinDate returns the earliest invoice date
func (s *SalesSet) MinDate() time.Time {
	if s.Len() == 0 {
		return time.Time{}
	}
	minDate := s.Records[0].InvoiceDate
	for _, r := range s.Records[1:] {
		if r.InvoiceDate.Before(minDate) {
			minDate = r.InvoiceDate
		}
	}
	return minDate
}

// MaxDate returns the latest invoice date
func (s *SalesSet) MaxDate() time.Time {
	if s.Len() == 0 {
		return time.Time{}
	}
	maxDate := s.Records[0].InvoiceDate
	for _, r := range s.Records[1:] {
		if r.InvoiceDate.After(maxDate) {
			maxDate = r.InvoiceDate
		}
	}
	return maxDate
}

// SortByDate returns a copy sorted by invoice date (ascending, stable)
func (s *SalesSet) SortByDate() *SalesSet {
	sorted := s.Copy()
	sort.SliceStable(sorted.Records, func(i, j int) bool {
		return sorted.Records[i].InvoiceDate.Before(sorted.Records[j].InvoiceDate)
	})
	return sorted
}

// Paginate returns a slice of records for the given page
func (s *SalesSet) Paginate(page, perPage int) *SalesSet {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 25
	}

	start := (page - 1) * perPage
	if start >= s.Len() {
		return &SalesSet{}
	}

	end := start + perPage
	if end > len(s.Records) {
		end = len(s.Records)
	}

	return &SalesSet{Records: s.Records[start:end]}
}

// TotalPages returns the number of pages for the given page size
func (s *SalesSet) TotalPages(perPage int) int {
	if perPage < 1 {
		perPage = 25
	}
	return (s.Len() + perPage - 1) / perPage
}

// Copy creates a shallow copy of the SalesSet
func (s *SalesSet) Copy() *SalesSet {
	copied := make([]SalesRecord, s.Len())
	if s != nil {
		copy(copied, s.Records)
	}
	return &SalesSet{Records: copied}
}
