// Package metrics computes and formats the headline KPIs.
package metrics

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"salesdash/internal/models"
	"salesdash/internal/services/aggregate"
)

// DefaultSymbol is prefixed to every currency amount
const DefaultSymbol = "$"

// Service provides metric calculation and display formatting
type Service struct {
	symbol string
}

// New creates a metrics service that formats money with symbol
func New(symbol string) *Service {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	return &Service{symbol: symbol}
}

// Symbol returns the currency symbol in use
func (s *Service) Symbol() string {
	return s.symbol
}

// CalculateKPIs computes the three headline figures and their display strings
func (s *Service) CalculateKPIs(set *models.SalesSet) models.KPIs {
	kpis := models.KPIs{
		TotalSales:      aggregate.TotalSales(set),
		OperatingProfit: aggregate.TotalProfit(set),
		TotalOrders:     aggregate.TotalOrders(set),
	}
	kpis.TotalSalesDisplay = s.Currency(kpis.TotalSales)
	kpis.OperatingProfitDisplay = s.Currency(kpis.OperatingProfit)
	kpis.TotalOrdersDisplay = FormatCount(kpis.TotalOrders)
	return kpis
}

// Currency formats d with the service's symbol
func (s *Service) Currency(d decimal.Decimal) string {
	return FormatCurrency(d, s.symbol)
}

// FormatCurrency renders d rounded to two places with grouping separators,
// e.g. "$1,234.50". The sign follows the symbol: "$-1,234.50".
func FormatCurrency(d decimal.Decimal, symbol string) string {
	fixed := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var sb strings.Builder
	sb.WriteString(symbol)
	if d.Round(2).IsNegative() {
		sb.WriteByte('-')
	}
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		sb.WriteString(humanize.Comma(n))
	} else {
		sb.WriteString(humanize.BigComma(d.Abs().Round(2).Truncate(0).BigInt()))
	}
	sb.WriteByte('.')
	sb.WriteString(frac)
	return sb.String()
}

// FormatCount renders a count as a plain integer
func FormatCount(n int) string {
	return strconv.Itoa(n)
}
