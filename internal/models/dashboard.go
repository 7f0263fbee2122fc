package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Point is one (dimension value, numeric value) pair of a derived series.
// Group carries the second dimension for cross-tabulated series.
type Point struct {
	Label string          `json:"label"`
	Group string          `json:"group,omitempty"`
	Value decimal.Decimal `json:"value"`
}

// DerivedSeries is the ordered output of one reducer
type DerivedSeries struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`

	// Axis fixes the x-axis ordering when it is not implied by Points
	// (e.g. the twelve calendar months of the heatmap)
	Axis []string `json:"axis,omitempty"`
}

// IsEmpty reports whether the series has no data points
func (s DerivedSeries) IsEmpty() bool {
	return len(s.Points) == 0
}

// ChartKind names how the rendering layer should draw a series
type ChartKind string

const (
	HorizontalBar  ChartKind = "bar_horizontal"
	Pie            ChartKind = "pie"
	VerticalBar    ChartKind = "bar"
	Line           ChartKind = "line"
	DensityHeatmap ChartKind = "density_heatmap"
)

// ChartSpec is the declarative chart handed to the rendering layer
type ChartSpec struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Kind   ChartKind     `json:"kind"`
	X      string        `json:"x"`           // x-axis (or pie names) field
	Y      string        `json:"y,omitempty"` // y-axis field
	Z      string        `json:"z,omitempty"` // heatmap intensity field
	Value  string        `json:"value"`       // field holding the numeric value
	Color  string        `json:"color,omitempty"`
	Series DerivedSeries `json:"series"`
}

// KPIs holds the three headline figures, raw and display-formatted
type KPIs struct {
	TotalSales      decimal.Decimal `json:"total_sales"`
	OperatingProfit decimal.Decimal `json:"operating_profit"`
	TotalOrders     int             `json:"total_orders"`

	TotalSalesDisplay      string `json:"total_sales_display"`
	OperatingProfitDisplay string `json:"operating_profit_display"`
	TotalOrdersDisplay     string `json:"total_orders_display"`
}

// ChartResult is one chart of a snapshot. Error is set when its reducer failed;
// other charts are unaffected.
type ChartResult struct {
	Spec  *ChartSpec `json:"spec,omitempty"`
	ID    string     `json:"id"`
	Error string     `json:"error,omitempty"`
}

// EmptyResultWarning marks a chart or metric whose input matched no rows
type EmptyResultWarning struct {
	Chart   string `json:"chart"`
	Message string `json:"message"`
}

// Snapshot is everything the rendering layer needs after one recomputation
type Snapshot struct {
	Filter     FilterState          `json:"filter"`
	Scope      string               `json:"scope"`
	Options    FilterOptions        `json:"options"`
	RowCount   int                  `json:"row_count"` // rows in the working subset
	TotalRows  int                  `json:"total_rows"`
	KPIs       KPIs                 `json:"kpis"`
	Charts     []ChartResult        `json:"charts"`
	Warnings   []EmptyResultWarning `json:"warnings,omitempty"`
	ComputedAt time.Time            `json:"computed_at"`
}

// Chart returns the chart with the given id
func (s *Snapshot) Chart(id string) (ChartResult, bool) {
	for _, c := range s.Charts {
		if c.ID == id {
			return c, true
		}
	}
	return ChartResult{}, false
}
