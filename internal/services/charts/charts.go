// Package charts binds derived series to declarative chart specifications.
// Bindings carry no business logic: every series maps to exactly one spec.
package charts

import (
	"fmt"
	"strings"

	"salesdash/internal/models"
	"salesdash/internal/services/aggregate"
)

// Chart IDs, in dashboard order
const (
	ProfitByState   = aggregate.SeriesProfitByState
	SalesByCategory = aggregate.SeriesSalesByCategory
	SalesByMethod   = aggregate.SeriesSalesByMethod
	SalesByRetailer = aggregate.SeriesSalesByRetailer
	MonthlySales    = aggregate.SeriesMonthlySales
	CategoryHeatmap = aggregate.SeriesCategoryHeatmap
)

// Field names shared with the rendering layer
const (
	FieldState      = "State"
	FieldCategory   = "Product Category"
	FieldMethod     = "Sales Method"
	FieldRetailer   = "Retailer"
	FieldMonth      = "Month_Period"
	FieldMonthName  = "Month_Name"
	FieldTotalSales = "Total Sales"
	FieldProfit     = "Operating Profit"
)

// IDs lists every chart in dashboard order
var IDs = []string{
	ProfitByState,
	SalesByCategory,
	SalesByMethod,
	SalesByRetailer,
	MonthlySales,
	CategoryHeatmap,
}

// Focus names the region and category the breakdown charts are drawn for
type Focus struct {
	Region   string
	Category string
}

// templates holds the static part of every binding. Titles may name the
// focus through {region} and {category}.
var templates = map[string]models.ChartSpec{
	ProfitByState: {
		Title: "Top 10 Operating Profit by State",
		Kind:  models.HorizontalBar,
		X:     FieldProfit,
		Y:     FieldState,
		Value: FieldProfit,
		Color: "#2E86C1",
	},
	SalesByCategory: {
		Title: "Total Sales in {region} by Product Category",
		Kind:  models.Pie,
		X:     FieldCategory,
		Value: FieldTotalSales,
	},
	SalesByMethod: {
		Title: "{category} Sales in {region} by Sales Method",
		Kind:  models.VerticalBar,
		X:     FieldMethod,
		Y:     FieldTotalSales,
		Value: FieldTotalSales,
		Color: "#28B463",
	},
	SalesByRetailer: {
		Title: "{category} Sales in {region} by Retailer",
		Kind:  models.VerticalBar,
		X:     FieldRetailer,
		Y:     FieldTotalSales,
		Value: FieldTotalSales,
		Color: "#F39C12",
	},
	MonthlySales: {
		Title: "Monthly Total Sales",
		Kind:  models.Line,
		X:     FieldMonth,
		Y:     FieldTotalSales,
		Value: FieldTotalSales,
		Color: "#2980B9",
	},
	CategoryHeatmap: {
		Title: "Monthly Sales Heatmap by Product Category",
		Kind:  models.DensityHeatmap,
		X:     FieldMonthName,
		Y:     FieldCategory,
		Z:     FieldTotalSales,
		Value: FieldTotalSales,
	},
}

// Bind wraps series in the chart spec registered for id
func Bind(id string, series models.DerivedSeries, focus Focus) (*models.ChartSpec, error) {
	spec, ok := templates[id]
	if !ok {
		return nil, fmt.Errorf("unknown chart %q", id)
	}
	spec.ID = id
	spec.Title = strings.NewReplacer("{region}", focus.Region, "{category}", focus.Category).Replace(spec.Title)
	spec.Series = series
	return &spec, nil
}

// Known reports whether id names a chart
func Known(id string) bool {
	_, ok := templates[id]
	return ok
}
