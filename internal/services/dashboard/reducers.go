package dashboard

import (
	"salesdash/internal/models"
	"salesdash/internal/services/aggregate"
	"salesdash/internal/services/charts"
)

// Params are the per-pass inputs shared by every reducer
type Params struct {
	Focus charts.Focus
	TopN  int
}

// ReduceFunc derives one series from the aggregation input
type ReduceFunc func(set *models.SalesSet, p Params) (models.DerivedSeries, error)

// Reducer pairs a chart ID with the function producing its series
type Reducer struct {
	ID     string
	Reduce ReduceFunc
}

// DefaultReducers returns one reducer per dashboard chart, in chart order
func DefaultReducers() []Reducer {
	return []Reducer{
		{charts.ProfitByState, func(set *models.SalesSet, p Params) (models.DerivedSeries, error) {
			return aggregate.ProfitByState(set, p.TopN), nil
		}},
		{charts.SalesByCategory, func(set *models.SalesSet, p Params) (models.DerivedSeries, error) {
			return aggregate.SalesByCategory(set, p.Focus.Region), nil
		}},
		{charts.SalesByMethod, func(set *models.SalesSet, p Params) (models.DerivedSeries, error) {
			return aggregate.SalesByMethod(set, p.Focus.Region, p.Focus.Category), nil
		}},
		{charts.SalesByRetailer, func(set *models.SalesSet, p Params) (models.DerivedSeries, error) {
			return aggregate.SalesByRetailer(set, p.Focus.Region, p.Focus.Category), nil
		}},
		{charts.MonthlySales, func(set *models.SalesSet, p Params) (models.DerivedSeries, error) {
			return aggregate.MonthlyTotalSales(set), nil
		}},
		{charts.CategoryHeatmap, func(set *models.SalesSet, p Params) (models.DerivedSeries, error) {
			return aggregate.MonthlyCategoryHeatmap(set), nil
		}},
	}
}
