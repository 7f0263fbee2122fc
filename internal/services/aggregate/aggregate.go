// Package aggregate holds the pure reducers that turn a set of sales records
// into KPIs and chart series. Reducers never modify their input and return
// an empty series (never an error) for an empty input.
package aggregate

import (
	"slices"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"salesdash/internal/models"
)

// Default focus used by the region/category breakdowns
const (
	DefaultRegion   = "New York"
	DefaultCategory = "Apparel"
	DefaultTopN     = 10
)

// Series names
const (
	SeriesProfitByState   = "profit_by_state"
	SeriesSalesByCategory = "sales_by_category"
	SeriesSalesByMethod   = "sales_by_method"
	SeriesSalesByRetailer = "sales_by_retailer"
	SeriesMonthlySales    = "monthly_sales"
	SeriesCategoryHeatmap = "category_heatmap"
)

// MonthOrder is the fixed January to December axis of the heatmap
var MonthOrder = func() []string {
	months := make([]string, 12)
	for m := time.January; m <= time.December; m++ {
		months[m-1] = m.String()
	}
	return months
}()

// TotalSales sums TotalSales over every record
func TotalSales(set *models.SalesSet) decimal.Decimal {
	if set.Len() == 0 {
		return decimal.Zero
	}
	return set.SumSales()
}

// TotalProfit sums OperatingProfit over every record
func TotalProfit(set *models.SalesSet) decimal.Decimal {
	if set.Len() == 0 {
		return decimal.Zero
	}
	return set.SumProfit()
}

// TotalOrders counts distinct invoice dates. This is not the row count:
// several rows on one day count once.
func TotalOrders(set *models.SalesSet) int {
	if set.Len() == 0 {
		return 0
	}
	return set.DistinctDates()
}

// ProfitByState sums profit per state, keeps the n largest and returns them
// ascending so a horizontal bar chart draws the largest at the top.
// Ties at the cutoff are resolved by state name.
func ProfitByState(set *models.SalesSet, n int) models.DerivedSeries {
	if n <= 0 {
		n = DefaultTopN
	}
	points := groupSum(set, byState, profit)

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Value.GreaterThan(points[j].Value)
	})
	points = points[:min(n, len(points))]
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Value.LessThan(points[j].Value)
	})

	return models.DerivedSeries{Name: SeriesProfitByState, Points: points}
}

// SalesByCategory sums sales per product category within one region
func SalesByCategory(set *models.SalesSet, region string) models.DerivedSeries {
	return models.DerivedSeries{
		Name:   SeriesSalesByCategory,
		Points: groupSum(inRegion(set, region), byCategory, sales),
	}
}

// SalesByMethod sums sales per sales method for one region and category
func SalesByMethod(set *models.SalesSet, region, category string) models.DerivedSeries {
	return models.DerivedSeries{
		Name:   SeriesSalesByMethod,
		Points: groupSum(inFocus(set, region, category), byMethod, sales),
	}
}

// SalesByRetailer sums sales per retailer for one region and category,
// largest first
func SalesByRetailer(set *models.SalesSet, region, category string) models.DerivedSeries {
	points := groupSum(inFocus(set, region, category), byRetailer, sales)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Value.GreaterThan(points[j].Value)
	})
	return models.DerivedSeries{Name: SeriesSalesByRetailer, Points: points}
}

// MonthlyTotalSales sums sales per "2006-01" bucket in chronological order
func MonthlyTotalSales(set *models.SalesSet) models.DerivedSeries {
	return models.DerivedSeries{
		Name:   SeriesMonthlySales,
		Points: groupSum(set, byMonth, sales),
	}
}

// MonthlyCategoryHeatmap sums sales per (calendar month, category). Years are
// discarded, so the same month of different years collapses into one cell.
// Points run January to December, categories ascending within a month; the
// axis always lists all twelve months.
func MonthlyCategoryHeatmap(set *models.SalesSet) models.DerivedSeries {
	type cell struct {
		month    time.Month
		category string
	}

	sums := make(map[cell]decimal.Decimal)
	for i := range set.Len() {
		r := &set.Records[i]
		c := cell{month: r.InvoiceDate.Month(), category: r.ProductCategory}
		sums[c] = sums[c].Add(r.TotalSales)
	}

	cells := lo.Keys(sums)
	slices.SortFunc(cells, func(a, b cell) int {
		if a.month != b.month {
			return int(a.month) - int(b.month)
		}
		switch {
		case a.category < b.category:
			return -1
		case a.category > b.category:
			return 1
		}
		return 0
	})

	points := make([]models.Point, 0, len(cells))
	for _, c := range cells {
		points = append(points, models.Point{Label: c.month.String(), Group: c.category, Value: sums[c]})
	}

	return models.DerivedSeries{
		Name:   SeriesCategoryHeatmap,
		Points: points,
		Axis:   slices.Clone(MonthOrder),
	}
}

// TopState returns the state with the largest total profit ("" when empty)
func TopState(set *models.SalesSet) string {
	return top(groupSum(set, byState, profit))
}

// TopCategory returns the category with the largest total sales ("" when empty)
func TopCategory(set *models.SalesSet) string {
	return top(groupSum(set, byCategory, sales))
}

func top(points []models.Point) string {
	if len(points) == 0 {
		return ""
	}
	best := points[0]
	for _, p := range points[1:] {
		if p.Value.GreaterThan(best.Value) {
			best = p
		}
	}
	return best.Label
}

// groupSum sums value per key, returning points ordered by key ascending
func groupSum(set *models.SalesSet, key func(*models.SalesRecord) string, value func(*models.SalesRecord) decimal.Decimal) []models.Point {
	if set.Len() == 0 {
		return nil
	}

	sums := set.SumBy(key, value)
	keys := lo.Keys(sums)
	slices.Sort(keys)

	return lo.Map(keys, func(k string, _ int) models.Point {
		return models.Point{Label: k, Value: sums[k]}
	})
}

func inRegion(set *models.SalesSet, region string) *models.SalesSet {
	if set.Len() == 0 {
		return set
	}
	return set.FilterByState(region)
}

func inFocus(set *models.SalesSet, region, category string) *models.SalesSet {
	if set.Len() == 0 {
		return set
	}
	return inRegion(set, region).FilterByCategory(category)
}

func byState(r *models.SalesRecord) string    { return r.State }
func byCategory(r *models.SalesRecord) string { return r.ProductCategory }
func byMethod(r *models.SalesRecord) string   { return r.SalesMethod }
func byRetailer(r *models.SalesRecord) string { return r.Retailer }

// byMonth falls back to the invoice date when the derived key was never computed
func byMonth(r *models.SalesRecord) string {
	if r.Month != "" {
		return r.Month
	}
	return r.InvoiceDate.Format("2006-01")
}

func sales(r *models.SalesRecord) decimal.Decimal  { return r.TotalSales }
func profit(r *models.SalesRecord) decimal.Decimal { return r.OperatingProfit }
