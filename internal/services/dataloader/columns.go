package dataloader

import (
	"strings"
)

// Standard column names
const (
	ColState        = "State"
	ColCategory     = "Product Category"
	ColRetailer     = "Retailer"
	ColSalesMethod  = "Sales Method"
	ColInvoiceDate  = "Invoice Date"
	ColTotalSales   = "Total Sales"
	ColProfit       = "Operating Profit"
	ColRegion       = "Region"
	ColCity         = "City"
	ColProduct      = "Product"
	ColPricePerUnit = "Price per Unit"
	ColUnitsSold    = "Units Sold"
	ColMargin       = "Operating Margin"
)

// requiredColumns must all resolve for a row to be accepted as the header
var requiredColumns = []string{
	ColState, ColCategory, ColRetailer, ColSalesMethod,
	ColInvoiceDate, ColTotalSales, ColProfit,
}

// columnMappings maps common export column names (normalised) to our standard names
var columnMappings = map[string][]string{
	ColState:        {"state", "province"},
	ColCategory:     {"product category", "category", "product_category"},
	ColRetailer:     {"retailer", "retailer name", "store"},
	ColSalesMethod:  {"sales method", "method", "sales channel", "channel", "sales_method"},
	ColInvoiceDate:  {"invoice date", "date", "order date", "invoice_date"},
	ColTotalSales:   {"total sales", "sales", "revenue", "total_sales"},
	ColProfit:       {"operating profit", "profit", "operating_profit"},
	ColRegion:       {"region"},
	ColCity:         {"city"},
	ColProduct:      {"product", "product name"},
	ColPricePerUnit: {"price per unit", "unit price", "price_per_unit"},
	ColUnitsSold:    {"units sold", "units", "quantity", "units_sold"},
	ColMargin:       {"operating margin", "margin", "operating_margin"},
}

// aliasIndex is columnMappings inverted
var aliasIndex = func() map[string]string {
	idx := make(map[string]string)
	for standard, aliases := range columnMappings {
		for _, a := range aliases {
			idx[a] = standard
		}
	}
	return idx
}()

// normalizeColumnName maps an export column name to our standard name
func normalizeColumnName(col string) string {
	key := strings.Join(strings.Fields(strings.ToLower(col)), " ")
	if standard, ok := aliasIndex[key]; ok {
		return standard
	}
	return strings.TrimSpace(col) // Return original if no mapping found
}

// buildColumnIndex creates a normalized column index from a header row
func buildColumnIndex(header []string) map[string]int {
	colIndex := make(map[string]int)
	for i, col := range header {
		normalized := normalizeColumnName(col)
		// First match wins
		if _, exists := colIndex[normalized]; !exists {
			colIndex[normalized] = i
		}
	}
	return colIndex
}

// missingColumns lists required columns absent from colIndex
func missingColumns(colIndex map[string]int) []string {
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}
