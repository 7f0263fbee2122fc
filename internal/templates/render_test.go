package templates

import (
	"errors"
	"html/template"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salesdash/internal/models"
)

func testSnapshot() *models.Snapshot {
	day := time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)
	return &models.Snapshot{
		Scope:     "dataset",
		RowCount:  1,
		TotalRows: 3,
		Filter: models.FilterState{
			States: []string{"Texas"}, Categories: []string{"Footwear"}, Start: day, End: day,
		},
		Options: models.FilterOptions{
			States: []string{"New York", "Texas"}, Categories: []string{"Apparel", "Footwear"}, MinDate: day, MaxDate: day,
		},
		KPIs: models.KPIs{
			TotalSales: decimal.NewFromInt(350), TotalSalesDisplay: "$350.00",
			OperatingProfit: decimal.NewFromInt(-5), OperatingProfitDisplay: "$-5.00",
			TotalOrders: 3, TotalOrdersDisplay: "3",
		},
		Charts: []models.ChartResult{
			{ID: "monthly_sales", Spec: &models.ChartSpec{ID: "monthly_sales", Title: "Monthly Total Sales", Kind: models.Line}},
			{ID: "profit_by_state", Error: "reducer panicked: boom"},
		},
		Warnings: []models.EmptyResultWarning{{Chart: "sales_by_method", Message: "No Apparel sales recorded in Texas"}},
	}
}

func TestEmbeddedTemplatesLoad(t *testing.T) {
	r, err := New("", false, "$")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for _, name := range []string{"base", "dashboard-content", "explorer-content", "kpis", "filters", "rows", "load-error"} {
		if r.templates.Lookup(name) == nil {
			t.Errorf("template %q not defined", name)
		}
	}
}

func TestRenderDashboard(t *testing.T) {
	r, err := New("", false, "$")
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	err = r.Render(rec, "base", map[string]any{
		"Title":      "Dashboard",
		"ActiveTab":  "dashboard",
		"Version":    "test",
		"FormAction": "/dashboard",
		"Snapshot":   testSnapshot(),
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"$350.00",
		"$-5.00",
		"1 of 3 rows",
		"Monthly Total Sales",
		"could not be computed",
		"No Apparel sales recorded in Texas",
		`value="Texas" checked`,
		`value="2021-01-15"`,
		"-1.4% operating margin",
		"Data spans Jan 15, 2021 to Jan 15, 2021",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Rendered page missing %q", want)
		}
	}
	if strings.Contains(body, `value="New York" checked`) {
		t.Error("Unselected state rendered as checked")
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestRenderLoadError(t *testing.T) {
	r, _ := New("", false, "$")
	rec := httptest.NewRecorder()
	err := r.Render(rec, "base", map[string]any{
		"Title":     "Dashboard",
		"ActiveTab": "dashboard",
		"Version":   "test",
		"Error":     errors.New(`load sales.csv: column "Invoice Date": missing required column`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), "could not be loaded") {
		t.Error("Expected load error panel")
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, _ := New("", false, "$")
	rec := httptest.NewRecorder()
	if err := r.Render(rec, "missing", nil); err == nil {
		t.Error("Expected error for unknown template")
	}
	if rec.Code != 500 {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestTemplateFuncs(t *testing.T) {
	if got := percentOf(decimal.NewFromInt(1), decimal.NewFromInt(3)); got != "33.3" {
		t.Errorf("percentOf = %q", got)
	}
	if got := percentOf(decimal.NewFromInt(1), decimal.Zero); got != "0.0" {
		t.Errorf("percentOf zero = %q", got)
	}
	if got := formatDate(time.Date(2021, 12, 24, 0, 0, 0, 0, time.UTC)); got != "Dec 24, 2021" {
		t.Errorf("formatDate = %q", got)
	}
	if got := formatDate(time.Time{}); got != "" {
		t.Errorf("formatDate zero = %q", got)
	}
	if got := string(toJSON(map[string]int{"a": 1})); got != `{"a":1}` {
		t.Errorf("toJSON = %q", got)
	}
	if extractLineNumber(`template: x.html:12: unexpected`) != 12 {
		t.Error("extractLineNumber failed")
	}
}

func TestRenderRowsPagination(t *testing.T) {
	r, err := New("", false, "$")
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	err = r.RenderPartial(rec, "rows", map[string]any{
		"Rows":       []models.SalesRecord{},
		"Page":       2,
		"PerPage":    10,
		"TotalPages": 3,
		"PageRange":  []int{1, 2, 3},
		"Query":      template.URL("sort=date"),
	})
	if err != nil {
		t.Fatal(err)
	}

	body := rec.Body.String()
	for _, want := range []string{`rel="prev" href="?sort=date&page=1&perPage=10"`, `rel="next" href="?sort=date&page=3&perPage=10"`} {
		if !strings.Contains(body, want) {
			t.Errorf("Rows partial missing %q", want)
		}
	}
}
