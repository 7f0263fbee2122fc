package main

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"salesdash/internal/config"
	"salesdash/internal/models"
	"salesdash/internal/services/charts"
	svc "salesdash/internal/services/dashboard"
	"salesdash/internal/testutil"
)

// testConfig points the server at testdata/sales.csv
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Debug = true
	cfg.DataDirectory = testutil.TestDataDir()
	cfg.Source = config.SourceConfig{Kind: config.SourceFile, Path: testutil.SalesFixture}
	return cfg
}

// setupTestServer initializes dependencies with cfg and returns a test server
func setupTestServer(t *testing.T, cfg *config.Config) *testutil.TestServer {
	t.Helper()

	if err := openStorage(cfg); err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	if err := SetupDependencies(cfg); err != nil {
		t.Fatalf("Failed to setup dependencies: %v", err)
	}
	return testutil.NewTestServer(t, SetupRouter())
}

func getSnapshot(t *testing.T, ts *testutil.TestServer, query url.Values) models.Snapshot {
	t.Helper()
	var snap models.Snapshot
	testutil.AssertResponse(t, ts.GETWithQuery("/api/dashboard", query)).
		StatusOK().
		ContentTypeJSON().
		JSON(&snap)
	return snap
}

func TestOpenStorageCreatesDataDirectory(t *testing.T) {
	cfg := testConfig()
	cfg.DataDirectory = filepath.Join(t.TempDir(), "data")

	if err := openStorage(cfg); err != nil {
		t.Fatalf("openStorage failed: %v", err)
	}
	if store == nil || store.BaseDir() != cfg.DataDirectory {
		t.Fatalf("store = %+v", store)
	}
	if _, err := os.Stat(cfg.DataDirectory); err != nil {
		t.Errorf("data directory not created: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	testutil.AssertResponse(t, ts.GET("/api/health")).
		StatusOK().
		ContentTypeJSON().
		Contains(`"status":"ok"`)
}

func TestVersionEndpoint(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	testutil.AssertResponse(t, ts.GET("/api/version")).
		StatusOK().
		ContentTypeJSON().
		Contains(`"version"`)
}

func TestRootRedirect(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	resp := ts.GET("/")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("Expected status %d, got %d", http.StatusTemporaryRedirect, resp.StatusCode)
	}
	testutil.AssertResponse(t, resp).RedirectsTo("/dashboard")
}

func TestDashboardPage(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	testutil.AssertResponse(t, ts.GET("/dashboard")).
		StatusOK().
		ContentTypeHTML().
		ContainsAll("$1,200.00", "$360.00", "6 of 6 rows").
		HasElement("chart-" + charts.ProfitByState).
		HasElement("chart-" + charts.CategoryHeatmap)
}

func TestDashboardFilteredRowCount(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	testutil.AssertResponse(t, ts.GET("/dashboard?state=Texas")).
		StatusOK().
		ContainsAll("2 of 6 rows", "$1,200.00")
}

func TestKPIsPartial(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	testutil.AssertResponse(t, ts.GET("/dashboard/kpis")).
		StatusOK().
		ContainsAll("$1,200.00", "$360.00").
		NotContains("<html")
}

func TestDashboardLoadError(t *testing.T) {
	cfg := testConfig()
	cfg.Source.Path = "missing.csv"
	ts := setupTestServer(t, cfg)

	testutil.AssertResponse(t, ts.GET("/dashboard")).
		Status(http.StatusInternalServerError).
		ContentTypeHTML().
		Contains("could not be loaded").
		NotContains("chart-" + charts.ProfitByState)

	testutil.AssertResponse(t, ts.GET("/api/dashboard")).
		Status(http.StatusInternalServerError).
		ContentTypeJSON().
		Contains(`"error"`)
}

func TestSnapshotDefault(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	snap := getSnapshot(t, ts, nil)
	if !snap.KPIs.TotalSales.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("TotalSales = %s, want 1200", snap.KPIs.TotalSales)
	}
	if !snap.KPIs.OperatingProfit.Equal(decimal.NewFromInt(360)) {
		t.Errorf("OperatingProfit = %s, want 360", snap.KPIs.OperatingProfit)
	}
	if snap.KPIs.TotalOrders != 5 {
		t.Errorf("TotalOrders = %d, want 5 distinct dates", snap.KPIs.TotalOrders)
	}
	if snap.RowCount != 6 || snap.TotalRows != 6 {
		t.Errorf("RowCount/TotalRows = %d/%d, want 6/6", snap.RowCount, snap.TotalRows)
	}
	if len(snap.Charts) != len(charts.IDs) {
		t.Fatalf("len(Charts) = %d, want %d", len(snap.Charts), len(charts.IDs))
	}
	if snap.Scope != config.ScopeDataset {
		t.Errorf("Scope = %q", snap.Scope)
	}
	for _, c := range snap.Charts {
		if c.Error != "" {
			t.Errorf("chart %s failed: %s", c.ID, c.Error)
		}
	}
}

func TestSnapshotFilters(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	texas := getSnapshot(t, ts, url.Values{"state": {"Texas"}})
	if texas.RowCount != 2 {
		t.Errorf("state=Texas RowCount = %d, want 2", texas.RowCount)
	}
	if !texas.KPIs.TotalSales.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("dataset scope KPIs should ignore filters, got %s", texas.KPIs.TotalSales)
	}
	if len(texas.Options.States) != 3 {
		t.Errorf("Options.States = %v, want all three states", texas.Options.States)
	}

	none := getSnapshot(t, ts, url.Values{"state": {""}})
	if none.RowCount != 0 || len(none.Filter.States) != 0 {
		t.Errorf("state= should select nothing, got RowCount %d, States %v", none.RowCount, none.Filter.States)
	}

	march := getSnapshot(t, ts, url.Values{"start": {"2021-03-01"}, "end": {"2021-03-31"}})
	if march.RowCount != 2 {
		t.Errorf("March RowCount = %d, want 2", march.RowCount)
	}
}

func TestSnapshotBadFilter(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	tests := []url.Values{
		{"start": {"not-a-date"}},
		{"start": {"2021-12-01"}, "end": {"2021-01-01"}},
	}
	for _, q := range tests {
		testutil.AssertResponse(t, ts.GETWithQuery("/api/dashboard", q)).
			Status(http.StatusBadRequest).
			Contains(`"error"`)
	}
	testutil.AssertResponse(t, ts.GET("/dashboard?end=2020-13-45")).
		Status(http.StatusBadRequest)
}

func TestFilteredScope(t *testing.T) {
	cfg := testConfig()
	cfg.AggregateScope = config.ScopeFiltered
	ts := setupTestServer(t, cfg)

	snap := getSnapshot(t, ts, url.Values{"state": {"Texas"}})
	if !snap.KPIs.TotalSales.Equal(decimal.NewFromInt(350)) {
		t.Errorf("TotalSales = %s, want 350 for Texas", snap.KPIs.TotalSales)
	}
	byState, _ := snap.Chart(charts.ProfitByState)
	if byState.Spec == nil || len(byState.Spec.Series.Points) != 1 {
		t.Errorf("profit_by_state = %+v, want Texas only", byState.Spec)
	}

	empty := getSnapshot(t, ts, url.Values{"category": {""}})
	if len(empty.Warnings) == 0 {
		t.Error("empty selection should produce warnings")
	}
}

func TestFiltersEndpoint(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	var body struct {
		Options models.FilterOptions `json:"options"`
		Default models.FilterState   `json:"default"`
		Scope   string               `json:"scope"`
	}
	testutil.AssertResponse(t, ts.GET("/api/filters")).
		StatusOK().
		JSON(&body)

	if strings.Join(body.Options.States, ",") != "New York,Texas,California" {
		t.Errorf("States = %v, want first-appearance order", body.Options.States)
	}
	if len(body.Default.Categories) != 2 {
		t.Errorf("Default categories = %v", body.Default.Categories)
	}
	if got := body.Default.Start.Format("2006-01-02"); got != "2021-01-15" {
		t.Errorf("Default start = %s", got)
	}
	if got := body.Default.End.Format("2006-01-02"); got != "2021-12-24" {
		t.Errorf("Default end = %s", got)
	}
}

func TestChartEndpoint(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	var chart models.ChartResult
	testutil.AssertResponse(t, ts.GET("/api/charts/"+charts.MonthlySales)).
		StatusOK().
		JSON(&chart)
	if chart.Spec == nil {
		t.Fatalf("monthly chart has no spec: %+v", chart)
	}
	var labels []string
	for _, p := range chart.Spec.Series.Points {
		labels = append(labels, p.Label)
	}
	if strings.Join(labels, ",") != "2021-01,2021-02,2021-03,2021-12" {
		t.Errorf("monthly labels = %v", labels)
	}

	testutil.AssertResponse(t, ts.GET("/api/charts/not_a_chart")).
		Status(http.StatusNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	resp := ts.POST("/api/sessions", "", nil)
	var sess svc.Session
	testutil.AssertResponse(t, resp).
		Status(http.StatusCreated).
		JSON(&sess)
	if sess.ID == "" || sess.Snapshot == nil || sess.Snapshot.RowCount != 6 {
		t.Fatalf("created session = %+v", sess)
	}
	if loc := resp.Header.Get("Location"); loc != "/api/sessions/"+sess.ID {
		t.Errorf("Location = %q", loc)
	}
	path := "/api/sessions/" + sess.ID

	var updated svc.Session
	testutil.AssertResponse(t, ts.PUTJSON(path+"/filter", map[string]any{"states": []string{"Texas"}})).
		StatusOK().
		JSON(&updated)
	if updated.Snapshot.RowCount != 2 {
		t.Errorf("RowCount after filter = %d, want 2", updated.Snapshot.RowCount)
	}
	if len(updated.Filter.Categories) != 2 {
		t.Errorf("omitted categories should be kept, got %v", updated.Filter.Categories)
	}

	testutil.AssertResponse(t, ts.Do(http.MethodPut, path+"/filter?category=Footwear", "", nil)).
		StatusOK().
		Contains(`"row_count":1`)

	testutil.AssertResponse(t, ts.PUTJSON(path+"/filter", map[string]any{"start": "2021-12-31", "end": "2021-01-01"})).
		Status(http.StatusBadRequest)
	testutil.AssertResponse(t, ts.PUTJSON(path+"/filter", map[string]any{"bogus": true})).
		Status(http.StatusBadRequest)

	var fs models.FilterState
	testutil.AssertResponse(t, ts.GET(path+"/filter")).
		StatusOK().
		JSON(&fs)
	if strings.Join(fs.States, ",") != "Texas" || strings.Join(fs.Categories, ",") != "Footwear" {
		t.Errorf("rejected update changed the filter: %+v", fs)
	}

	testutil.AssertResponse(t, ts.DELETE(path)).Status(http.StatusNoContent)
	testutil.AssertResponse(t, ts.GET(path)).Status(http.StatusNotFound)
	testutil.AssertResponse(t, ts.DELETE(path)).Status(http.StatusNotFound)
}

func TestDatasetReload(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	getSnapshot(t, ts, nil)
	testutil.AssertResponse(t, ts.POST("/api/dataset/reload", "", nil)).
		StatusOK().
		JSONField("rows", 6).
		JSONField("previous_rows", 6).
		JSONField("loads", 2)
}

func TestDatasetReloadBeforeFirstLoad(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	testutil.AssertResponse(t, ts.POST("/api/dataset/reload", "", nil)).
		StatusOK().
		JSONField("rows", 6).
		JSONField("previous_rows", 0).
		JSONField("loads", 1)
}

func TestExplorerRows(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	var page struct {
		Rows       []models.SalesRecord `json:"rows"`
		TotalCount int                  `json:"total_count"`
		TotalPages int                  `json:"total_pages"`
	}
	testutil.AssertResponse(t, ts.GET("/explorer/rows?state=Texas&sort=sales&order=desc")).
		StatusOK().
		ContentTypeJSON().
		JSON(&page)
	if page.TotalCount != 2 || page.TotalPages != 1 || len(page.Rows) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Rows[0].Retailer != "Kohl's" || page.Rows[1].Retailer != "Walmart" {
		t.Errorf("rows not sorted by sales desc: %s, %s", page.Rows[0].Retailer, page.Rows[1].Retailer)
	}

	testutil.AssertResponse(t, ts.GET("/explorer/rows?perPage=4&page=2")).
		StatusOK().
		JSONField("page", 2).
		JSONField("page_start", 5).
		JSONField("page_end", 6)

	testutil.AssertResponse(t, ts.GETHTML("/explorer/rows?category=Footwear")).
		StatusOK().
		ContentTypeHTML().
		ContainsAll("Sports Direct", "$300.00").
		NotContains("Walmart")

	testutil.AssertResponse(t, ts.GET("/explorer/rows?start=bad")).
		Status(http.StatusBadRequest)
}

func TestExplorerPage(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	testutil.AssertResponse(t, ts.GET("/explorer")).
		StatusOK().
		ContentTypeHTML().
		ContainsAll("Foot Locker", "Sports Direct", "of 6").
		HasElement("rows")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	getSnapshot(t, ts, nil)
	testutil.AssertResponse(t, ts.GET("/metrics")).
		StatusOK().
		ContainsAll("salesdash_recompute_total", "salesdash_dataset_rows 6", "go_goroutines")
}

func TestExport(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	resp := ts.GET("/api/dataset/export")
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentType("application/zip")
	if body := testutil.ReadBody(t, resp); !strings.HasPrefix(body, "PK") {
		t.Errorf("export is not a zip archive: %q", truncateBody(body))
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	testutil.SetTestEnv(t)
	t.Setenv("SALESDASH_SCOPE", config.ScopeFiltered)
	t.Setenv("SALESDASH_TOP_N", "2")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	ts := setupTestServer(t, cfg)

	snap := getSnapshot(t, ts, url.Values{"category": {"Apparel"}})
	if snap.Scope != config.ScopeFiltered || snap.RowCount != 4 {
		t.Errorf("Scope/RowCount = %s/%d, want filtered/4", snap.Scope, snap.RowCount)
	}
	byState, _ := snap.Chart(charts.ProfitByState)
	if byState.Spec == nil || len(byState.Spec.Series.Points) != 2 {
		t.Errorf("top_n=2 should keep two states, got %+v", byState.Spec)
	}
}

func truncateBody(s string) string {
	if len(s) > 40 {
		return s[:40]
	}
	return s
}
