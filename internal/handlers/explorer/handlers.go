package explorer

import (
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apphttp "salesdash/internal/http"
	"salesdash/internal/models"
	svc "salesdash/internal/services/dashboard"
	"salesdash/internal/templates"
)

const defaultPerPage = 25

var (
	engine   *svc.Engine
	renderer *templates.Renderer
	version  string
)

// Initialize sets up the explorer package with required dependencies
func Initialize(e *svc.Engine, r *templates.Renderer, v string) {
	engine = e
	renderer = r
	version = v
}

// RegisterRoutes registers all explorer routes
func RegisterRoutes(r chi.Router) {
	r.Get("/explorer", handleExplorer)
	r.Get("/explorer/rows", handleRows)
}

// rowPage is one page of the working subset
type rowPage struct {
	Rows       []models.SalesRecord `json:"rows"`
	Filter     models.FilterState   `json:"filter"`
	Sort       string               `json:"sort"`
	Order      string               `json:"order"`
	Page       int                  `json:"page"`
	PerPage    int                  `json:"per_page"`
	TotalPages int                  `json:"total_pages"`
	TotalCount int                  `json:"total_count"`
	PageStart  int                  `json:"page_start"`
	PageEnd    int                  `json:"page_end"`
	PageRange  []int                `json:"-"`
	Options    models.FilterOptions `json:"-"`
}

// buildPage filters, sorts and paginates the dataset for the request
func buildPage(r *http.Request) (*rowPage, error) {
	ds, err := engine.Dataset(r.Context())
	if err != nil {
		return nil, err
	}
	fs, err := apphttp.ParseFilter(r.URL.Query(), ds.DefaultFilter())
	if err != nil {
		return nil, err
	}
	working, err := engine.WorkingSet(r.Context(), fs)
	if err != nil {
		return nil, err
	}

	q := r.URL.Query()
	sortField := q.Get("sort")
	if sortField == "" {
		sortField = "date"
	}
	order := q.Get("order")
	if order != "desc" {
		order = "asc"
	}
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	if perPage < 1 || perPage > 500 {
		perPage = defaultPerPage
	}

	sorted := sortRecords(working, sortField, order)

	totalCount := sorted.Len()
	totalPages := sorted.TotalPages(perPage)
	if page > totalPages && totalPages > 0 {
		page = totalPages
	}
	paginated := sorted.Paginate(page, perPage)

	pageStart := (page-1)*perPage + 1
	pageEnd := pageStart + paginated.Len() - 1
	if totalCount == 0 {
		pageStart, pageEnd = 0, 0
	}

	return &rowPage{
		Rows:       paginated.Records,
		Filter:     fs,
		Sort:       sortField,
		Order:      order,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		TotalCount: totalCount,
		PageStart:  pageStart,
		PageEnd:    pageEnd,
		PageRange:  calculatePageRange(page, totalPages),
		Options:    ds.Options(),
	}, nil
}

func (p *rowPage) templateData() map[string]any {
	return map[string]any{
		"Title":      "Rows",
		"ActiveTab":  "explorer",
		"Version":    version,
		"FormAction": "/explorer",
		"Snapshot":   &models.Snapshot{Filter: p.Filter, Options: p.Options},
		"Rows":       p.Rows,
		"Page":       p.Page,
		"PerPage":    p.PerPage,
		"TotalPages": p.TotalPages,
		"TotalCount": p.TotalCount,
		"PageStart":  p.PageStart,
		"PageEnd":    p.PageEnd,
		"PageRange":  p.PageRange,
		"Query":      pageQuery(p),
	}
}

func handleExplorer(w http.ResponseWriter, r *http.Request) {
	p, err := buildPage(r)
	if err != nil {
		apphttp.ErrorResponse(w, "Error loading rows: "+err.Error(), apphttp.StatusFor(err))
		return
	}
	apphttp.RenderTemplate(w, renderer, "base", p.templateData())
}

// handleRows serves one page as JSON, or as the rows partial when asked for HTML
func handleRows(w http.ResponseWriter, r *http.Request) {
	p, err := buildPage(r)
	if err != nil {
		apphttp.ErrorJSON(w, err.Error(), apphttp.StatusFor(err))
		return
	}
	if renderer != nil && strings.Contains(r.Header.Get("Accept"), "text/html") {
		apphttp.RenderPartial(w, renderer, "rows", p.templateData())
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, p)
}

// pageQuery carries the filter and sort across pagination links
func pageQuery(p *rowPage) template.URL {
	q := apphttp.FilterQuery(p.Filter)
	q.Set("sort", p.Sort)
	q.Set("order", p.Order)
	return template.URL(q.Encode())
}

// sortRecords returns a sorted copy of the set. Sorting is stable so equal
// keys keep dataset order.
func sortRecords(set *models.SalesSet, field, order string) *models.SalesSet {
	sorted := set.Copy()
	recs := sorted.Records

	var less func(i, j int) bool
	switch field {
	case "state":
		less = func(i, j int) bool { return recs[i].State < recs[j].State }
	case "category":
		less = func(i, j int) bool { return recs[i].ProductCategory < recs[j].ProductCategory }
	case "retailer":
		less = func(i, j int) bool { return strings.ToLower(recs[i].Retailer) < strings.ToLower(recs[j].Retailer) }
	case "method":
		less = func(i, j int) bool { return recs[i].SalesMethod < recs[j].SalesMethod }
	case "sales":
		less = func(i, j int) bool { return recs[i].TotalSales.LessThan(recs[j].TotalSales) }
	case "profit":
		less = func(i, j int) bool { return recs[i].OperatingProfit.LessThan(recs[j].OperatingProfit) }
	default:
		if order != "desc" {
			return set.SortByDate()
		}
		less = func(i, j int) bool { return recs[i].InvoiceDate.Before(recs[j].InvoiceDate) }
	}

	if order == "desc" {
		sort.SliceStable(recs, func(i, j int) bool { return less(j, i) })
	} else {
		sort.SliceStable(recs, less)
	}
	return sorted
}

// calculatePageRange returns a slice of page numbers to display in pagination
func calculatePageRange(currentPage, totalPages int) []int {
	if totalPages <= 7 {
		result := make([]int, totalPages)
		for i := range result {
			result[i] = i + 1
		}
		return result
	}

	// Show pages around current page
	start := currentPage - 2
	end := currentPage + 2
	if start < 1 {
		start = 1
		end = 5
	}
	if end > totalPages {
		end = totalPages
		start = max(totalPages-4, 1)
	}

	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}
