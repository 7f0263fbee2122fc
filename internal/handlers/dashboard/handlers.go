package dashboard

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apphttp "salesdash/internal/http"
	"salesdash/internal/models"
	"salesdash/internal/services/cache"
	"salesdash/internal/services/charts"
	svc "salesdash/internal/services/dashboard"
	"salesdash/internal/templates"
)

var (
	engine   *svc.Engine
	sessions *svc.Sessions
	datasets *cache.DatasetCache
	renderer *templates.Renderer
	version  string
)

// Initialize sets up the dashboard package with required dependencies
func Initialize(e *svc.Engine, s *svc.Sessions, c *cache.DatasetCache, r *templates.Renderer, v string) {
	engine = e
	sessions = s
	datasets = c
	renderer = r
	version = v
}

// RegisterRoutes registers all dashboard routes
func RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", handleDashboard)
	r.Get("/dashboard/kpis", handleKPIsPartial)

	r.Get("/api/dashboard", handleSnapshot)
	r.Get("/api/filters", handleFilters)
	r.Get("/api/charts/{chartID}", handleChart)
	r.Post("/api/dataset/reload", handleReload)

	r.Post("/api/sessions", handleCreateSession)
	r.Get("/api/sessions/{id}", handleGetSession)
	r.Get("/api/sessions/{id}/filter", handleGetSessionFilter)
	r.Put("/api/sessions/{id}/filter", handleSetSessionFilter)
	r.Delete("/api/sessions/{id}", handleDeleteSession)
}

// snapshotFor parses the request's filter and runs one recomputation
func snapshotFor(r *http.Request) (*models.Snapshot, error) {
	def, err := engine.DefaultFilter(r.Context())
	if err != nil {
		return nil, err
	}
	fs, err := apphttp.ParseFilter(r.URL.Query(), def)
	if err != nil {
		return nil, err
	}
	return engine.Recompute(r.Context(), fs)
}

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	pageData := map[string]any{
		"Title":      "Dashboard",
		"ActiveTab":  "dashboard",
		"Version":    version,
		"FormAction": "/dashboard",
	}

	snap, err := snapshotFor(r)
	if err != nil {
		status := apphttp.StatusFor(err)
		log.Error().Err(err).Int("status", status).Msg("Dashboard unavailable")
		if status == http.StatusBadRequest {
			apphttp.ErrorResponse(w, err.Error(), status)
			return
		}
		// Load failures are shown in place of the dashboard, before any chart
		pageData["Error"] = err
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		apphttp.RenderTemplate(w, renderer, "base", pageData)
		return
	}

	pageData["Snapshot"] = snap
	apphttp.RenderTemplate(w, renderer, "base", pageData)
}

func handleKPIsPartial(w http.ResponseWriter, r *http.Request) {
	snap, err := snapshotFor(r)
	if err != nil {
		apphttp.ErrorResponse(w, err.Error(), apphttp.StatusFor(err))
		return
	}
	if renderer == nil {
		apphttp.WriteJSON(w, http.StatusOK, snap.KPIs)
		return
	}
	renderer.RenderPartial(w, "kpis", snap)
}

func handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := snapshotFor(r)
	if err != nil {
		apphttp.ErrorJSON(w, err.Error(), apphttp.StatusFor(err))
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, snap)
}

func handleFilters(w http.ResponseWriter, r *http.Request) {
	ds, err := engine.Dataset(r.Context())
	if err != nil {
		apphttp.ErrorJSON(w, err.Error(), apphttp.StatusFor(err))
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{
		"options": ds.Options(),
		"default": ds.DefaultFilter(),
		"scope":   engine.Scope(),
	})
}

func handleChart(w http.ResponseWriter, r *http.Request) {
	chartID := chi.URLParam(r, "chartID")
	if !charts.Known(chartID) {
		apphttp.ErrorJSON(w, "unknown chart "+chartID, http.StatusNotFound)
		return
	}

	snap, err := snapshotFor(r)
	if err != nil {
		apphttp.ErrorJSON(w, err.Error(), apphttp.StatusFor(err))
		return
	}
	chart, _ := snap.Chart(chartID)
	apphttp.WriteJSON(w, http.StatusOK, chart)
}

func handleReload(w http.ResponseWriter, r *http.Request) {
	previousRows := 0
	if prev, ok := datasets.Peek(); ok {
		previousRows = prev.Len()
	}

	datasets.Invalidate()
	ds, err := datasets.Get(r.Context())
	if err != nil {
		apphttp.ErrorJSON(w, err.Error(), apphttp.StatusFor(err))
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{
		"source":        ds.Source(),
		"rows":          ds.Len(),
		"previous_rows": previousRows,
		"loaded_at":     ds.LoadedAt(),
		"loads":         datasets.Loads(),
	})
}

func handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := sessions.Create(r.Context())
	if err != nil {
		apphttp.ErrorJSON(w, err.Error(), apphttp.StatusFor(err))
		return
	}
	w.Header().Set("Location", "/api/sessions/"+sess.ID)
	apphttp.WriteJSON(w, http.StatusCreated, sess)
}

func handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		sessionError(w, err)
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, sess)
}

func handleGetSessionFilter(w http.ResponseWriter, r *http.Request) {
	sess, err := sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		sessionError(w, err)
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, sess.Filter)
}

// handleSetSessionFilter accepts the filter either as a JSON FilterState body
// or as the same query parameters GET /api/dashboard takes
func handleSetSessionFilter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, err := sessions.Get(id)
	if err != nil {
		sessionError(w, err)
		return
	}

	var fs models.FilterState
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		fs, err = decodeFilter(w, r, current.Filter)
	} else {
		fs, err = apphttp.ParseFilter(r.URL.Query(), current.Filter)
	}
	if err != nil {
		apphttp.ErrorJSON(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess, err := sessions.SetFilter(r.Context(), id, fs)
	if err != nil {
		sessionError(w, err)
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, sess)
}

func handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := sessions.Delete(chi.URLParam(r, "id")); err != nil {
		sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, svc.ErrSessionNotFound) {
		apphttp.ErrorJSON(w, err.Error(), http.StatusNotFound)
		return
	}
	apphttp.ErrorJSON(w, err.Error(), apphttp.StatusFor(err))
}
