// Package system serves the operational endpoints: health, version, data
// export and the cached charting script.
package system

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apphttp "salesdash/internal/http"
	"salesdash/internal/services/storage"
	"salesdash/internal/version"
)

// PlotlyURL is fetched once and cached under the cache directory
const PlotlyURL = "https://cdn.plot.ly/plotly-2.35.2.min.js"

// fetchTimeout bounds the CDN download
const fetchTimeout = 30 * time.Second

var (
	store    *storage.Storage
	cacheDir string
	cdn      = &http.Client{Timeout: fetchTimeout}
	fetch    = cdn.Get
)

// Initialize sets up the system package with required dependencies
func Initialize(s *storage.Storage, cache string) {
	store = s
	cacheDir = cache
}

// RegisterRoutes registers all system routes
func RegisterRoutes(r chi.Router) {
	r.Get("/api/health", HandleHealth)
	r.Get("/api/version", HandleVersion)
	r.Get("/api/dataset/export", HandleExport)
	r.Get("/static/plotly.min.js", HandlePlotly)
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	apphttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func HandleVersion(w http.ResponseWriter, r *http.Request) {
	apphttp.WriteJSON(w, http.StatusOK, version.Get())
}

// HandleExport streams the data files as a zip. Encrypted files are written
// decrypted so the archive can be opened anywhere.
func HandleExport(w http.ResponseWriter, r *http.Request) {
	if store == nil {
		apphttp.ErrorJSON(w, "no data directory configured", http.StatusNotFound)
		return
	}
	files, err := store.DataFiles()
	if err != nil {
		apphttp.ErrorJSON(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Read everything first so a locked store fails before headers are sent
	contents := make([][]byte, len(files))
	for i, name := range files {
		data, err := store.ReadFile(name)
		if err != nil {
			apphttp.ErrorJSON(w, fmt.Sprintf("read %s: %v", name, err), apphttp.StatusFor(err))
			return
		}
		contents[i] = data
	}

	filename := fmt.Sprintf("salesdash_export_%s.zip", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	zw := zip.NewWriter(w)
	for i, name := range files {
		f, err := zw.Create(name)
		if err == nil {
			_, err = f.Write(contents[i])
		}
		if err != nil {
			// Headers are already sent; all we can do is log
			log.Error().Err(err).Str("file", name).Msg("Export aborted")
			return
		}
	}
	if err := zw.Close(); err != nil {
		log.Error().Err(err).Msg("Export aborted")
		return
	}
	log.Info().Int("files", len(files)).Msg("Exported data directory")
}

// HandlePlotly serves the charting script from the cache, fetching it on first use
func HandlePlotly(w http.ResponseWriter, r *http.Request) {
	cachePath := filepath.Join(cacheDir, "plotly.min.js")

	if data, err := os.ReadFile(cachePath); err == nil {
		writeScript(w, data)
		return
	}

	log.Info().Str("url", PlotlyURL).Msg("Fetching plotly.min.js")
	resp, err := fetch(PlotlyURL)
	if err != nil {
		http.Error(w, "Failed to fetch plotly: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		http.Error(w, "CDN returned status: "+resp.Status, http.StatusBadGateway)
		return
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, "Failed to read plotly response: "+err.Error(), http.StatusBadGateway)
		return
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		log.Warn().Err(err).Msg("Could not create cache directory")
	} else if err := os.WriteFile(cachePath, data, 0644); err != nil {
		log.Warn().Err(err).Msg("Could not cache plotly.min.js")
	}

	writeScript(w, data)
}

func writeScript(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Write(data)
}
