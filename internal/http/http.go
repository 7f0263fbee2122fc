// Package http holds request parsing and response helpers shared by the handlers.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"salesdash/internal/models"
	"salesdash/internal/services/dataloader"
	"salesdash/internal/templates"
)

// DateLayout is the wire format of filter dates
const DateLayout = "2006-01-02"

// RenderTemplate renders a full page template with data
func RenderTemplate(w http.ResponseWriter, renderer *templates.Renderer, templateName string, data map[string]any) {
	if renderer != nil {
		renderer.Render(w, templateName, data)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte("<html><body><h1>" + templateName + "</h1><p>Templates not loaded. Check configuration.</p></body></html>"))
}

// RenderPartial renders a partial template with data
func RenderPartial(w http.ResponseWriter, renderer *templates.Renderer, partialName string, data map[string]any) {
	if renderer != nil {
		renderer.RenderPartial(w, partialName, data)
		return
	}
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSON encodes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// ErrorResponse sends a plain text error response
func ErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	log.Warn().Int("status", statusCode).Msg(message)
	http.Error(w, message, statusCode)
}

// ErrorJSON sends {"error": message} with the given status
func ErrorJSON(w http.ResponseWriter, message string, statusCode int) {
	log.Warn().Int("status", statusCode).Msg(message)
	WriteJSON(w, statusCode, map[string]string{"error": message})
}

// StatusFor maps an error from the dashboard pipeline to an HTTP status.
// Load failures are server errors; bad filter input is the client's.
func StatusFor(err error) int {
	var loadErr *dataloader.LoadError
	switch {
	case errors.As(err, &loadErr):
		return http.StatusInternalServerError
	case errors.Is(err, models.ErrInvalidDateRange), errors.Is(err, ErrBadFilter):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrBadFilter marks unparseable filter parameters
var ErrBadFilter = errors.New("bad filter")

// ParseFilter reads a FilterState from query parameters, starting from def.
// state and category may repeat; an absent parameter keeps the default
// selection while a present one replaces it, so "state=" alone selects
// no states. start and end are YYYY-MM-DD.
func ParseFilter(q url.Values, def models.FilterState) (models.FilterState, error) {
	fs := models.FilterState{
		States:     def.States,
		Categories: def.Categories,
		Start:      def.Start,
		End:        def.End,
	}

	if values, ok := q["state"]; ok {
		fs.States = nonEmpty(values)
	}
	if values, ok := q["category"]; ok {
		fs.Categories = nonEmpty(values)
	}

	var err error
	if s := q.Get("start"); s != "" {
		if fs.Start, err = ParseDate(s); err != nil {
			return models.FilterState{}, fmt.Errorf("%w: start: %v", ErrBadFilter, err)
		}
	}
	if s := q.Get("end"); s != "" {
		if fs.End, err = ParseDate(s); err != nil {
			return models.FilterState{}, fmt.Errorf("%w: end: %v", ErrBadFilter, err)
		}
	}

	return models.NewFilterState(fs.States, fs.Categories, fs.Start, fs.End)
}

// FilterQuery renders fs back into query parameters
func FilterQuery(fs models.FilterState) url.Values {
	q := url.Values{}
	q["state"] = append([]string{""}, fs.States...)
	q["category"] = append([]string{""}, fs.Categories...)
	if !fs.Start.IsZero() {
		q.Set("start", fs.Start.Format(DateLayout))
	}
	if !fs.End.IsZero() {
		q.Set("end", fs.End.Format(DateLayout))
	}
	return q
}

// ParseDate parses a YYYY-MM-DD date as UTC midnight
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
