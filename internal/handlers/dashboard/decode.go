package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"

	apphttp "salesdash/internal/http"
	"salesdash/internal/models"
)

// filterBody is the JSON form of a filter update. Omitted fields keep the
// session's current value; an empty list selects nothing.
type filterBody struct {
	States     *[]string `json:"states"`
	Categories *[]string `json:"categories"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
}

func decodeFilter(w http.ResponseWriter, r *http.Request, current models.FilterState) (models.FilterState, error) {
	var body filterBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return models.FilterState{}, fmt.Errorf("%w: %v", apphttp.ErrBadFilter, err)
	}

	states, categories := current.States, current.Categories
	start, end := current.Start, current.End
	if body.States != nil {
		states = *body.States
	}
	if body.Categories != nil {
		categories = *body.Categories
	}

	var err error
	if body.Start != "" {
		if start, err = apphttp.ParseDate(body.Start); err != nil {
			return models.FilterState{}, fmt.Errorf("%w: start: %v", apphttp.ErrBadFilter, err)
		}
	}
	if body.End != "" {
		if end, err = apphttp.ParseDate(body.End); err != nil {
			return models.FilterState{}, fmt.Errorf("%w: end: %v", apphttp.ErrBadFilter, err)
		}
	}
	return models.NewFilterState(states, categories, start, end)
}
