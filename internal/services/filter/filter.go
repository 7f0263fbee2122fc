// Package filter derives the working subset from the dataset and a filter state.
package filter

import (
	"salesdash/internal/models"
)

// Apply returns the records of set matching fs, in their original order.
// An empty state or category selection matches nothing. A date range outside
// the data simply yields fewer (or no) rows.
func Apply(set *models.SalesSet, fs models.FilterState) *models.SalesSet {
	if set.Len() == 0 || len(fs.States) == 0 || len(fs.Categories) == 0 {
		return &models.SalesSet{}
	}

	states, categories := fs.StateSet(), fs.CategorySet()
	return set.Where(func(r *models.SalesRecord) bool {
		return fs.Matches(r, states, categories)
	})
}

// ApplyDataset is Apply over the dataset's full table
func ApplyDataset(ds *models.Dataset, fs models.FilterState) *models.SalesSet {
	return Apply(ds.Set(), fs)
}
