package models

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
)

// ErrInvalidDateRange is returned when a filter's start date falls after its end date
var ErrInvalidDateRange = errors.New("start date is after end date")

// FilterState holds the user's current selections. An empty States or
// Categories list selects nothing; it never means "all".
type FilterState struct {
	States     []string  `json:"states"`
	Categories []string  `json:"categories"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// NewFilterState builds a validated FilterState with both dates truncated to calendar days
func NewFilterState(states, categories []string, start, end time.Time) (FilterState, error) {
	fs := FilterState{
		States:     append([]string{}, states...),
		Categories: append([]string{}, categories...),
		Start:      Day(start),
		End:        Day(end),
	}
	if err := fs.Validate(); err != nil {
		return FilterState{}, err
	}
	return fs, nil
}

// Validate checks the date range invariant
func (f FilterState) Validate() error {
	if Day(f.Start).After(Day(f.End)) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidDateRange,
			f.Start.Format("2006-01-02"), f.End.Format("2006-01-02"))
	}
	return nil
}

// Matches reports whether a record satisfies every criterion of the filter
func (f FilterState) Matches(r *SalesRecord, states, categories map[string]struct{}) bool {
	if _, ok := states[r.State]; !ok {
		return false
	}
	if _, ok := categories[r.ProductCategory]; !ok {
		return false
	}
	return InDateRange(r.InvoiceDate, f.Start, f.End)
}

// StateSet returns the selected states as a lookup set
func (f FilterState) StateSet() map[string]struct{} {
	return lo.SliceToMap(f.States, func(s string) (string, struct{}) { return s, struct{}{} })
}

// CategorySet returns the selected categories as a lookup set
func (f FilterState) CategorySet() map[string]struct{} {
	return lo.SliceToMap(f.Categories, func(c string) (string, struct{}) { return c, struct{}{} })
}

// Equal reports whether two filters select the same rows
func (f FilterState) Equal(other FilterState) bool {
	return sameSet(f.States, other.States) &&
		sameSet(f.Categories, other.Categories) &&
		Day(f.Start).Equal(Day(other.Start)) &&
		Day(f.End).Equal(Day(other.End))
}

func sameSet(a, b []string) bool {
	ua, ub := lo.Uniq(a), lo.Uniq(b)
	if len(ua) != len(ub) {
		return false
	}
	slices.Sort(ua)
	slices.Sort(ub)
	return slices.Equal(ua, ub)
}

// FilterOptions lists the selectable values, always taken from the full dataset
type FilterOptions struct {
	States     []string  `json:"states"`
	Categories []string  `json:"categories"`
	MinDate    time.Time `json:"min_date"`
	MaxDate    time.Time `json:"max_date"`
}
