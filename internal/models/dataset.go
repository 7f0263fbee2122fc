package models

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

// Dataset is the complete, immutable table loaded from a source.
// The distinct state and category indices are built lazily from the full
// table and never depend on any filter.
type Dataset struct {
	set      *SalesSet
	source   string
	loadedAt time.Time

	statesOnce     sync.Once
	states         []string
	categoriesOnce sync.Once
	categories     []string
}

// NewDataset takes ownership of records; callers must not modify them afterwards
func NewDataset(source string, records []SalesRecord) *Dataset {
	return &Dataset{
		set:      NewSalesSet(records),
		source:   source,
		loadedAt: time.Now().UTC(),
	}
}

// Source names where the dataset was read from
func (d *Dataset) Source() string {
	return d.source
}

// LoadedAt returns when the dataset was built
func (d *Dataset) LoadedAt() time.Time {
	return d.loadedAt
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	return d.set.Len()
}

// Set returns the full table. The returned set is shared and must be treated as read-only.
func (d *Dataset) Set() *SalesSet {
	return d.set
}

// States returns the distinct State values in first-appearance order
func (d *Dataset) States() []string {
	d.statesOnce.Do(func() {
		d.states = lo.Uniq(lo.Map(d.set.Records, func(r SalesRecord, _ int) string { return r.State }))
	})
	return append([]string(nil), d.states...)
}

// Categories returns the distinct ProductCategory values in first-appearance order
func (d *Dataset) Categories() []string {
	d.categoriesOnce.Do(func() {
		d.categories = lo.Uniq(lo.Map(d.set.Records, func(r SalesRecord, _ int) string { return r.ProductCategory }))
	})
	return append([]string(nil), d.categories...)
}

// Span returns the earliest and latest invoice dates
func (d *Dataset) Span() (time.Time, time.Time) {
	return d.set.MinDate(), d.set.MaxDate()
}

// Options returns the filter option lists for the user-interaction layer
func (d *Dataset) Options() FilterOptions {
	minDate, maxDate := d.Span()
	return FilterOptions{
		States:     d.States(),
		Categories: d.Categories(),
		MinDate:    minDate,
		MaxDate:    maxDate,
	}
}

// DefaultFilter selects every state, every category and the full date span
func (d *Dataset) DefaultFilter() FilterState {
	minDate, maxDate := d.Span()
	return FilterState{
		States:     d.States(),
		Categories: d.Categories(),
		Start:      Day(minDate),
		End:        Day(maxDate),
	}
}
