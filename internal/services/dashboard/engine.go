// Package dashboard runs one full recomputation pass per filter change:
// dataset (cached) -> working subset -> KPIs -> every chart reducer -> bindings.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"salesdash/internal/config"
	"salesdash/internal/models"
	"salesdash/internal/services/aggregate"
	"salesdash/internal/services/charts"
	"salesdash/internal/services/filter"
	"salesdash/internal/services/metrics"
	"salesdash/internal/telemetry"
)

// ErrUnknownScope is returned for an aggregate scope other than dataset or filtered
var ErrUnknownScope = errors.New("unknown aggregate scope")

// DatasetProvider hands out the loaded dataset; *cache.DatasetCache satisfies it
type DatasetProvider interface {
	Get(ctx context.Context) (*models.Dataset, error)
}

// Options configures an Engine
type Options struct {
	// Scope is config.ScopeDataset (KPIs and charts read the full dataset,
	// filters only change the row count) or config.ScopeFiltered.
	Scope         string
	FocusRegion   string // literal state or config.Auto
	FocusCategory string // literal category or config.Auto
	TopN          int
	Currency      string
}

// OptionsFromConfig maps the application config onto engine options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Scope:         cfg.AggregateScope,
		FocusRegion:   cfg.FocusRegion,
		FocusCategory: cfg.FocusCategory,
		TopN:          cfg.TopN,
		Currency:      cfg.CurrencySymbol,
	}
}

// Engine recomputes dashboard snapshots. It holds no per-user state;
// see Sessions for that.
type Engine struct {
	data      DatasetProvider
	opts      Options
	metrics   *metrics.Service
	telemetry *telemetry.Telemetry
	reducers  []Reducer
}

// NewEngine creates an engine over data. tel may be nil.
func NewEngine(data DatasetProvider, opts Options, tel *telemetry.Telemetry) (*Engine, error) {
	switch opts.Scope {
	case "":
		opts.Scope = config.ScopeDataset
	case config.ScopeDataset, config.ScopeFiltered:
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownScope, opts.Scope)
	}
	if opts.FocusRegion == "" {
		opts.FocusRegion = aggregate.DefaultRegion
	}
	if opts.FocusCategory == "" {
		opts.FocusCategory = aggregate.DefaultCategory
	}
	if opts.TopN <= 0 {
		opts.TopN = aggregate.DefaultTopN
	}

	return &Engine{
		data:      data,
		opts:      opts,
		metrics:   metrics.New(opts.Currency),
		telemetry: tel,
		reducers:  DefaultReducers(),
	}, nil
}

// Scope returns the configured aggregate scope
func (e *Engine) Scope() string {
	return e.opts.Scope
}

// Metrics returns the presenter used for KPI formatting
func (e *Engine) Metrics() *metrics.Service {
	return e.metrics
}

// Dataset returns the cached dataset, loading it if needed
func (e *Engine) Dataset(ctx context.Context) (*models.Dataset, error) {
	return e.data.Get(ctx)
}

// DefaultFilter selects all states, all categories and the full date span
func (e *Engine) DefaultFilter(ctx context.Context) (models.FilterState, error) {
	ds, err := e.data.Get(ctx)
	if err != nil {
		return models.FilterState{}, err
	}
	return ds.DefaultFilter(), nil
}

// WorkingSet returns the rows matching fs
func (e *Engine) WorkingSet(ctx context.Context, fs models.FilterState) (*models.SalesSet, error) {
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	ds, err := e.data.Get(ctx)
	if err != nil {
		return nil, err
	}
	return filter.ApplyDataset(ds, fs), nil
}

// Recompute runs one full pass for fs. A load failure is returned before any
// chart is computed; a failing reducer only marks its own chart.
func (e *Engine) Recompute(ctx context.Context, fs models.FilterState) (*models.Snapshot, error) {
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	ds, err := e.data.Get(ctx)
	if err != nil {
		return nil, err
	}

	working := filter.ApplyDataset(ds, fs)
	input := ds.Set()
	if e.opts.Scope == config.ScopeFiltered {
		input = working
	}

	snap := &models.Snapshot{
		Filter:     fs,
		Scope:      e.opts.Scope,
		Options:    ds.Options(),
		RowCount:   working.Len(),
		TotalRows:  ds.Len(),
		KPIs:       e.metrics.CalculateKPIs(input),
		Charts:     make([]models.ChartResult, 0, len(e.reducers)),
		ComputedAt: time.Now().UTC(),
	}
	if input.Len() == 0 {
		snap.Warnings = append(snap.Warnings, models.EmptyResultWarning{
			Chart:   "kpis",
			Message: "No rows match the current filters",
		})
	}

	params := Params{Focus: e.resolveFocus(input), TopN: e.opts.TopN}
	failed := 0
	for _, r := range e.reducers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, empty := e.run(r, input, params)
		if res.Error != "" {
			failed++
		} else if empty {
			snap.Warnings = append(snap.Warnings, models.EmptyResultWarning{
				Chart:   r.ID,
				Message: emptyMessage(r.ID, params.Focus),
			})
			if e.telemetry != nil {
				e.telemetry.Empty(r.ID)
			}
		}
		snap.Charts = append(snap.Charts, res)
	}

	if e.telemetry != nil {
		e.telemetry.Recompute(e.opts.Scope)
	}
	log.Debug().
		Str("scope", e.opts.Scope).
		Int("working_rows", working.Len()).
		Int("input_rows", input.Len()).
		Int("failed_charts", failed).
		Msg("Recomputed dashboard")

	return snap, nil
}

// run executes one reducer and binds its series, converting a returned
// error or a panic into ChartResult.Error
func (e *Engine) run(r Reducer, input *models.SalesSet, p Params) (res models.ChartResult, empty bool) {
	res.ID = r.ID
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			res.Spec = nil
			res.Error = fmt.Sprintf("reducer panicked: %v", rec)
		}
		if e.telemetry != nil {
			e.telemetry.Reducer(r.ID, time.Since(start), res.Error != "")
		}
		if res.Error != "" {
			log.Error().Str("chart", r.ID).Str("error", res.Error).Msg("Chart reducer failed")
		}
	}()

	series, err := r.Reduce(input, p)
	if err != nil {
		res.Error = err.Error()
		return res, false
	}
	spec, err := charts.Bind(r.ID, series, p.Focus)
	if err != nil {
		res.Error = err.Error()
		return res, false
	}
	res.Spec = spec
	return res, series.IsEmpty()
}

// resolveFocus turns "auto" into the top state by profit and the top
// category by sales of set
func (e *Engine) resolveFocus(set *models.SalesSet) charts.Focus {
	focus := charts.Focus{Region: e.opts.FocusRegion, Category: e.opts.FocusCategory}
	if focus.Region == config.Auto {
		focus.Region = aggregate.TopState(set)
		if focus.Region == "" {
			focus.Region = aggregate.DefaultRegion
		}
	}
	if focus.Category == config.Auto {
		focus.Category = aggregate.TopCategory(set)
		if focus.Category == "" {
			focus.Category = aggregate.DefaultCategory
		}
	}
	return focus
}

func emptyMessage(id string, focus charts.Focus) string {
	switch id {
	case charts.SalesByCategory:
		return fmt.Sprintf("No sales recorded in %s", focus.Region)
	case charts.SalesByMethod, charts.SalesByRetailer:
		return fmt.Sprintf("No %s sales recorded in %s", focus.Category, focus.Region)
	default:
		return "No rows match the current filters"
	}
}
