// Package cache memoizes the loaded dataset for the life of the process.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"salesdash/internal/models"
)

// Loader produces a fresh dataset on every call
type Loader interface {
	Load(ctx context.Context) (*models.Dataset, error)
}

// LoadFunc observes every load attempt, successful or not
type LoadFunc func(ds *models.Dataset, took time.Duration, err error)

// DatasetCache owns at most one Dataset. The first Get loads it; later calls
// return the same pointer until Invalidate is called. Failed loads are not
// cached, so the next Get tries again.
type DatasetCache struct {
	loader Loader
	onLoad LoadFunc

	mu    sync.Mutex
	ds    *models.Dataset
	loads int
}

// New creates a cache around loader. onLoad may be nil.
func New(loader Loader, onLoad LoadFunc) *DatasetCache {
	return &DatasetCache{loader: loader, onLoad: onLoad}
}

// Get returns the cached dataset, loading it first if needed.
// Concurrent callers wait for the single load in flight.
func (c *DatasetCache) Get(ctx context.Context) (*models.Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ds != nil {
		return c.ds, nil
	}

	start := time.Now()
	ds, err := c.loader.Load(ctx)
	c.loads++
	if c.onLoad != nil {
		c.onLoad(ds, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}

	c.ds = ds
	return ds, nil
}

// Peek returns the cached dataset without loading
func (c *DatasetCache) Peek() (*models.Dataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ds, c.ds != nil
}

// Invalidate drops the cached dataset; the next Get reloads the source
func (c *DatasetCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ds != nil {
		log.Info().Str("source", c.ds.Source()).Msg("Dataset cache invalidated")
	}
	c.ds = nil
}

// Loads returns how many times the loader has been called
func (c *DatasetCache) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}
