// Package source reads the raw sales table from a file, an S3 object or a SQL
// query. Every source yields the same shape: a header row followed by data
// rows, all as text. Parsing into records is the dataloader's job.
package source

import (
	"context"
	"fmt"

	"salesdash/internal/config"
	"salesdash/internal/services/storage"
)

// Source yields the raw string table, header row first
type Source interface {
	Name() string
	Rows(ctx context.Context) ([][]string, error)
}

// FromConfig builds the source selected by cfg
func FromConfig(ctx context.Context, cfg config.SourceConfig, store *storage.Storage) (Source, error) {
	switch cfg.Kind {
	case config.SourceFile, "":
		if store == nil {
			return nil, fmt.Errorf("file source requires storage")
		}
		return NewFile(store, cfg.Path), nil
	case config.SourceS3:
		return NewS3(ctx, S3Config{
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			Key:       cfg.Key,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
		})
	case config.SourceSQL:
		db, err := OpenSQL(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &SQL{DB: db, Query: cfg.Query, Label: cfg.Driver}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
