package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Source kinds
const (
	SourceFile = "file"
	SourceS3   = "s3"
	SourceSQL  = "sql"
)

// Aggregation scopes. ScopeDataset keeps every KPI and chart on the full
// dataset (filters only change the row count); ScopeFiltered feeds the
// filtered rows to every KPI and chart.
const (
	ScopeDataset  = "dataset"
	ScopeFiltered = "filtered"
)

// Auto resolves the focus region/category from the data
const Auto = "auto"

// SourceConfig selects where the sales table is read from
type SourceConfig struct {
	Kind string `yaml:"kind" json:"kind"`

	// file
	Path string `yaml:"path" json:"path"`

	// s3
	Bucket    string `yaml:"bucket" json:"bucket"`
	Key       string `yaml:"key" json:"key"`
	Region    string `yaml:"region" json:"region"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	PathStyle bool   `yaml:"path_style" json:"path_style"`

	// sql
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"-"`
	Query  string `yaml:"query" json:"query"`
}

// Config holds application configuration
type Config struct {
	// Server settings
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	Debug      bool   `yaml:"debug" json:"debug"`

	// Directories. An empty TemplatesDirectory serves the embedded templates.
	DataDirectory      string `yaml:"data_directory" json:"data_directory"`
	TemplatesDirectory string `yaml:"templates_directory" json:"templates_directory"`

	Source SourceConfig `yaml:"source" json:"source"`

	// Dashboard behaviour
	AggregateScope string `yaml:"aggregate_scope" json:"aggregate_scope"`
	FocusRegion    string `yaml:"focus_region" json:"focus_region"`
	FocusCategory  string `yaml:"focus_category" json:"focus_category"`
	TopN           int    `yaml:"top_n" json:"top_n"`
	CurrencySymbol string `yaml:"currency_symbol" json:"currency_symbol"`

	// Passphrase for an encrypted data directory; normally left empty and prompted for
	Password string `yaml:"-" json:"-"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	return &Config{
		ListenAddr:    ":8080",
		Debug:         false,
		DataDirectory: filepath.Join(wd, "data"),
		Source: SourceConfig{
			Kind: SourceFile,
			Path: "Adidas_Salesdata.csv",
		},
		AggregateScope: ScopeDataset,
		FocusRegion:    "New York",
		FocusCategory:  "Apparel",
		TopN:           10,
		CurrencySymbol: "$",
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// SALESDASH_CONFIG (if any), then environment variables
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("SALESDASH_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays values from a YAML file
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("Loaded config file")
	return nil
}

// ApplyEnv overrides settings from SALESDASH_* environment variables
func (c *Config) ApplyEnv() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("SALESDASH_LISTEN_ADDR", &c.ListenAddr)
	if debug := os.Getenv("SALESDASH_DEBUG"); debug == "true" || debug == "1" {
		c.Debug = true
	}
	setString("SALESDASH_DATA_DIR", &c.DataDirectory)
	setString("SALESDASH_TEMPLATES_DIR", &c.TemplatesDirectory)

	setString("SALESDASH_SOURCE", &c.Source.Kind)
	setString("SALESDASH_SOURCE_PATH", &c.Source.Path)
	setString("SALESDASH_S3_BUCKET", &c.Source.Bucket)
	setString("SALESDASH_S3_KEY", &c.Source.Key)
	setString("SALESDASH_S3_REGION", &c.Source.Region)
	setString("SALESDASH_S3_ENDPOINT", &c.Source.Endpoint)
	if ps := os.Getenv("SALESDASH_S3_PATH_STYLE"); ps != "" {
		c.Source.PathStyle = strings.EqualFold(ps, "true") || ps == "1"
	}
	setString("SALESDASH_SQL_DRIVER", &c.Source.Driver)
	setString("SALESDASH_SQL_DSN", &c.Source.DSN)
	setString("SALESDASH_SQL_QUERY", &c.Source.Query)

	setString("SALESDASH_SCOPE", &c.AggregateScope)
	setString("SALESDASH_FOCUS_REGION", &c.FocusRegion)
	setString("SALESDASH_FOCUS_CATEGORY", &c.FocusCategory)
	setString("SALESDASH_CURRENCY", &c.CurrencySymbol)
	if topN := os.Getenv("SALESDASH_TOP_N"); topN != "" {
		if n, err := strconv.Atoi(topN); err == nil {
			c.TopN = n
		} else {
			log.Warn().Str("value", topN).Msg("Ignoring invalid SALESDASH_TOP_N")
		}
	}
	setString("SALESDASH_PASSWORD", &c.Password)
}

// Validate rejects settings the dashboard cannot run with
func (c *Config) Validate() error {
	var errs []error

	switch c.AggregateScope {
	case ScopeDataset, ScopeFiltered:
	default:
		errs = append(errs, fmt.Errorf("aggregate_scope must be %q or %q, got %q", ScopeDataset, ScopeFiltered, c.AggregateScope))
	}

	switch c.Source.Kind {
	case SourceFile:
		if c.Source.Path == "" {
			errs = append(errs, errors.New("file source requires a path"))
		}
	case SourceS3:
		if c.Source.Bucket == "" || c.Source.Key == "" {
			errs = append(errs, errors.New("s3 source requires bucket and key"))
		}
	case SourceSQL:
		if c.Source.Driver == "" || c.Source.DSN == "" {
			errs = append(errs, errors.New("sql source requires driver and dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source kind %q", c.Source.Kind))
	}

	if c.TopN < 1 {
		errs = append(errs, fmt.Errorf("top_n must be positive, got %d", c.TopN))
	}
	if c.FocusRegion == "" || c.FocusCategory == "" {
		errs = append(errs, errors.New("focus_region and focus_category must not be empty"))
	}

	return errors.Join(errs...)
}

// EnsureDataDirectory creates the data directory if it does not exist
func (c *Config) EnsureDataDirectory() error {
	return os.MkdirAll(c.DataDirectory, 0755)
}
