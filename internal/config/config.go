// Package config loads the single configuration document that governs
// the process: storage location, HTTP surface, annotator model paths,
// per-language clustering parameters, and the clustering loop's own
// scheduling knobs.
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/0xfaulty/tgcontest/internal/model"
)

// IterTimestampMode selects how the clustering loop derives the reference
// timestamp published alongside a ThreadIndex.
type IterTimestampMode string

const (
	IterTimestampFromDocuments IterTimestampMode = "documents"
	IterTimestampWallClock     IterTimestampMode = "wallclock"
)

// ClusteringParams are the size-adaptive thresholds and batching knobs
// BatchedSLINK and Threader use for one language.
type ClusteringParams struct {
	SmallClusterThreshold  float64 `envconfig:"SMALL_CLUSTER_THRESHOLD" default:"0.3"`
	SmallClusterSize       int     `envconfig:"SMALL_CLUSTER_SIZE" default:"5"`
	MediumClusterThreshold float64 `envconfig:"MEDIUM_CLUSTER_THRESHOLD" default:"0.24"`
	MediumClusterSize      int     `envconfig:"MEDIUM_CLUSTER_SIZE" default:"10"`
	LargeClusterThreshold  float64 `envconfig:"LARGE_CLUSTER_THRESHOLD" default:"0.19"`
	LargeClusterSize       int     `envconfig:"LARGE_CLUSTER_SIZE" default:"30"`

	BatchSize             int `envconfig:"BATCH_SIZE" default:"100"`
	BatchIntersectionSize int `envconfig:"BATCH_INTERSECTION_SIZE" default:"20"`

	UseTimestampMoving     bool `envconfig:"USE_TIMESTAMP_MOVING" default:"false"`
	BanThreadsFromSameSite bool `envconfig:"BAN_THREADS_FROM_SAME_SITE" default:"true"`
}

// Validate checks that thresholds are non-increasing as cluster size
// grows and that batching parameters make sense.
func (p ClusteringParams) Validate() error {
	if p.SmallClusterThreshold < p.MediumClusterThreshold {
		return fmt.Errorf("small cluster threshold must be >= medium cluster threshold")
	}
	if p.MediumClusterThreshold < p.LargeClusterThreshold {
		return fmt.Errorf("medium cluster threshold must be >= large cluster threshold")
	}
	if p.SmallClusterSize <= 0 || p.MediumClusterSize <= p.SmallClusterSize || p.LargeClusterSize <= p.MediumClusterSize {
		return fmt.Errorf("cluster size bands must be strictly increasing and positive")
	}
	if p.BatchSize <= 1 {
		return fmt.Errorf("batch size must be > 1")
	}
	if p.BatchIntersectionSize <= 0 || p.BatchIntersectionSize >= p.BatchSize {
		return fmt.Errorf("batch intersection size must be in (0, batch size)")
	}
	return nil
}

// Config is the single document that governs the process.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL     string `envconfig:"DATABASE_URL" required:"true"`
	DBFailIfMissing bool   `envconfig:"DB_FAIL_IF_MISSING" default:"false"`
	DBMinConns      int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConns      int32  `envconfig:"DB_MAX_CONNS" default:"8"`

	Port           int `envconfig:"PORT" default:"8090"`
	ThreadPoolSize int `envconfig:"THREAD_POOL_SIZE" default:"8"`

	SkipIrrelevantDocs bool `envconfig:"SKIP_IRRELEVANT_DOCS" default:"true"`

	LanguageModelPath   string `envconfig:"ANNOTATOR_LANGUAGE_MODEL_PATH" default:""`
	CategoryModelPath   string `envconfig:"ANNOTATOR_CATEGORY_MODEL_PATH" default:""`
	EmbeddingModelPath  string `envconfig:"ANNOTATOR_EMBEDDING_MODEL_PATH" default:""`
	AgencyRatingPath    string `envconfig:"AGENCY_RATING_PATH" default:""`

	RebuildIntervalMs      int     `envconfig:"REBUILD_INTERVAL_MS" default:"100"`
	IterTimestampPercentile float64 `envconfig:"ITER_TIMESTAMP_PERCENTILE" default:"0.99"`
	IterTimestampMode      IterTimestampMode `envconfig:"ITER_TIMESTAMP_MODE" default:"documents"`
	RankHalfLifeHours      float64 `envconfig:"RANK_HALF_LIFE_HOURS" default:"6"`

	RU    ClusteringParams
	EN    ClusteringParams
	Other ClusteringParams
}

// Load reads process environment variables into a Config and validates
// it. Per-language clustering parameters are loaded with their own
// prefix since envconfig has no notion of a nested-struct field prefix.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := envconfig.Process("CLUSTER_RU", &cfg.RU); err != nil {
		return nil, fmt.Errorf("load ru clustering params: %w", err)
	}
	if err := envconfig.Process("CLUSTER_EN", &cfg.EN); err != nil {
		return nil, fmt.Errorf("load en clustering params: %w", err)
	}
	if err := envconfig.Process("CLUSTER_OTHER", &cfg.Other); err != nil {
		return nil, fmt.Errorf("load other clustering params: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks that every field is well-formed before the process
// starts using it.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if c.ThreadPoolSize < 1 {
		return fmt.Errorf("THREAD_POOL_SIZE must be >= 1")
	}
	if c.RebuildIntervalMs < 1 {
		return fmt.Errorf("REBUILD_INTERVAL_MS must be >= 1")
	}
	if c.IterTimestampPercentile <= 0 || c.IterTimestampPercentile > 1 {
		return fmt.Errorf("ITER_TIMESTAMP_PERCENTILE must be in (0, 1]")
	}
	if c.IterTimestampMode != IterTimestampFromDocuments && c.IterTimestampMode != IterTimestampWallClock {
		return fmt.Errorf("ITER_TIMESTAMP_MODE must be %q or %q", IterTimestampFromDocuments, IterTimestampWallClock)
	}
	if c.IterTimestampMode == IterTimestampWallClock {
		return fmt.Errorf("ITER_TIMESTAMP_MODE=wallclock is not implemented, use %q", IterTimestampFromDocuments)
	}
	if c.RankHalfLifeHours <= 0 {
		return fmt.Errorf("RANK_HALF_LIFE_HOURS must be > 0")
	}
	for _, p := range []ClusteringParams{c.RU, c.EN, c.Other} {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ParamsFor returns the clustering parameters configured for a language.
// OTHER's parameters are used as a fallback for LanguageUndefined, which
// never reaches clustering (the clustering loop builds clusterers only
// for RU, EN and OTHER and skips documents of any other language) but
// keeps ParamsFor total.
func (c *Config) ParamsFor(lang model.Language) ClusteringParams {
	switch lang {
	case model.LanguageRU:
		return c.RU
	case model.LanguageEN:
		return c.EN
	default:
		return c.Other
	}
}
