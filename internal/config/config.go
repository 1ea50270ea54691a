package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings. Everything comes from the environment
// so the same binary works locally and in the scheduler container.
type Config struct {
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0:8080"`
	PostgresConn  string `env:"POSTGRES_CONN,required"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Upstream OCDS release API.
	OCDSBaseURL    string        `env:"OCDS_BASE_URL,required"`
	OCDSPageSize   int           `env:"OCDS_PAGE_SIZE" envDefault:"1000"`
	RequestTimeout time.Duration `env:"OCDS_REQUEST_TIMEOUT" envDefault:"30s"`

	// Sync policy.
	FullSyncIntervalDays int           `env:"FULL_SYNC_INTERVAL_DAYS" envDefault:"7"`
	FullLookback         time.Duration `env:"FULL_SYNC_LOOKBACK" envDefault:"17520h"` // 2 years
	IncrementalFallback  time.Duration `env:"INCREMENTAL_FALLBACK" envDefault:"168h"` // window when no watermark exists
	FutureHorizon        time.Duration `env:"SYNC_FUTURE_HORIZON" envDefault:"8760h"` // 1 year

	Incremental ModeBudget
	Full        ModeBudget

	// A page with fewer than PageSize records also bumps the empty-page
	// counter when set. Matches the upstream API, which pads the tail of a
	// result set with short pages.
	CountShortPages bool `env:"SYNC_COUNT_SHORT_PAGES" envDefault:"true"`

	BatchPacing time.Duration `env:"SYNC_BATCH_PACING" envDefault:"100ms"`

	// View counter dedup window.
	ViewDedupWindow time.Duration `env:"VIEW_DEDUP_WINDOW" envDefault:"30m"`

	// Optional search index endpoint. Empty disables indexing.
	SearchIndexURL string `env:"SEARCH_INDEX_URL"`

	// Optional periodic scheduler. Zero disables the background loop and
	// leaves only the manual /api/sync trigger.
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"0"`
}

// ModeBudget bounds a single orchestrator run.
type ModeBudget struct {
	MaxPages             int
	TimeBudget           time.Duration
	MaxConsecutiveErrors int
	EmptyPageThreshold   int
	BatchSize            int
	FetchAttempts        int
}

type incrementalBudget struct {
	MaxPages             int           `env:"INCR_MAX_PAGES" envDefault:"50"`
	TimeBudget           time.Duration `env:"INCR_TIME_BUDGET" envDefault:"30s"`
	MaxConsecutiveErrors int           `env:"INCR_MAX_CONSECUTIVE_ERRORS" envDefault:"3"`
	EmptyPageThreshold   int           `env:"INCR_EMPTY_PAGE_THRESHOLD" envDefault:"2"`
	BatchSize            int           `env:"INCR_BATCH_SIZE" envDefault:"50"`
	FetchAttempts        int           `env:"INCR_FETCH_ATTEMPTS" envDefault:"3"`
}

type fullBudget struct {
	MaxPages             int           `env:"FULL_MAX_PAGES" envDefault:"1000"`
	TimeBudget           time.Duration `env:"FULL_TIME_BUDGET" envDefault:"120s"`
	MaxConsecutiveErrors int           `env:"FULL_MAX_CONSECUTIVE_ERRORS" envDefault:"5"`
	EmptyPageThreshold   int           `env:"FULL_EMPTY_PAGE_THRESHOLD" envDefault:"3"`
	BatchSize            int           `env:"FULL_BATCH_SIZE" envDefault:"200"`
	FetchAttempts        int           `env:"FULL_FETCH_ATTEMPTS" envDefault:"5"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var incr incrementalBudget
	if err := env.Parse(&incr); err != nil {
		return nil, fmt.Errorf("parse incremental budget: %w", err)
	}
	cfg.Incremental = ModeBudget(incr)

	var full fullBudget
	if err := env.Parse(&full); err != nil {
		return nil, fmt.Errorf("parse full budget: %w", err)
	}
	cfg.Full = ModeBudget(full)

	if cfg.OCDSPageSize < 1 || cfg.OCDSPageSize > 1000 {
		return nil, fmt.Errorf("OCDS_PAGE_SIZE must be between 1 and 1000, got %d", cfg.OCDSPageSize)
	}
	return &cfg, nil
}
