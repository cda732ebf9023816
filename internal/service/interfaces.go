// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/kaimana-labs/statebench/internal/model"
	"github.com/kaimana-labs/statebench/internal/region"
)

// Fetcher retrieves every observation a dataset holds for a set of regions
// and an inclusive year range, following pagination to end-of-data.
type Fetcher interface {
	FetchAll(ctx context.Context, dataset model.Dataset, regions []region.Code, years model.YearRange) ([]model.Observation, error)
}

// ReportWriter renders a finished metric series to an output surface
// (spreadsheet, files, terminal).
type ReportWriter interface {
	Write(ctx context.Context, series *model.MetricSeries, shares []model.RegionYearShare) error
}

// RunStore persists completed metric runs so successive builds can be
// compared. It never stores raw upstream responses.
type RunStore interface {
	SaveRun(ctx context.Context, series *model.MetricSeries, shares []model.RegionYearShare) (int64, error)
	GetLatestRun(ctx context.Context, metricID string) (*model.MetricSeries, error)
	ListRuns(ctx context.Context, metricID string) ([]RunInfo, error)
	Migrate(ctx context.Context) error
	Close() error
}

// RunInfo summarizes one stored run.
type RunInfo struct {
	GeneratedAt time.Time
	MetricID    string
	ID          int64
	YearCount   int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Increment    time.Duration // linear backoff step; 0 means multiplicative
	Multiplier   float64
}

// BuildStats shows the results of a pipeline run across all metrics.
type BuildStats struct {
	Metrics   int
	Succeeded int
	Skipped   int
	Duration  time.Duration
}
