// Package pipeline orchestrates the fetch, classify, aggregate and report
// stages for every configured metric.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kaimana-labs/statebench/internal/aggregate"
	"github.com/kaimana-labs/statebench/internal/classify"
	"github.com/kaimana-labs/statebench/internal/common"
	"github.com/kaimana-labs/statebench/internal/model"
	"github.com/kaimana-labs/statebench/internal/region"
	"github.com/kaimana-labs/statebench/internal/service"
)

// Config holds the collaborators a Runner needs.
type Config struct {
	Fetcher     service.Fetcher
	Classifier  *classify.Classifier
	Store       service.RunStore
	Logger      *slog.Logger
	Writers     []service.ReportWriter
	WindowYears int
}

// Runner builds every configured metric. Metrics are independent: a failed
// metric is logged and skipped while its siblings still run.
type Runner struct {
	fetcher     service.Fetcher
	classifier  *classify.Classifier
	store       service.RunStore
	logger      *slog.Logger
	writers     []service.ReportWriter
	windowYears int
}

// New creates a Runner from the given collaborators. Store may be nil when
// run history is disabled.
func New(config Config) (*Runner, error) {
	if config.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if config.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if config.WindowYears <= 0 {
		config.WindowYears = aggregate.DefaultWindowYears
	}

	return &Runner{
		fetcher:     config.Fetcher,
		classifier:  config.Classifier,
		store:       config.Store,
		logger:      config.Logger,
		writers:     config.Writers,
		windowYears: config.WindowYears,
	}, nil
}

// Build runs the full pipeline for each metric and reports aggregate stats.
// It returns an error only when the context is canceled or no metric
// succeeded at all.
func (r *Runner) Build(ctx context.Context, metrics []model.Metric) (service.BuildStats, error) {
	start := time.Now()
	stats := service.BuildStats{Metrics: len(metrics)}

	for _, metric := range metrics {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(start)
			return stats, err
		}

		if err := r.buildMetric(ctx, metric); err != nil {
			common.LogError(err, "metric build failed", common.Fields{"metric": metric.ID})
			stats.Skipped++
			continue
		}
		stats.Succeeded++
	}

	stats.Duration = time.Since(start)

	if stats.Metrics > 0 && stats.Succeeded == 0 {
		return stats, fmt.Errorf("all %d metrics failed", stats.Metrics)
	}
	return stats, nil
}

func (r *Runner) buildMetric(ctx context.Context, metric model.Metric) error {
	log := r.logger.With(slog.String("metric", metric.ID))
	log.Info("building metric",
		slog.String("route", metric.Dataset.Route),
		slog.Int("start_year", metric.Years.Start),
		slog.Int("end_year", metric.Years.End))

	observations, err := r.fetcher.FetchAll(ctx, metric.Dataset, region.States(), metric.Years)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	log.Info("fetched observations", slog.Int("count", len(observations)))

	result := r.classifier.Classify(observations)
	members := result.MemberCodes()
	// A degenerate classification (no member codes) is data, not failure:
	// the series flows through with zero or null values.
	if len(members) == 0 {
		log.Warn("classification produced no member categories")
	}
	log.Debug("classified categories",
		slog.Int("members", len(members)),
		slog.Any("member_codes", members))

	shares := aggregate.Shares(observations, result)
	window := aggregate.SelectWindow(shares, r.windowYears)
	if len(window) == 0 {
		log.Warn("no reportable years in the data, emitting empty series")
	}

	series := aggregate.Compare(metric, shares, window, time.Now().UTC())

	for _, writer := range r.writers {
		if err := writer.Write(ctx, series, shares); err != nil {
			return fmt.Errorf("report writer failed: %w", err)
		}
	}

	if r.store != nil {
		runID, err := r.store.SaveRun(ctx, series, shares)
		if err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		log.Debug("recorded run", slog.Int64("run_id", runID))
	}

	log.Info("metric built",
		slog.Int("years", len(series.Years)),
		slog.Int("writers", len(r.writers)))
	return nil
}
