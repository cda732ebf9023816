package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kaimana-labs/statebench/internal/common"
	"github.com/kaimana-labs/statebench/internal/model"
	"github.com/kaimana-labs/statebench/internal/region"
	"github.com/kaimana-labs/statebench/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements service.RunStore using SQLite. It keeps computed
// series and shares only; raw upstream responses are never persisted.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// Compile-time interface check.
var _ service.RunStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite run store instance.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't benefit from multiple connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun persists one completed metric run and returns its run ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, series *model.MetricSeries, shares []model.RegionYearShare) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateSeries(series); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs (metric_id, title, unit, target_region, source_name, source_url, notes, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		series.MetricID,
		series.Title,
		series.Unit,
		string(series.Target),
		series.Source.Name,
		series.Source.URL,
		strings.Join(series.Notes, "\n"),
		series.GeneratedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	for i, year := range series.Years {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_values (run_id, year, target_value, peer_value)
			VALUES (?, ?, ?, ?)`,
			runID, year, nullFloat(series.TargetValues[i]), nullFloat(series.PeerValues[i]),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert values for year %d: %w", year, err)
		}
	}

	for _, share := range shares {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_shares (run_id, region, year, numerator, denominator, value)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, string(share.Region), share.Year, share.Numerator, share.Denominator, nullFloat(share.Value),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert share for %s/%d: %w", share.Region, share.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	return runID, nil
}

// GetLatestRun returns the most recently generated run for a metric.
// Returns common.ErrNotFound when the metric has never been stored.
func (s *SQLiteStore) GetLatestRun(ctx context.Context, metricID string) (*model.MetricSeries, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(metricID, "metricID"); err != nil {
		return nil, err
	}

	var (
		runID       int64
		target      string
		notes       string
		generatedAt time.Time
		series      model.MetricSeries
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, unit, target_region, source_name, source_url, notes, generated_at
		FROM runs
		WHERE metric_id = ?
		ORDER BY generated_at DESC, id DESC
		LIMIT 1`, metricID,
	).Scan(&runID, &series.Title, &series.Unit, &target, &series.Source.Name, &series.Source.URL, &notes, &generatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no runs for metric %s: %w", metricID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	series.MetricID = metricID
	series.Target = region.Code(target)
	series.GeneratedAt = generatedAt
	if notes != "" {
		series.Notes = strings.Split(notes, "\n")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT year, target_value, peer_value
		FROM run_values
		WHERE run_id = ?
		ORDER BY year`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query run values: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			year        int
			targetValue sql.NullFloat64
			peerValue   sql.NullFloat64
		)
		if err := rows.Scan(&year, &targetValue, &peerValue); err != nil {
			return nil, fmt.Errorf("failed to scan run value: %w", err)
		}
		series.Years = append(series.Years, year)
		series.TargetValues = append(series.TargetValues, floatPtr(targetValue))
		series.PeerValues = append(series.PeerValues, floatPtr(peerValue))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run values: %w", err)
	}

	return &series, nil
}

// ListRuns returns run summaries, newest first. An empty metricID lists
// every stored run.
func (s *SQLiteStore) ListRuns(ctx context.Context, metricID string) ([]service.RunInfo, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.metric_id, r.generated_at, COUNT(v.year)
		FROM runs r
		LEFT JOIN run_values v ON v.run_id = r.id
		WHERE ? = '' OR r.metric_id = ?
		GROUP BY r.id
		ORDER BY r.generated_at DESC, r.id DESC`, metricID, metricID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []service.RunInfo
	for rows.Next() {
		var info service.RunInfo
		if err := rows.Scan(&info.ID, &info.MetricID, &info.GeneratedAt, &info.YearCount); err != nil {
			return nil, fmt.Errorf("failed to scan run info: %w", err)
		}
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
