// Package export renders finished metric series to JSON and CSV files for
// the dashboard site.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/kaimana-labs/statebench/internal/model"
	"github.com/kaimana-labs/statebench/internal/region"
)

// FileWriter implements the ReportWriter interface with on-disk JSON and
// CSV artifacts: <dir>/<metric_id>.json and <dir>/csv/<metric_id>.csv.
type FileWriter struct {
	dir string
}

// NewFileWriter creates a writer rooted at dir.
func NewFileWriter(dir string) (*FileWriter, error) {
	if dir == "" {
		return nil, fmt.Errorf("export directory must not be empty")
	}
	return &FileWriter{dir: dir}, nil
}

// Write emits both artifacts for one metric.
func (w *FileWriter) Write(_ context.Context, series *model.MetricSeries, shares []model.RegionYearShare) error {
	if err := w.writeJSON(series); err != nil {
		return err
	}
	if err := w.writeCSV(series, shares); err != nil {
		return err
	}

	slog.Info("exported metric",
		"metric", series.MetricID,
		"years", len(series.Years),
		"dir", w.dir)

	return nil
}

// comparisonPayload is the JSON shape the dashboard consumes.
type comparisonPayload struct {
	MetricID     string       `json:"metric_id"`
	Title        string       `json:"title"`
	Unit         string       `json:"unit"`
	TargetRegion string       `json:"target_region"`
	Years        []int        `json:"years"`
	Target       []*float64   `json:"target"`
	PeerAvg      []*float64   `json:"peer_avg"`
	Notes        []string     `json:"notes"`
	Source       model.Source `json:"source"`
	GeneratedAt  string       `json:"generated_at_utc"`
}

func (w *FileWriter) writeJSON(series *model.MetricSeries) error {
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	notes := series.Notes
	if notes == nil {
		notes = []string{}
	}

	payload := comparisonPayload{
		MetricID:     series.MetricID,
		Title:        series.Title,
		Unit:         series.Unit,
		TargetRegion: string(series.Target),
		Years:        series.Years,
		Target:       series.TargetValues,
		PeerAvg:      series.PeerValues,
		Notes:        notes,
		Source:       series.Source,
		GeneratedAt:  series.GeneratedAt.UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	path := filepath.Join(w.dir, series.MetricID+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// writeCSV emits the tidy table: one row per (region, window year), blank
// value when the region has no basis for a rate that year, sorted by region
// name then year.
func (w *FileWriter) writeCSV(series *model.MetricSeries, shares []model.RegionYearShare) error {
	csvDir := filepath.Join(w.dir, "csv")
	if err := os.MkdirAll(csvDir, 0o750); err != nil {
		return fmt.Errorf("failed to create csv directory: %w", err)
	}

	inWindow := make(map[int]bool, len(series.Years))
	for _, y := range series.Years {
		inWindow[y] = true
	}

	values := make(map[region.Code]map[int]*float64)
	for _, s := range shares {
		if !inWindow[s.Year] {
			continue
		}
		if values[s.Region] == nil {
			values[s.Region] = make(map[int]*float64)
		}
		values[s.Region][s.Year] = s.Value
	}

	regions := make([]region.Code, 0, len(values))
	for r := range values {
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Name() < regions[j].Name() })

	path := filepath.Join(csvDir, series.MetricID+".csv")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"region", "year", "value"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range regions {
		for _, year := range series.Years {
			record := []string{r.Name(), strconv.Itoa(year), ""}
			if v := values[r][year]; v != nil {
				record[2] = strconv.FormatFloat(*v, 'f', 6, 64)
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}

	return nil
}
