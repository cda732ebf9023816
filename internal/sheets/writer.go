package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kaimana-labs/statebench/internal/common"
	"github.com/kaimana-labs/statebench/internal/model"
	"github.com/kaimana-labs/statebench/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Writer renders metric series into a dashboard spreadsheet: one worksheet
// per metric with the target and peer-average columns and an embedded line
// chart.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets report writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: srv,
		logger:  logger,
	}, nil
}

// Write implements the ReportWriter interface for one metric series.
func (w *Writer) Write(ctx context.Context, series *model.MetricSeries, _ []model.RegionYearShare) error {
	w.logger.Info("writing metric worksheet",
		"metric", series.MetricID,
		"years", len(series.Years))

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	sheetID, err := w.ensureSheet(ctx, spreadsheetID, series.MetricID)
	if err != nil {
		return fmt.Errorf("failed to ensure worksheet: %w", err)
	}

	if err := w.clearSheet(ctx, spreadsheetID, series.MetricID); err != nil {
		return fmt.Errorf("failed to clear worksheet: %w", err)
	}

	values := w.prepareSeriesData(series)

	retryOpts := service.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	err = common.WithRetry(ctx, func() error {
		return w.writeData(ctx, spreadsheetID, series.MetricID, values)
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.applyFormattingAndChart(ctx, spreadsheetID, sheetID, series)
		}, retryOpts)
		if err != nil {
			w.logger.Warn("failed to apply formatting", "error", err)
			// Data is already written; formatting failure should not fail the metric.
		}
	}

	w.logger.Info("worksheet updated",
		"spreadsheet_id", spreadsheetID,
		"metric", series.MetricID,
		"rows_written", len(values))

	return nil
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = oauthConfig.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// getOrCreateSpreadsheet gets an existing spreadsheet or creates a new one.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		_, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return w.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	w.config.SpreadsheetID = created.SpreadsheetId
	return created.SpreadsheetId, nil
}

// ensureSheet returns the sheet ID for the metric's worksheet, adding the
// worksheet when it does not exist yet.
func (w *Writer) ensureSheet(ctx context.Context, spreadsheetID, title string) (int64, error) {
	spreadsheet, err := w.service.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to read spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == title {
			return sheet.Properties.SheetId, nil
		}
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to add worksheet %s: %w", title, err)
	}

	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

// clearSheet clears all data from the metric's worksheet.
func (w *Writer) clearSheet(ctx context.Context, spreadsheetID, title string) error {
	rangeStr := fmt.Sprintf("'%s'!A:Z", title)
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, rangeStr, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// prepareSeriesData lays out the worksheet: title block, column header, one
// row per window year, then the metric's notes. Nil values become empty
// cells so the chart treats them as gaps rather than zeros.
func (w *Writer) prepareSeriesData(series *model.MetricSeries) [][]any {
	values := make([][]any, 0, len(series.Years)+len(series.Notes)+6)

	values = append(values,
		[]any{series.Title, series.Unit},
		[]any{"Source", series.Source.Name},
		[]any{}, // Empty row
		[]any{"Year", series.Target.Name(), "Other States Average"},
	)

	for i, year := range series.Years {
		row := []any{year, "", ""}
		if v := series.TargetValues[i]; v != nil {
			row[1] = *v
		}
		if v := series.PeerValues[i]; v != nil {
			row[2] = *v
		}
		values = append(values, row)
	}

	if len(series.Notes) > 0 {
		values = append(values, []any{}, []any{"Notes"})
		for _, note := range series.Notes {
			values = append(values, []any{note})
		}
	}

	return values
}

// writeData writes the data to the metric's worksheet in batches.
func (w *Writer) writeData(ctx context.Context, spreadsheetID, title string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := i + w.config.BatchSize
		if end > len(values) {
			end = len(values)
		}

		valueRange := &sheets.ValueRange{Values: values[i:end]}
		rangeStr := fmt.Sprintf("'%s'!A%d", title, i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, valueRange).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "start_row", i+1, "rows", end-i)
	}

	return nil
}

// headerRows is the number of rows above the year data.
const headerRows = 4

// applyFormattingAndChart bolds the headers, freezes them, formats the value
// columns and embeds a line chart of target vs peer average.
func (w *Writer) applyFormattingAndChart(ctx context.Context, spreadsheetID string, sheetID int64, series *model.MetricSeries) error {
	dataEnd := int64(headerRows + len(series.Years))

	requests := []*sheets.Request{
		// Bold the title and column header rows.
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:       sheetID,
					StartRowIndex: 0,
					EndRowIndex:   headerRows,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		// Two-decimal number format on the value columns.
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    headerRows,
					EndRowIndex:      dataEnd,
					StartColumnIndex: 1,
					EndColumnIndex:   3,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{
							Type:    "NUMBER",
							Pattern: "0.00",
						},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		},
		// Freeze everything above the data.
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: sheetID,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: headerRows,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
		// Line chart: target vs peer average over the window.
		{
			AddChart: &sheets.AddChartRequest{
				Chart: &sheets.EmbeddedChart{
					Spec: w.chartSpec(sheetID, series, dataEnd),
					Position: &sheets.EmbeddedObjectPosition{
						OverlayPosition: &sheets.OverlayPosition{
							AnchorCell: &sheets.GridCoordinate{
								SheetId:     sheetID,
								RowIndex:    1,
								ColumnIndex: 4,
							},
						},
					},
				},
			},
		},
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}

func (w *Writer) chartSpec(sheetID int64, series *model.MetricSeries, dataEnd int64) *sheets.ChartSpec {
	domain := &sheets.GridRange{
		SheetId:          sheetID,
		StartRowIndex:    headerRows - 1,
		EndRowIndex:      dataEnd,
		StartColumnIndex: 0,
		EndColumnIndex:   1,
	}

	seriesRange := func(column int64) *sheets.GridRange {
		return &sheets.GridRange{
			SheetId:          sheetID,
			StartRowIndex:    headerRows - 1,
			EndRowIndex:      dataEnd,
			StartColumnIndex: column,
			EndColumnIndex:   column + 1,
		}
	}

	return &sheets.ChartSpec{
		Title: series.Title,
		BasicChart: &sheets.BasicChartSpec{
			ChartType:      "LINE",
			LegendPosition: "BOTTOM_LEGEND",
			HeaderCount:    1,
			Domains: []*sheets.BasicChartDomain{{
				Domain: &sheets.ChartData{
					SourceRange: &sheets.ChartSourceRange{Sources: []*sheets.GridRange{domain}},
				},
			}},
			Series: []*sheets.BasicChartSeries{
				{
					Series: &sheets.ChartData{
						SourceRange: &sheets.ChartSourceRange{Sources: []*sheets.GridRange{seriesRange(1)}},
					},
					TargetAxis: "LEFT_AXIS",
				},
				{
					Series: &sheets.ChartData{
						SourceRange: &sheets.ChartSourceRange{Sources: []*sheets.GridRange{seriesRange(2)}},
					},
					TargetAxis: "LEFT_AXIS",
				},
			},
		},
	}
}
