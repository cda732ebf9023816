// Package fetch retrieves observations from EIA-v2-style bulk tabular APIs.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kaimana-labs/statebench/internal/common"
	"github.com/kaimana-labs/statebench/internal/model"
	"github.com/kaimana-labs/statebench/internal/region"
	"github.com/kaimana-labs/statebench/internal/service"
	"github.com/schollz/progressbar/v3"
)

// Config holds the construction-time settings for a Client. The API key is
// injected here and never read from the environment mid-computation.
type Config struct {
	BaseURL       string
	APIKey        string
	PageSize      int
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	ShowProgress  bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PageSize:      5000,
		Timeout:       60 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    1500 * time.Millisecond,
	}
}

// Client implements the Fetcher interface against a paginated tabular API.
type Client struct {
	httpClient *http.Client
	config     Config
}

// NewClient creates a fetch client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%w: fetch base URL", common.ErrMissingConfig)
	}
	if config.PageSize <= 0 {
		config.PageSize = 5000
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 1500 * time.Millisecond
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// FetchAll retrieves every observation for the given regions and year range,
// one region at a time. A region whose fetch fails is logged and skipped so
// the remaining regions still contribute to classification; only when every
// region fails does the whole fetch fail.
func (c *Client) FetchAll(ctx context.Context, dataset model.Dataset, regions []region.Code, years model.YearRange) ([]model.Observation, error) {
	var bar *progressbar.ProgressBar
	if c.config.ShowProgress {
		bar = progressbar.NewOptions(len(regions),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Fetching regions..."),
		)
	}

	var observations []model.Observation
	var failed []region.Code

	for _, r := range regions {
		rows, err := c.fetchRegion(ctx, dataset, r, years)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			common.LogError(err, "region fetch failed, continuing with partial set", common.Fields{
				"region": r,
				"route":  dataset.Route,
			})
			failed = append(failed, r)
		} else {
			observations = append(observations, rows...)
			slog.Debug("fetched region", "region", r, "rows", len(rows))
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if len(failed) == len(regions) && len(regions) > 0 {
		return nil, fmt.Errorf("%w: all %d regions failed", common.ErrSourceUnavailable, len(regions))
	}

	return observations, nil
}

// fetchRegion pages through a single region's rows until a short or empty
// page signals end-of-data.
func (c *Client) fetchRegion(ctx context.Context, dataset model.Dataset, r region.Code, years model.YearRange) ([]model.Observation, error) {
	var observations []model.Observation

	for offset := 0; ; offset += c.config.PageSize {
		rows, err := c.fetchPage(ctx, dataset, r, years, offset)
		if err != nil {
			return nil, err
		}

		parsed := 0
		for _, row := range rows {
			obs, ok := c.parseRow(row, dataset, r)
			if ok {
				observations = append(observations, obs)
				parsed++
			}
		}

		// Individual malformed rows are dropped, but a non-empty page where
		// nothing parses means the upstream renamed a field.
		if len(rows) > 0 && parsed == 0 {
			return nil, fmt.Errorf("%w: no row carried a usable period or category field", common.ErrSchema)
		}

		if len(rows) < c.config.PageSize {
			break
		}
	}

	return observations, nil
}

type apiResponse struct {
	Response struct {
		Data []map[string]any `json:"data"`
	} `json:"response"`
}

// fetchPage issues one page request, retrying server-side failures with
// linear backoff. Client errors abort immediately.
func (c *Client) fetchPage(ctx context.Context, dataset model.Dataset, r region.Code, years model.YearRange, offset int) ([]map[string]any, error) {
	requestURL, err := c.pageURL(dataset, r, years, offset)
	if err != nil {
		return nil, err
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  c.config.RetryAttempts,
		InitialDelay: c.config.RetryDelay,
		Increment:    c.config.RetryDelay,
	}

	var rows []map[string]any
	err = common.WithRetry(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if reqErr != nil {
			return &common.RetryableError{Err: reqErr, Retryable: false}
		}

		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return &common.RetryableError{Err: doErr, Retryable: true}
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= http.StatusInternalServerError {
			return &common.RetryableError{
				Err:       fmt.Errorf("server error: %d", resp.StatusCode),
				Retryable: true,
			}
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return &common.RetryableError{
				Err:       fmt.Errorf("API error: %d - %s", resp.StatusCode, string(body)),
				Retryable: false,
			}
		}

		var parsed apiResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&parsed); decodeErr != nil {
			return &common.RetryableError{
				Err:       fmt.Errorf("%w: %v", common.ErrSchema, decodeErr),
				Retryable: false,
			}
		}
		if parsed.Response.Data == nil {
			return &common.RetryableError{
				Err:       fmt.Errorf("%w: response missing data rows", common.ErrSchema),
				Retryable: false,
			}
		}

		rows = parsed.Response.Data
		return nil
	}, retryOpts)

	if err != nil {
		return nil, fmt.Errorf("page at offset %d for %s: %w", offset, r, err)
	}

	return rows, nil
}

func (c *Client) pageURL(dataset model.Dataset, r region.Code, years model.YearRange, offset int) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.Trim(dataset.Route, "/") + "/data/")
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	q.Set("frequency", "annual")
	q.Set("data[]", dataset.DataColumn)
	q.Set("facets[location][]", string(r))
	for facet, value := range dataset.Facets {
		q.Set(fmt.Sprintf("facets[%s][]", facet), value)
	}
	q.Set("start", strconv.Itoa(years.Start))
	q.Set("end", strconv.Itoa(years.End))
	q.Set("length", strconv.Itoa(c.config.PageSize))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("sort[0][column]", "period")
	q.Set("sort[0][direction]", "asc")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// descriptionKeys are the field-name variants upstream releases have used
// for the free-text category label.
var descriptionKeys = []string{
	"fuelTypeDescription",
	"fueltypeDescription",
	"fuelType",
	"fuelDescription",
	"fueldescription",
	"typeDescription",
}

// parseRow converts one raw row into an Observation. Rows without a usable
// year or category code are skipped; a missing quantity is kept as an
// observation with HasQuantity=false.
func (c *Client) parseRow(row map[string]any, dataset model.Dataset, requested region.Code) (model.Observation, bool) {
	year, ok := parseYear(row["period"])
	if !ok {
		return model.Observation{}, false
	}

	code := stringField(row, "fueltypeid")
	if code == "" {
		code = stringField(row, "fueltype")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return model.Observation{}, false
	}

	obsRegion := requested
	if loc := stringField(row, "location"); loc != "" {
		if parsed, err := region.Parse(loc); err == nil {
			obsRegion = parsed
		}
	}

	var description string
	for _, key := range descriptionKeys {
		if v := stringField(row, key); v != "" {
			description = v
			break
		}
	}

	quantity, hasQuantity := parseQuantity(row[dataset.DataColumn])

	return model.Observation{
		Region:       obsRegion,
		Year:         year,
		CategoryCode: code,
		Description:  description,
		Quantity:     quantity,
		HasQuantity:  hasQuantity,
	}, true
}

func stringField(row map[string]any, key string) string {
	if v, ok := row[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func parseYear(v any) (int, bool) {
	switch value := v.(type) {
	case string:
		year, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || year <= 0 {
			return 0, false
		}
		return year, true
	case float64:
		return int(value), true
	case int:
		return value, true
	default:
		return 0, false
	}
}

func parseQuantity(v any) (float64, bool) {
	switch value := v.(type) {
	case nil:
		return 0, false
	case float64:
		return value, true
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || strings.EqualFold(trimmed, "NA") {
			return 0, false
		}
		quantity, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return quantity, true
	default:
		return 0, false
	}
}
