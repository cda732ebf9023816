// Package config provides configuration utilities for the application.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kaimana-labs/statebench/internal/common"
	"github.com/kaimana-labs/statebench/internal/fetch"
	"github.com/kaimana-labs/statebench/internal/model"
	"github.com/spf13/viper"
)

// defaultBaseURL is the EIA v2 API root.
const defaultBaseURL = "https://api.eia.gov/v2"

// LoadMetrics reads the ordered metric definitions from Viper (the `metrics`
// key of the config file) and validates each one.
func LoadMetrics() ([]model.Metric, error) {
	var metrics []model.Metric
	if err := viper.UnmarshalKey("metrics", &metrics); err != nil {
		return nil, fmt.Errorf("%w: metrics: %v", common.ErrInvalidConfig, err)
	}
	if len(metrics) == 0 {
		return nil, fmt.Errorf("%w: no metrics configured", common.ErrMissingConfig)
	}

	seen := make(map[string]bool, len(metrics))
	for i, m := range metrics {
		if err := validateMetric(m); err != nil {
			return nil, fmt.Errorf("%w: metrics[%d]: %v", common.ErrInvalidConfig, i, err)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("%w: duplicate metric id %q", common.ErrInvalidConfig, m.ID)
		}
		seen[m.ID] = true
	}

	return metrics, nil
}

func validateMetric(m model.Metric) error {
	if m.ID == "" {
		return fmt.Errorf("missing id")
	}
	if m.Dataset.Route == "" {
		return fmt.Errorf("metric %s: missing dataset route", m.ID)
	}
	if m.Dataset.DataColumn == "" {
		return fmt.Errorf("metric %s: missing dataset data_column", m.ID)
	}
	if !m.TargetRegion.Valid() {
		return fmt.Errorf("metric %s: unknown target region %q", m.ID, m.TargetRegion)
	}
	for _, r := range m.ExcludedRegions {
		if !r.Valid() {
			return fmt.Errorf("metric %s: unknown excluded region %q", m.ID, r)
		}
	}
	if m.Years.Start <= 0 || m.Years.End < m.Years.Start {
		return fmt.Errorf("metric %s: invalid year range %d..%d", m.ID, m.Years.Start, m.Years.End)
	}
	return nil
}

// LoadFetchConfig assembles the fetcher configuration. The API key comes
// from Viper first, then the EIA_API_KEY environment variable; it is bound
// here once and handed to the fetcher at construction.
func LoadFetchConfig() (fetch.Config, error) {
	config := fetch.DefaultConfig()
	config.BaseURL = defaultBaseURL

	if v := viper.GetString("fetch.base_url"); v != "" {
		config.BaseURL = v
	}
	if v := viper.GetString("fetch.api_key"); v != "" {
		config.APIKey = v
	}
	if config.APIKey == "" {
		config.APIKey = os.Getenv("EIA_API_KEY")
	}
	if v := viper.GetInt("fetch.page_size"); v > 0 {
		config.PageSize = v
	}
	if v := viper.GetDuration("fetch.timeout"); v > 0 {
		config.Timeout = v
	}
	if v := viper.GetInt("fetch.retry_attempts"); v > 0 {
		config.RetryAttempts = v
	}
	if v := viper.GetDuration("fetch.retry_delay"); v > 0 {
		config.RetryDelay = v
	}
	config.ShowProgress = viper.GetBool("fetch.progress")

	if config.APIKey == "" {
		return fetch.Config{}, common.NewUserError(
			"no API key configured: set fetch.api_key or EIA_API_KEY", common.ErrMissingConfig)
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	return config, nil
}
