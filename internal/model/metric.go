package model

import "github.com/kaimana-labs/statebench/internal/region"

// Source describes where a metric's data comes from, for attribution in
// exported payloads.
type Source struct {
	Name string `mapstructure:"name" json:"name"`
	URL  string `mapstructure:"url" json:"url"`
}

// Dataset identifies the upstream route and the columns the fetcher reads.
type Dataset struct {
	// Route is the API path under the configured base URL,
	// e.g. "electricity/electric-power-operational-data".
	Route string `mapstructure:"route"`
	// DataColumn is the name of the quantity column, e.g. "generation".
	DataColumn string `mapstructure:"data_column"`
	// Facets are fixed facet filters applied to every page request,
	// e.g. {"sectorid": "98"}.
	Facets map[string]string `mapstructure:"facets"`
}

// Metric is one configured indicator: a dataset, a time range, the target
// region and the regions excluded from the peer average.
type Metric struct {
	ID              string        `mapstructure:"id"`
	Title           string        `mapstructure:"title"`
	Unit            string        `mapstructure:"unit"`
	Years           YearRange     `mapstructure:"years"`
	Dataset         Dataset       `mapstructure:"dataset"`
	TargetRegion    region.Code   `mapstructure:"target_region"`
	ExcludedRegions []region.Code `mapstructure:"excluded_regions"`
	Annotations     []string      `mapstructure:"annotations"`
	Source          Source        `mapstructure:"source"`
}
