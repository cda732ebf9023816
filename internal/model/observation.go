// Package model defines the core domain models used throughout the application.
package model

import "github.com/kaimana-labs/statebench/internal/region"

// Observation is a single fact returned by an upstream dataset: a quantity
// reported for one region, year and category code.
type Observation struct {
	Region       region.Code
	CategoryCode string
	Description  string // Free-text label attached to the category code
	Year         int
	Quantity     float64
	// HasQuantity distinguishes a true zero from an absent value. Both
	// contribute 0 to aggregation; the distinction is diagnostic only.
	HasQuantity bool
}

// YearRange is an inclusive range of years requested from a dataset.
type YearRange struct {
	Start int `mapstructure:"start"`
	End   int `mapstructure:"end"`
}

// Contains reports whether year falls inside the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.Start && year <= r.End
}
