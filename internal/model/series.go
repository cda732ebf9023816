package model

import (
	"time"

	"github.com/kaimana-labs/statebench/internal/region"
)

// RegionYearShare is the computed ratio for one (region, year) pair.
// Value is nil when Denominator is zero: there is no basis for a rate,
// which is a defined outcome rather than an error.
type RegionYearShare struct {
	Value       *float64
	Region      region.Code
	Year        int
	Numerator   float64
	Denominator float64
}

// MetricSeries is the final reporting artifact for one metric: the target
// region's values and the peer average, aligned on the same year axis.
// Years is a trailing window of at most ten distinct years, ascending.
type MetricSeries struct {
	GeneratedAt  time.Time
	MetricID     string
	Title        string
	Unit         string
	Notes        []string
	Source       Source
	Target       region.Code
	Years        []int
	TargetValues []*float64
	PeerValues   []*float64
}

// Float64Ptr returns a pointer to v. Convenience for building nullable series.
func Float64Ptr(v float64) *float64 {
	return &v
}
