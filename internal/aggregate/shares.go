// Package aggregate folds classified observations into per-region-year
// shares and derives the reporting series.
package aggregate

import (
	"sort"
	"strings"

	"github.com/kaimana-labs/statebench/internal/classify"
	"github.com/kaimana-labs/statebench/internal/model"
	"github.com/kaimana-labs/statebench/internal/region"
)

type regionYear struct {
	region region.Code
	year   int
}

// Shares reduces raw observations into one RegionYearShare per (region,
// year) pair present in the input. The result is deterministic for a given
// input and classification: output ordering is region code then year, and
// summation never depends on row arrival order beyond float addition over
// the same grouped values.
//
// A nil Value signals denominator zero: no basis for a rate, by design not
// an error.
func Shares(observations []model.Observation, result classify.Result) []model.RegionYearShare {
	numerators := make(map[regionYear]float64)
	denominators := make(map[regionYear]float64)
	seen := make(map[regionYear]bool)

	for _, obs := range observations {
		code := strings.ToUpper(strings.TrimSpace(obs.CategoryCode))
		if code == "" || !obs.Region.Valid() {
			continue
		}

		key := regionYear{region: obs.Region, year: obs.Year}
		seen[key] = true

		// Absent quantities contribute zero to whichever sums the code is
		// eligible for; the zero value of obs.Quantity already encodes that.
		if !result.InDenominator(code) {
			continue
		}
		denominators[key] += obs.Quantity
		if result.IsMember(code) {
			numerators[key] += obs.Quantity
		}
	}

	keys := make([]regionYear, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].region != keys[j].region {
			return keys[i].region < keys[j].region
		}
		return keys[i].year < keys[j].year
	})

	shares := make([]model.RegionYearShare, 0, len(keys))
	for _, key := range keys {
		share := model.RegionYearShare{
			Region:      key.region,
			Year:        key.year,
			Numerator:   numerators[key],
			Denominator: denominators[key],
		}
		if share.Denominator > 0 {
			share.Value = model.Float64Ptr(share.Numerator / share.Denominator * 100.0)
		}
		shares = append(shares, share)
	}

	return shares
}
