package aggregate

import (
	"sort"

	"github.com/kaimana-labs/statebench/internal/model"
)

// DefaultWindowYears bounds the reporting window.
const DefaultWindowYears = 10

// SelectWindow returns the trailing maxYears of the distinct ascending year
// union across all regions. Using the global union keeps the window stable
// even when the target region has a data gap.
func SelectWindow(shares []model.RegionYearShare, maxYears int) []int {
	if maxYears <= 0 {
		maxYears = DefaultWindowYears
	}

	distinct := make(map[int]bool)
	for _, s := range shares {
		distinct[s.Year] = true
	}

	years := make([]int, 0, len(distinct))
	for y := range distinct {
		years = append(years, y)
	}
	sort.Ints(years)

	if len(years) > maxYears {
		years = years[len(years)-maxYears:]
	}
	return years
}
