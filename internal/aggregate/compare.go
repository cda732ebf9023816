package aggregate

import (
	"sort"
	"time"

	"github.com/kaimana-labs/statebench/internal/model"
	"github.com/kaimana-labs/statebench/internal/region"
)

// Compare builds the reporting series for one metric: the target region's
// values and the equal-weight mean of every other region's value, aligned
// on the window's year axis. Excluded regions (and the target itself) never
// contribute to the mean; nil values are absent, not zero.
func Compare(metric model.Metric, shares []model.RegionYearShare, window []int, generatedAt time.Time) *model.MetricSeries {
	excluded := make(map[region.Code]bool, len(metric.ExcludedRegions)+1)
	excluded[metric.TargetRegion] = true
	for _, r := range metric.ExcludedRegions {
		excluded[r] = true
	}

	byRegionYear := make(map[region.Code]map[int]*float64)
	for _, s := range shares {
		if byRegionYear[s.Region] == nil {
			byRegionYear[s.Region] = make(map[int]*float64)
		}
		byRegionYear[s.Region][s.Year] = s.Value
	}

	peers := make([]region.Code, 0, len(byRegionYear))
	for r := range byRegionYear {
		if !excluded[r] {
			peers = append(peers, r)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })

	series := &model.MetricSeries{
		GeneratedAt:  generatedAt,
		MetricID:     metric.ID,
		Title:        metric.Title,
		Unit:         metric.Unit,
		Notes:        metric.Annotations,
		Source:       metric.Source,
		Target:       metric.TargetRegion,
		Years:        window,
		TargetValues: make([]*float64, len(window)),
		PeerValues:   make([]*float64, len(window)),
	}

	for i, year := range window {
		if values := byRegionYear[metric.TargetRegion]; values != nil {
			series.TargetValues[i] = values[year]
		}

		var sum float64
		var count int
		for _, r := range peers {
			if v := byRegionYear[r][year]; v != nil {
				sum += *v
				count++
			}
		}
		if count > 0 {
			series.PeerValues[i] = model.Float64Ptr(sum / float64(count))
		}
	}

	return series
}
