package aggregate

import (
	"testing"

	"github.com/kaimana-labs/statebench/internal/model"
	"github.com/kaimana-labs/statebench/internal/region"
	"github.com/stretchr/testify/assert"
)

func TestSelectWindow(t *testing.T) {
	tests := []struct {
		name     string
		years    map[region.Code][]int
		maxYears int
		want     []int
	}{
		{
			name:     "fewer years than window",
			years:    map[region.Code][]int{"HI": {2019, 2020, 2021}},
			maxYears: 10,
			want:     []int{2019, 2020, 2021},
		},
		{
			name:     "trailing window of global union",
			years:    map[region.Code][]int{"HI": {2010, 2011, 2012, 2013, 2014, 2015}, "CA": {2016, 2017, 2018, 2019, 2020, 2021}},
			maxYears: 10,
			want:     []int{2012, 2013, 2014, 2015, 2016, 2017, 2018, 2019, 2020, 2021},
		},
		{
			name:     "duplicate years across regions collapse",
			years:    map[region.Code][]int{"HI": {2020, 2021}, "CA": {2020, 2021}},
			maxYears: 10,
			want:     []int{2020, 2021},
		},
		{
			name:     "window independent of target gaps",
			years:    map[region.Code][]int{"HI": {2015}, "CA": {2019, 2020, 2021}},
			maxYears: 2,
			want:     []int{2020, 2021},
		},
		{
			name:     "zero max uses default",
			years:    map[region.Code][]int{"HI": {2020}},
			maxYears: 0,
			want:     []int{2020},
		},
		{
			name:     "empty input",
			years:    map[region.Code][]int{},
			maxYears: 10,
			want:     []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var shares []model.RegionYearShare
			for r, years := range tt.years {
				for _, y := range years {
					shares = append(shares, model.RegionYearShare{Region: r, Year: y})
				}
			}

			got := SelectWindow(shares, tt.maxYears)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectWindowIsSuffixOfUnion(t *testing.T) {
	shares := []model.RegionYearShare{}
	for y := 2000; y <= 2024; y++ {
		shares = append(shares, model.RegionYearShare{Region: "HI", Year: y})
	}

	window := SelectWindow(shares, DefaultWindowYears)
	assert.Len(t, window, 10)
	assert.Equal(t, 2015, window[0])
	assert.Equal(t, 2024, window[len(window)-1])
	for i := 0; i < len(window)-1; i++ {
		assert.Equal(t, window[i]+1, window[i+1])
	}
}
