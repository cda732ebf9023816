package classify

import (
	"testing"

	"github.com/kaimana-labs/statebench/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obs(code, desc string) model.Observation {
	return model.Observation{
		Region:       "HI",
		Year:         2020,
		CategoryCode: code,
		Description:  desc,
		Quantity:     1,
		HasQuantity:  true,
	}
}

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultRuleSet())
	require.NoError(t, err)
	return c
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name                   string
		observations           []model.Observation
		wantMember             []string
		wantExcludedFromDen    []string
		wantExcludedEverywhere []string
	}{
		{
			name: "positive keyword admits member",
			observations: []model.Observation{
				obs("SPV", "Solar (utility)"),
				obs("COW", "Coal"),
			},
			wantMember: []string{"SPV"},
		},
		{
			name: "aggregate marker wins over positive keyword",
			observations: []model.Observation{
				obs("TOTAL_A", "Total Solar (all sources)"),
				obs("A", "Solar (utility)"),
			},
			wantMember:             []string{"A"},
			wantExcludedEverywhere: []string{"TOTAL_A"},
		},
		{
			name: "distributed generation is out of scope",
			observations: []model.Observation{
				obs("XPV", "Distributed photovoltaic"),
				obs("SPV", "Utility-scale photovoltaic"),
			},
			wantMember:             []string{"SPV"},
			wantExcludedEverywhere: []string{"XPV"},
		},
		{
			name: "out of scope code excluded without marker",
			observations: []model.Observation{
				obs("DPV", "photovoltaic"),
			},
			wantExcludedEverywhere: []string{"DPV"},
		},
		{
			name: "pumped storage excluded from denominator only",
			observations: []model.Observation{
				obs("HPS", "Hydroelectric pumped storage"),
				obs("HYC", "Conventional hydroelectric"),
			},
			wantMember:          []string{"HYC"},
			wantExcludedFromDen: []string{"HPS"},
		},
		{
			name: "negative keyword vetoes membership",
			observations: []model.Observation{
				obs("OOB", "Wood and oil blend"),
			},
		},
		{
			name: "unclassified code stays out of all three sets",
			observations: []model.Observation{
				obs("NUC", "Nuclear"),
				obs("NG", "Natural gas"),
			},
		},
		{
			name: "descriptions union across rows",
			observations: []model.Observation{
				obs("SUN", "Solar"),
				obs("SUN", "solar total (all sectors)"),
			},
			wantExcludedEverywhere: []string{"SUN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(t)
			result := c.Classify(tt.observations)

			fromDen, everywhere := result.ExcludedCodes()
			assert.ElementsMatch(t, tt.wantMember, result.MemberCodes())
			assert.ElementsMatch(t, tt.wantExcludedFromDen, fromDen)
			assert.ElementsMatch(t, tt.wantExcludedEverywhere, everywhere)
		})
	}
}

func TestClassifyFamilyResolution(t *testing.T) {
	tests := []struct {
		name                   string
		observations           []model.Observation
		wantMember             []string
		wantExcludedEverywhere []string
	}{
		{
			name: "parent demoted when child present",
			observations: []model.Observation{
				obs("SUN", "Solar"),
				obs("SPV", "Solar photovoltaic"),
			},
			wantMember:             []string{"SPV"},
			wantExcludedEverywhere: []string{"SUN"},
		},
		{
			name: "parent kept when no child present",
			observations: []model.Observation{
				obs("SUN", "Solar"),
			},
			wantMember: []string{"SUN"},
		},
		{
			name: "biomass parent demoted by any sub-code",
			observations: []model.Observation{
				obs("BIO", "Biomass"),
				obs("WOO", "Wood and wood-derived fuels"),
				obs("MLG", "Landfill gas"),
			},
			wantMember:             []string{"WOO", "MLG"},
			wantExcludedEverywhere: []string{"BIO"},
		},
		{
			name: "wind parent demoted by turbine sub-code",
			observations: []model.Observation{
				obs("WND", "Wind"),
				obs("WNT", "Onshore wind turbine"),
			},
			wantMember:             []string{"WNT"},
			wantExcludedEverywhere: []string{"WND"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(t)
			result := c.Classify(tt.observations)

			_, everywhere := result.ExcludedCodes()
			assert.ElementsMatch(t, tt.wantMember, result.MemberCodes())
			assert.ElementsMatch(t, tt.wantExcludedEverywhere, everywhere)
		})
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	c := newTestClassifier(t)
	result := c.Classify(nil)

	assert.Empty(t, result.Member)
	assert.Empty(t, result.ExcludedFromDenominator)
	assert.Empty(t, result.ExcludedEverywhere)
}

func TestClassifySetsAreDisjoint(t *testing.T) {
	observations := []model.Observation{
		obs("SUN", "Solar"),
		obs("SPV", "Solar photovoltaic"),
		obs("WND", "Wind"),
		obs("WNT", "Onshore wind turbine"),
		obs("ALL", "Total electric power industry"),
		obs("HPS", "Hydroelectric pumped storage"),
		obs("DPV", "Distributed photovoltaic"),
		obs("COW", "Coal"),
		obs("NG", "Natural gas"),
		obs("HYC", "Conventional hydroelectric"),
		obs("GEO", "Geothermal"),
	}

	c := newTestClassifier(t)
	result := c.Classify(observations)

	for code := range result.Member {
		assert.False(t, result.ExcludedFromDenominator[code], "member %s also excluded from denominator", code)
		assert.False(t, result.ExcludedEverywhere[code], "member %s also excluded everywhere", code)
	}
	for code := range result.ExcludedFromDenominator {
		assert.False(t, result.ExcludedEverywhere[code], "code %s in both exclusion sets", code)
	}
}

func TestClassifyCodeNormalization(t *testing.T) {
	c := newTestClassifier(t)
	result := c.Classify([]model.Observation{
		obs(" spv ", "Solar photovoltaic"),
		obs("SPV", "solar photovoltaic"),
	})

	assert.Equal(t, []string{"SPV"}, result.MemberCodes())
}

func TestResultMembershipHelpers(t *testing.T) {
	c := newTestClassifier(t)
	result := c.Classify([]model.Observation{
		obs("SPV", "Solar photovoltaic"),
		obs("HPS", "Hydroelectric pumped storage"),
		obs("ALL", "Total electric power industry"),
		obs("COW", "Coal"),
	})

	assert.True(t, result.IsMember("SPV"))
	assert.True(t, result.InDenominator("SPV"))

	assert.False(t, result.IsMember("HPS"))
	assert.False(t, result.InDenominator("HPS"))

	assert.False(t, result.IsMember("ALL"))
	assert.False(t, result.InDenominator("ALL"))

	// Unclassified codes count in the denominator only.
	assert.False(t, result.IsMember("COW"))
	assert.True(t, result.InDenominator("COW"))
}
