package aggregate

import (
	"testing"

	"github.com/kaimana-labs/statebench/internal/classify"
	"github.com/kaimana-labs/statebench/internal/model"
	"github.com/kaimana-labs/statebench/internal/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classified(t *testing.T, observations []model.Observation) classify.Result {
	t.Helper()
	c, err := classify.NewClassifier(classify.DefaultRuleSet())
	require.NoError(t, err)
	return c.Classify(observations)
}

func obs(r region.Code, year int, code, desc string, quantity float64) model.Observation {
	return model.Observation{
		Region:       r,
		Year:         year,
		CategoryCode: code,
		Description:  desc,
		Quantity:     quantity,
		HasQuantity:  true,
	}
}

func TestSharesTwoRegions(t *testing.T) {
	observations := []model.Observation{
		obs("CA", 2020, "A", "Solar", 80),
		obs("CA", 2020, "B", "Coal", 20),
		obs("TX", 2020, "A", "Solar", 50),
		obs("TX", 2020, "B", "Coal", 50),
	}

	shares := Shares(observations, classified(t, observations))
	require.Len(t, shares, 2)

	// Sorted by region code then year.
	assert.Equal(t, region.Code("CA"), shares[0].Region)
	require.NotNil(t, shares[0].Value)
	assert.InDelta(t, 80.0, *shares[0].Value, 1e-9)

	assert.Equal(t, region.Code("TX"), shares[1].Region)
	require.NotNil(t, shares[1].Value)
	assert.InDelta(t, 50.0, *shares[1].Value, 1e-9)
}

func TestSharesMissingRegionYearDoesNotExist(t *testing.T) {
	observations := []model.Observation{
		obs("TX", 2020, "A", "Solar", 50),
		obs("TX", 2020, "B", "Coal", 50),
	}

	shares := Shares(observations, classified(t, observations))
	require.Len(t, shares, 1)
	assert.Equal(t, region.Code("TX"), shares[0].Region)
}

func TestSharesZeroDenominatorYieldsNilValue(t *testing.T) {
	observations := []model.Observation{
		{Region: "HI", Year: 2020, CategoryCode: "B", Description: "Coal", Quantity: 0, HasQuantity: false},
		obs("HI", 2020, "C", "Natural gas", 0),
	}

	shares := Shares(observations, classified(t, observations))
	require.Len(t, shares, 1)

	assert.Zero(t, shares[0].Denominator)
	assert.Nil(t, shares[0].Value)
}

func TestSharesExclusions(t *testing.T) {
	observations := []model.Observation{
		obs("HI", 2021, "SPV", "Solar photovoltaic", 30),
		obs("HI", 2021, "COW", "Coal", 60),
		obs("HI", 2021, "HPS", "Hydroelectric pumped storage", 500), // not in either sum
		obs("HI", 2021, "ALL", "Total electric power industry", 90), // aggregate, dropped
	}

	shares := Shares(observations, classified(t, observations))
	require.Len(t, shares, 1)

	assert.InDelta(t, 30.0, shares[0].Numerator, 1e-9)
	assert.InDelta(t, 90.0, shares[0].Denominator, 1e-9)
	require.NotNil(t, shares[0].Value)
	assert.InDelta(t, 30.0/90.0*100.0, *shares[0].Value, 1e-9)
}

func TestSharesAbsentQuantityCountsAsZero(t *testing.T) {
	observations := []model.Observation{
		obs("HI", 2020, "SPV", "Solar photovoltaic", 40),
		{Region: "HI", Year: 2020, CategoryCode: "COW", Description: "Coal", HasQuantity: false},
	}

	shares := Shares(observations, classified(t, observations))
	require.Len(t, shares, 1)
	require.NotNil(t, shares[0].Value)
	assert.InDelta(t, 100.0, *shares[0].Value, 1e-9)
}

func TestSharesIdempotent(t *testing.T) {
	observations := []model.Observation{
		obs("HI", 2019, "SPV", "Solar photovoltaic", 12.34),
		obs("HI", 2019, "COW", "Coal", 56.78),
		obs("CA", 2019, "WNT", "Onshore wind turbine", 9.87),
		obs("CA", 2019, "NG", "Natural gas", 65.43),
	}
	result := classified(t, observations)

	first := Shares(observations, result)
	second := Shares(observations, result)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Region, second[i].Region)
		assert.Equal(t, first[i].Year, second[i].Year)
		assert.Equal(t, first[i].Numerator, second[i].Numerator)
		assert.Equal(t, first[i].Denominator, second[i].Denominator)
		if first[i].Value == nil {
			assert.Nil(t, second[i].Value)
		} else {
			require.NotNil(t, second[i].Value)
			assert.Equal(t, *first[i].Value, *second[i].Value)
		}
	}
}

func TestSharesEmptyClassification(t *testing.T) {
	// Zero member codes is a valid classification; every share ends up with
	// a denominator but no numerator.
	observations := []model.Observation{
		obs("HI", 2020, "COW", "Coal", 100),
	}

	shares := Shares(observations, classified(t, observations))
	require.Len(t, shares, 1)
	require.NotNil(t, shares[0].Value)
	assert.InDelta(t, 0.0, *shares[0].Value, 1e-9)
}

func TestSharesIgnoresInvalidRows(t *testing.T) {
	observations := []model.Observation{
		obs("HI", 2020, "SPV", "Solar photovoltaic", 10),
		obs("HI", 2020, "", "missing code", 99),
		obs("XX", 2020, "SPV", "Solar photovoltaic", 99),
	}

	shares := Shares(observations, classified(t, observations))
	require.Len(t, shares, 1)
	assert.InDelta(t, 10.0, shares[0].Denominator, 1e-9)
}
