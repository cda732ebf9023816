package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kaimana-labs/statebench/internal/common"
	"github.com/kaimana-labs/statebench/internal/model"
	"github.com/kaimana-labs/statebench/internal/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:       baseURL,
		APIKey:        "test-key",
		PageSize:      2,
		Timeout:       5 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
}

func testDataset() model.Dataset {
	return model.Dataset{
		Route:      "electricity/electric-power-operational-data",
		DataColumn: "generation",
		Facets:     map[string]string{"sectorid": "98"},
	}
}

func writeRows(t *testing.T, w http.ResponseWriter, rows []map[string]any) {
	t.Helper()
	payload := map[string]any{"response": map[string]any{"data": rows}}
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

func row(year, code, desc string, generation any) map[string]any {
	return map[string]any{
		"period":              year,
		"fueltypeid":          code,
		"fuelTypeDescription": desc,
		"generation":          generation,
		"location":            "HI",
	}
}

func TestFetchAllPaginates(t *testing.T) {
	pages := [][]map[string]any{
		{row("2020", "SPV", "Solar photovoltaic", 10.0), row("2020", "COW", "Coal", "20.5")},
		{row("2021", "SPV", "Solar photovoltaic", "30")},
	}

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "HI", r.URL.Query().Get("facets[location][]"))
		assert.Equal(t, "98", r.URL.Query().Get("facets[sectorid][]"))
		assert.Equal(t, "generation", r.URL.Query().Get("data[]"))

		offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
		require.NoError(t, err)
		page := offset / 2
		if page < len(pages) {
			writeRows(t, w, pages[page])
		} else {
			writeRows(t, w, nil)
		}
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	observations, err := client.FetchAll(context.Background(), testDataset(), []region.Code{"HI"}, model.YearRange{Start: 2020, End: 2021})
	require.NoError(t, err)

	// Second page is short, so no third request.
	assert.Equal(t, int32(2), requests.Load())
	require.Len(t, observations, 3)

	assert.Equal(t, region.Code("HI"), observations[0].Region)
	assert.Equal(t, 2020, observations[0].Year)
	assert.Equal(t, "SPV", observations[0].CategoryCode)
	assert.Equal(t, "Solar photovoltaic", observations[0].Description)
	assert.InDelta(t, 10.0, observations[0].Quantity, 1e-9)
	assert.True(t, observations[0].HasQuantity)

	assert.InDelta(t, 20.5, observations[1].Quantity, 1e-9)
	assert.InDelta(t, 30.0, observations[2].Quantity, 1e-9)
}

func TestFetchAllRetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeRows(t, w, []map[string]any{row("2020", "SPV", "Solar", 10.0)})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	observations, err := client.FetchAll(context.Background(), testDataset(), []region.Code{"HI"}, model.YearRange{Start: 2020, End: 2020})
	require.NoError(t, err)
	assert.Equal(t, int32(3), requests.Load())
	assert.Len(t, observations, 1)
}

func TestFetchAllClientErrorAbortsImmediately(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"bad facet"}`)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.FetchAll(context.Background(), testDataset(), []region.Code{"HI"}, model.YearRange{Start: 2020, End: 2020})
	require.ErrorIs(t, err, common.ErrSourceUnavailable)
	assert.Equal(t, int32(1), requests.Load(), "client errors must not be retried")
}

func TestFetchAllContinuesPastFailedRegion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("facets[location][]") == "CA" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeRows(t, w, []map[string]any{row("2020", "SPV", "Solar", 10.0)})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	observations, err := client.FetchAll(context.Background(), testDataset(), []region.Code{"CA", "HI"}, model.YearRange{Start: 2020, End: 2020})
	require.NoError(t, err)
	require.Len(t, observations, 1)
	assert.Equal(t, region.Code("HI"), observations[0].Region)
}

func TestFetchAllSchemaFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"unexpected": true}`)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.FetchAll(context.Background(), testDataset(), []region.Code{"HI"}, model.YearRange{Start: 2020, End: 2020})
	require.ErrorIs(t, err, common.ErrSourceUnavailable)
}

func TestFetchAllRejectsUnparseablePage(t *testing.T) {
	// Every row lacks the period and fueltypeid fields, as after an upstream
	// column rename. The page must fail as a schema error, not silently
	// produce zero observations.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeRows(t, w, []map[string]any{
			{"year": "2020", "fuelCode": "SPV", "generation": 10.0},
			{"year": "2020", "fuelCode": "COW", "generation": 20.0},
		})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.FetchAll(context.Background(), testDataset(), []region.Code{"HI"}, model.YearRange{Start: 2020, End: 2020})
	require.ErrorIs(t, err, common.ErrSourceUnavailable)
}

func TestFetchRegionSchemaErrorOnUnparseablePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeRows(t, w, []map[string]any{
			{"year": "2020", "fuelCode": "SPV", "generation": 10.0},
		})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.fetchRegion(context.Background(), testDataset(), "HI", model.YearRange{Start: 2020, End: 2020})
	require.ErrorIs(t, err, common.ErrSchema)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestParseRow(t *testing.T) {
	client, err := NewClient(testConfig("http://example.invalid"))
	require.NoError(t, err)
	dataset := testDataset()

	tests := []struct {
		name   string
		row    map[string]any
		wantOK bool
		check  func(t *testing.T, obs model.Observation)
	}{
		{
			name:   "absent quantity is distinguishable from zero",
			row:    row("2020", "SPV", "Solar", "NA"),
			wantOK: true,
			check: func(t *testing.T, obs model.Observation) {
				assert.False(t, obs.HasQuantity)
				assert.Zero(t, obs.Quantity)
			},
		},
		{
			name:   "null quantity",
			row:    row("2020", "SPV", "Solar", nil),
			wantOK: true,
			check: func(t *testing.T, obs model.Observation) {
				assert.False(t, obs.HasQuantity)
			},
		},
		{
			name:   "true zero keeps HasQuantity",
			row:    row("2020", "SPV", "Solar", 0.0),
			wantOK: true,
			check: func(t *testing.T, obs model.Observation) {
				assert.True(t, obs.HasQuantity)
				assert.Zero(t, obs.Quantity)
			},
		},
		{
			name:   "code is normalized",
			row:    row("2020", " spv ", "Solar", 1.0),
			wantOK: true,
			check: func(t *testing.T, obs model.Observation) {
				assert.Equal(t, "SPV", obs.CategoryCode)
			},
		},
		{
			name:   "missing code skips row",
			row:    map[string]any{"period": "2020", "generation": 1.0},
			wantOK: false,
		},
		{
			name:   "junk year skips row",
			row:    row("n/a", "SPV", "Solar", 1.0),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, ok := client.parseRow(tt.row, dataset, "HI")
			require.Equal(t, tt.wantOK, ok)
			if tt.check != nil {
				tt.check(t, obs)
			}
		})
	}
}
