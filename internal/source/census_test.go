package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openplan/corridor-cli/internal/config"
	"github.com/openplan/corridor-cli/internal/fetcher"
)

// acsFixture is a two-tract county response: tract A is a larger,
// lower-income tract with a null-free row, tract B has a null median
// income (the Census serves null for suppressed estimates).
const acsFixture = `[
	["NAME","B01003_001E","B19013_001E","B08301_001E","B08301_010E","B08301_019E","B08301_018E","B08301_021E","B25044_001E","B25044_003E","B25044_010E","B03002_001E","B03002_003E","B17001_001E","B17001_002E","state","county","tract"],
	["Tract A","4000","42000","2000","300","200","100","150","1600","100","60","4000","1600","4000","1000","06","001","400100"],
	["Tract B","1000",null,"500","25","10","5","50","400","10","10","1000","900","1000","0","06","001","400200"]
]`

func newCensusTestServer(t *testing.T, acsBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/block/find"):
			w.Write([]byte(`{"Block":{"FIPS":"060014001001001"}}`)) //nolint:errcheck
		case strings.HasPrefix(r.URL.Path, "/data/"):
			assert.Contains(t, r.URL.RawQuery, "for=tract:*")
			w.Write([]byte(acsBody)) //nolint:errcheck
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newCensusSourceFor(srv *httptest.Server) *CensusSource {
	return NewCensusSource(testFetcher(), fetcher.NewCache(), config.CensusConfig{
		BaseURL: srv.URL + "/data",
		FCCURL:  srv.URL + "/block/find",
		Year:    "2023",
		Dataset: "acs/acs5",
	})
}

func TestCensusFetch_SummarizesTracts(t *testing.T) {
	srv := newCensusTestServer(t, acsFixture)
	defer srv.Close()

	got := newCensusSourceFor(srv).Fetch(context.Background(), testBox)

	require.Len(t, got.Tracts, 2)
	assert.Equal(t, "06001400100", got.Tracts[0].GeoID)
	assert.Equal(t, 160, got.Tracts[0].ZeroVehicleHouseholds)
	assert.Equal(t, 60.0, got.Tracts[0].PctMinority)
	assert.Equal(t, 25.0, got.Tracts[0].PctBelowPoverty)
	assert.Nil(t, got.Tracts[1].MedianIncome)

	assert.Equal(t, 5000, got.TotalPopulation)
	assert.Equal(t, 2500, got.TotalCommuters)
	require.NotNil(t, got.MedianIncomeWeighted)
	assert.Equal(t, 42000, *got.MedianIncomeWeighted) // only tract A reports income
	assert.Equal(t, 13.0, got.PctTransit)
	assert.Equal(t, 8.4, got.PctWalk)
	assert.Equal(t, 4.2, got.PctBike)
	assert.Equal(t, 8.0, got.PctWfh)
	assert.Equal(t, 9.0, got.PctZeroVehicle)
	assert.Equal(t, 50.0, got.PctMinority)
	assert.Equal(t, 25.0, got.PctBelowPoverty) // poverty share over tracts reporting poverty
}

func TestCensusFetch_UpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	got := newCensusSourceFor(srv).Fetch(context.Background(), testBox)
	assert.Empty(t, got.Tracts)
	assert.Equal(t, 0, got.TotalPopulation)
}

func TestCensusFetch_NegativeSentinelsZeroed(t *testing.T) {
	body := `[
		["NAME","B01003_001E","B19013_001E","B08301_001E","B08301_010E","B08301_019E","B08301_018E","B08301_021E","B25044_001E","B25044_003E","B25044_010E","B03002_001E","B03002_003E","B17001_001E","B17001_002E","state","county","tract"],
		["Tract C","-666666666","-666666666","100","10","5","5","10","50","5","5","100","50","100","10","06","001","400300"]
	]`
	srv := newCensusTestServer(t, body)
	defer srv.Close()

	got := newCensusSourceFor(srv).Fetch(context.Background(), testBox)
	require.Len(t, got.Tracts, 1)
	assert.Equal(t, 0, got.Tracts[0].Population)
	assert.Nil(t, got.Tracts[0].MedianIncome)
	assert.Nil(t, got.MedianIncomeWeighted)
}

func TestResolveCounties_DedupesByCountyFIPS(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"Block":{"FIPS":"060750101001001"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	counties := newCensusSourceFor(srv).ResolveCounties(context.Background(), testBox)
	assert.Equal(t, 5, calls) // four corners plus the center
	require.Len(t, counties, 1)
	assert.Equal(t, County{State: "06", County: "075"}, counties[0])
}

func TestResolveCounties_SkipsFailedLookups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("latitude") == "38" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"Block":{"FIPS":"060014001001001"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	counties := newCensusSourceFor(srv).ResolveCounties(context.Background(), testBox)
	require.Len(t, counties, 1)
	assert.Equal(t, "06", counties[0].State)
}

func TestResolveCounties_ShortFIPSSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Block":{"FIPS":"06"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	counties := newCensusSourceFor(srv).ResolveCounties(context.Background(), testBox)
	assert.Empty(t, counties)
}

func TestSummarizeTracts_Empty(t *testing.T) {
	got := summarizeTracts(nil)
	assert.Empty(t, got.Tracts)
	assert.Nil(t, got.MedianIncomeWeighted)
	assert.Zero(t, got.PctTransit)
}
