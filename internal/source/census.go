package source

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openplan/corridor-cli/internal/config"
	"github.com/openplan/corridor-cli/internal/fetcher"
	"github.com/openplan/corridor-cli/internal/geometry"
)

// ACS 5-year tables queried per tract:
//
//	B01003_001E  total population
//	B19013_001E  median household income
//	B08301_001E  total commuters (means of transport to work)
//	B08301_010E  public transit commuters
//	B08301_019E  walk commuters
//	B08301_018E  bicycle commuters
//	B08301_021E  work from home
//	B25044_001E  households (vehicles available universe)
//	B25044_003E  zero-vehicle households (owner)
//	B25044_010E  zero-vehicle households (renter)
//	B03002_001E  total population (race/ethnicity universe)
//	B03002_003E  white non-Hispanic
//	B17001_001E  poverty status universe
//	B17001_002E  below poverty level
var acsVariables = []string{
	"B01003_001E",
	"B19013_001E",
	"B08301_001E",
	"B08301_010E",
	"B08301_019E",
	"B08301_018E",
	"B08301_021E",
	"B25044_001E",
	"B25044_003E",
	"B25044_010E",
	"B03002_001E",
	"B03002_003E",
	"B17001_001E",
	"B17001_002E",
}

// CensusTract holds the per-tract ACS figures the corridor analysis
// consumes. Percentages are precomputed per tract so equity screening
// can threshold them directly.
type CensusTract struct {
	GeoID                 string `json:"geoid"`
	State                 string `json:"state"`
	County                string `json:"county"`
	Tract                 string `json:"tract"`
	Population            int    `json:"population"`
	MedianIncome          *int   `json:"medianIncome"`
	TotalCommuters        int    `json:"totalCommuters"`
	TransitCommuters      int    `json:"transitCommuters"`
	WalkCommuters         int    `json:"walkCommuters"`
	BikeCommuters         int    `json:"bikeCommuters"`
	WFHCommuters          int    `json:"wfhCommuters"`
	ZeroVehicleHouseholds int    `json:"zeroVehicleHouseholds"`
	TotalHouseholds       int    `json:"totalHouseholds"`
	PctMinority           float64 `json:"pctMinority"`
	PctBelowPoverty       float64 `json:"pctBelowPoverty"`
}

// CensusSummary aggregates tract figures to corridor level. Commute
// mode shares are taken over summed commuters, income is
// population-weighted, and minority/poverty shares are
// population-weighted means of the tract percentages.
type CensusSummary struct {
	Tracts               []CensusTract `json:"tracts"`
	TotalPopulation      int           `json:"totalPopulation"`
	TotalCommuters       int           `json:"totalCommuters"`
	MedianIncomeWeighted *int          `json:"medianIncomeWeighted"`
	PctTransit           float64       `json:"pctTransit"`
	PctWalk              float64       `json:"pctWalk"`
	PctBike              float64       `json:"pctBike"`
	PctWfh               float64       `json:"pctWfh"`
	PctZeroVehicle       float64       `json:"pctZeroVehicle"`
	PctMinority          float64       `json:"pctMinority"`
	PctBelowPoverty      float64       `json:"pctBelowPoverty"`
}

// CensusSource fetches ACS demographics for the tracts overlapping a
// corridor bounding box.
type CensusSource struct {
	http  *fetcher.HTTPFetcher
	cache *fetcher.Cache
	cfg   config.CensusConfig
}

// NewCensusSource creates a census source.
func NewCensusSource(http *fetcher.HTTPFetcher, cache *fetcher.Cache, cfg config.CensusConfig) *CensusSource {
	return &CensusSource{http: http, cache: cache, cfg: cfg}
}

// Fetch resolves the counties overlapping the box, pulls every tract in
// each county concurrently, deduplicates by geoid, and summarizes.
// When no county resolves or no tract row comes back the summary is
// all-zero with an empty tract list; the caller reads that as the
// "census unavailable" signal and lowers run confidence.
func (s *CensusSource) Fetch(ctx context.Context, box geometry.BBox) *CensusSummary {
	counties := s.ResolveCounties(ctx, box)
	if len(counties) == 0 {
		zap.L().Warn("census: no counties resolved for bbox")
		return summarizeTracts(nil)
	}

	perCounty := make([][]CensusTract, len(counties))
	g, gctx := errgroup.WithContext(ctx)
	for i, county := range counties {
		g.Go(func() error {
			perCounty[i] = s.fetchCountyTracts(gctx, county)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	seen := make(map[string]struct{})
	var tracts []CensusTract
	for _, batch := range perCounty {
		for _, t := range batch {
			if _, dup := seen[t.GeoID]; dup {
				continue
			}
			seen[t.GeoID] = struct{}{}
			tracts = append(tracts, t)
		}
	}

	return summarizeTracts(tracts)
}

// acsRows is the Census API response shape: a header row of column
// names followed by one string row per tract. Cells can be JSON null.
type acsRows [][]*string

func (s *CensusSource) fetchCountyTracts(ctx context.Context, county County) []CensusTract {
	vars := "NAME"
	for _, v := range acsVariables {
		vars += "," + v
	}

	reqURL := fmt.Sprintf("%s/%s/%s?get=%s&for=tract:*&in=state:%s%%20county:%s",
		s.cfg.BaseURL, s.cfg.Year, s.cfg.Dataset, vars, county.State, county.County)
	if s.cfg.APIKey != "" {
		reqURL += "&key=" + url.QueryEscape(s.cfg.APIKey)
	}

	rows, ok := fetcher.FetchJSON[acsRows](ctx, s.http, s.cache, fetcher.Request{
		URL:      reqURL,
		Timeout:  14 * time.Second,
		Retries:  1,
		CacheTTL: 6 * time.Hour,
		CacheKey: fmt.Sprintf("acs:%s:%s:%s", s.cfg.Year, county.State, county.County),
	})
	if !ok || len(*rows) < 2 {
		zap.L().Warn("census: county tract query returned no rows",
			zap.String("state", county.State), zap.String("county", county.County))
		return nil
	}

	header := (*rows)[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		if name != nil {
			col[*name] = i
		}
	}

	cell := func(row []*string, name string) (int, bool) {
		i, ok := col[name]
		if !ok || i >= len(row) || row[i] == nil {
			return 0, false
		}
		v, err := strconv.Atoi(*row[i])
		if err != nil {
			return 0, false
		}
		return v, true
	}
	// num treats missing cells and the Census negative sentinels
	// (e.g. -666666666) as zero.
	num := func(row []*string, name string) int {
		v, ok := cell(row, name)
		if !ok || v < 0 {
			return 0
		}
		return v
	}
	str := func(row []*string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) || row[i] == nil {
			return ""
		}
		return *row[i]
	}

	tracts := make([]CensusTract, 0, len(*rows)-1)
	for _, row := range (*rows)[1:] {
		totalPopRace := num(row, "B03002_001E")
		whiteNonHisp := num(row, "B03002_003E")
		povertyTotal := num(row, "B17001_001E")
		belowPoverty := num(row, "B17001_002E")

		var medianIncome *int
		if v, ok := cell(row, "B19013_001E"); ok && v >= 0 {
			medianIncome = &v
		}

		stFips := str(row, "state")
		coFips := str(row, "county")
		trFips := str(row, "tract")

		tracts = append(tracts, CensusTract{
			GeoID:                 stFips + coFips + trFips,
			State:                 stFips,
			County:                coFips,
			Tract:                 trFips,
			Population:            num(row, "B01003_001E"),
			MedianIncome:          medianIncome,
			TotalCommuters:        num(row, "B08301_001E"),
			TransitCommuters:      num(row, "B08301_010E"),
			WalkCommuters:         num(row, "B08301_019E"),
			BikeCommuters:         num(row, "B08301_018E"),
			WFHCommuters:          num(row, "B08301_021E"),
			ZeroVehicleHouseholds: num(row, "B25044_003E") + num(row, "B25044_010E"),
			TotalHouseholds:       num(row, "B25044_001E"),
			PctMinority:           pct(float64(totalPopRace-whiteNonHisp), float64(totalPopRace)),
			PctBelowPoverty:       pct(float64(belowPoverty), float64(povertyTotal)),
		})
	}

	return tracts
}

func summarizeTracts(tracts []CensusTract) *CensusSummary {
	summary := &CensusSummary{Tracts: tracts}
	if len(tracts) == 0 {
		return summary
	}

	var (
		totalPop, totalCommuters                            int
		totalTransit, totalWalk, totalBike, totalWfh        int
		totalZeroVeh, totalHH                               int
		incomeWeighted, incomePop                           float64
		minorityWeighted, povertyWeighted, povertyPopulated float64
	)

	for _, t := range tracts {
		totalPop += t.Population
		totalCommuters += t.TotalCommuters
		totalTransit += t.TransitCommuters
		totalWalk += t.WalkCommuters
		totalBike += t.BikeCommuters
		totalWfh += t.WFHCommuters
		totalZeroVeh += t.ZeroVehicleHouseholds
		totalHH += t.TotalHouseholds

		if t.MedianIncome != nil && t.Population > 0 {
			incomeWeighted += float64(*t.MedianIncome) * float64(t.Population)
			incomePop += float64(t.Population)
		}
		minorityWeighted += (t.PctMinority / 100) * float64(t.Population)
		povertyWeighted += (t.PctBelowPoverty / 100) * float64(t.Population)
		if t.PctBelowPoverty > 0 {
			povertyPopulated += float64(t.Population)
		}
	}

	summary.TotalPopulation = totalPop
	summary.TotalCommuters = totalCommuters
	if incomePop > 0 {
		v := int(math.Round(incomeWeighted / incomePop))
		summary.MedianIncomeWeighted = &v
	}
	summary.PctTransit = pct(float64(totalTransit), float64(totalCommuters))
	summary.PctWalk = pct(float64(totalWalk), float64(totalCommuters))
	summary.PctBike = pct(float64(totalBike), float64(totalCommuters))
	summary.PctWfh = pct(float64(totalWfh), float64(totalCommuters))
	summary.PctZeroVehicle = pct(float64(totalZeroVeh), float64(totalHH))
	if totalPop > 0 {
		summary.PctMinority = roundTenth(minorityWeighted / float64(totalPop) * 100)
	}
	if povertyPopulated > 0 {
		summary.PctBelowPoverty = roundTenth(povertyWeighted / povertyPopulated * 100)
	}

	return summary
}
