package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/openplan/corridor-cli/internal/config"
	"github.com/openplan/corridor-cli/internal/fetcher"
	"github.com/openplan/corridor-cli/internal/geometry"
)

// CrashSummary is the corridor-level crash safety picture. FARS covers
// fatal crashes only, so injury fields are zero on the fars-api path;
// the local adapter fills them from state severity coding.
type CrashSummary struct {
	TotalFatalCrashes    int     `json:"totalFatalCrashes"`
	TotalFatalities      int     `json:"totalFatalities"`
	PedestrianFatalities int     `json:"pedestrianFatalities"`
	BicyclistFatalities  int     `json:"bicyclistFatalities"`
	SevereInjuryCrashes  int     `json:"severeInjuryCrashes"`
	TotalInjuryCrashes   int     `json:"totalInjuryCrashes"`
	YearsQueried         []int   `json:"yearsQueried"`
	CrashesPerSquareMile float64 `json:"crashesPerSquareMile"`
	Source               Tag     `json:"source"`
}

// CrashSource fetches crash data with a fixed priority order: an
// authoritative state/local extract when configured and in coverage,
// then the NHTSA FARS API, then an area-based estimate.
type CrashSource struct {
	http  *fetcher.HTTPFetcher
	cfg   config.CrashesConfig
	local *LocalCrashAdapter
}

// NewCrashSource creates a crash source. The local adapter is only
// constructed when a dataset URL is configured.
func NewCrashSource(http *fetcher.HTTPFetcher, cfg config.CrashesConfig) *CrashSource {
	s := &CrashSource{http: http, cfg: cfg}
	if cfg.LocalDatasetURL != "" {
		s.local = NewLocalCrashAdapter(http, cfg.LocalDatasetURL)
	}
	return s
}

// Fetch returns the crash summary for the box. Never fails: every
// degraded path lands on the deterministic estimate.
func (s *CrashSource) Fetch(ctx context.Context, box geometry.BBox) *CrashSummary {
	if s.local != nil {
		if summary, err := s.local.Fetch(ctx, box); err == nil {
			return summary
		} else {
			zap.L().Warn("crashes: local dataset unavailable, trying fars", zap.Error(err))
		}
	}
	return s.fetchFARS(ctx, box)
}

// intOrString decodes a numeric FARS field that the API serves
// inconsistently as either a JSON number or a quoted string.
type intOrString int

func (n *intOrString) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*n = intOrString(v)
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			*n = 0
			return nil
		}
		*n = intOrString(parsed)
	default:
		*n = 0
	}
	return nil
}

type farsCrash struct {
	Fatals     intOrString `json:"FATALS"`
	Peds       intOrString `json:"PEDS"`
	Bicyclists intOrString `json:"BICYCLISTS"`
}

type farsResponse struct {
	Results [][]farsCrash `json:"Results"`
}

// fetchFARS queries the NHTSA CrashAPI one year at a time. A failed
// year is skipped rather than failing the fetch; if every year fails
// the area estimate takes over.
func (s *CrashSource) fetchFARS(ctx context.Context, box geometry.BBox) *CrashSummary {
	var (
		totalCrashes, totalFatalities int
		pedFatalities, bikeFatalities int
		queriedYears                  []int
	)

	for _, year := range s.cfg.Years {
		reqURL := fmt.Sprintf("%s?fromCaseYear=%d&toCaseYear=%d&minLat=%v&maxLat=%v&minLong=%v&maxLong=%v&format=json",
			s.cfg.FARSURL, year, year, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)

		resp, ok := fetcher.FetchJSON[farsResponse](ctx, s.http, nil, fetcher.Request{
			URL:     reqURL,
			Timeout: 10 * time.Second,
			Retries: -1,
		})
		if !ok {
			zap.L().Debug("crashes: fars year query failed", zap.Int("year", year))
			continue
		}

		queriedYears = append(queriedYears, year)
		if len(resp.Results) == 0 {
			continue
		}
		for _, crash := range resp.Results[0] {
			totalCrashes++
			totalFatalities += int(crash.Fatals)
			pedFatalities += int(crash.Peds)
			bikeFatalities += int(crash.Bicyclists)
		}
	}

	area := box.AreaSqMiles()

	if len(queriedYears) == 0 {
		return estimateCrashes(area, s.cfg.Years)
	}

	return &CrashSummary{
		TotalFatalCrashes:    totalCrashes,
		TotalFatalities:      totalFatalities,
		PedestrianFatalities: pedFatalities,
		BicyclistFatalities:  bikeFatalities,
		SevereInjuryCrashes:  0,
		TotalInjuryCrashes:   totalCrashes,
		YearsQueried:         queriedYears,
		CrashesPerSquareMile: roundTenth(float64(totalCrashes) / float64(len(queriedYears)) / area),
		Source:               TagFARSAPI,
	}
}

// estimateCrashes synthesizes a crash summary from bounding-box area
// using a national baseline of roughly 1.3 injury crashes per square
// mile per year, with fixed severity and mode multipliers.
func estimateCrashes(areaSqMiles float64, years []int) *CrashSummary {
	estPerYear := math.Round(areaSqMiles * 1.3)
	const estYears = 3
	total := estPerYear * estYears

	yearsQueried := append([]int(nil), years...)
	sort.Sort(sort.Reverse(sort.IntSlice(yearsQueried)))

	return &CrashSummary{
		TotalFatalCrashes:    int(total),
		TotalFatalities:      int(math.Round(total * 1.1)),
		PedestrianFatalities: int(math.Round(total * 0.17)),
		BicyclistFatalities:  int(math.Round(total * 0.02)),
		SevereInjuryCrashes:  int(math.Round(total * 1.8)),
		TotalInjuryCrashes:   int(math.Round(total * 4.5)),
		YearsQueried:         yearsQueried,
		CrashesPerSquareMile: roundTenth(estPerYear / areaSqMiles),
		Source:               TagFARSEstimate,
	}
}
