package source

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/openplan/corridor-cli/internal/config"
	"github.com/openplan/corridor-cli/internal/fetcher"
	"github.com/openplan/corridor-cli/internal/geometry"
)

// JobsByEarnings splits corridor jobs into the LODES earnings tiers.
type JobsByEarnings struct {
	Low  int `json:"low"`  // $1,250/mo or less (SE01)
	Mid  int `json:"mid"`  // $1,251-$3,333/mo (SE02)
	High int `json:"high"` // $3,333+/mo (SE03)
}

// JobsByIndustry splits corridor jobs into the LODES industry supersectors.
type JobsByIndustry struct {
	Goods    int `json:"goods"`    // SI01 goods producing
	Trade    int `json:"trade"`    // SI02 trade, transportation, utilities
	Services int `json:"services"` // SI03 all other services
}

// EmploymentSummary is the corridor-level LODES employment picture.
type EmploymentSummary struct {
	TotalJobs       int            `json:"totalJobs"`
	JobsByEarnings  JobsByEarnings `json:"jobsByEarnings"`
	JobsByIndustry  JobsByIndustry `json:"jobsByIndustry"`
	Inflow          int            `json:"inflow"`   // workers commuting in
	Outflow         int            `json:"outflow"`  // workers commuting out
	Internal        int            `json:"internal"` // live and work inside
	JobsPerResident float64        `json:"jobsPerResident"`
	Source          Tag            `json:"source"`
}

// EmploymentSource produces LODES-style employment figures. The live
// OnTheMap path is config-gated because the API has been intermittently
// available; with no live URL configured the source always returns the
// ACS-calibrated estimate, tagged as such.
type EmploymentSource struct {
	http  *fetcher.HTTPFetcher
	cache *fetcher.Cache
	cfg   config.EmploymentConfig
}

// NewEmploymentSource creates an employment source.
func NewEmploymentSource(http *fetcher.HTTPFetcher, cache *fetcher.Cache, cfg config.EmploymentConfig) *EmploymentSource {
	return &EmploymentSource{http: http, cache: cache, cfg: cfg}
}

// Fetch returns the employment summary for the corridor. Runs after the
// census fetch: the estimate path is calibrated on the corridor
// population and commuter totals it produced.
func (s *EmploymentSource) Fetch(ctx context.Context, box geometry.BBox, census *CensusSummary) *EmploymentSummary {
	if s.cfg.LiveURL != "" {
		if live, ok := s.fetchLive(ctx, box, census); ok {
			return live
		}
		zap.L().Warn("employment: live endpoint unavailable, using acs estimate")
	}
	return EstimateFromCensus(census.TotalPopulation, census.TotalCommuters)
}

// liveEmployment is the summary-endpoint payload shape.
type liveEmployment struct {
	TotalJobs int `json:"totalJobs"`
	Earnings  struct {
		Low  int `json:"low"`
		Mid  int `json:"mid"`
		High int `json:"high"`
	} `json:"earnings"`
	Industry struct {
		Goods    int `json:"goods"`
		Trade    int `json:"trade"`
		Services int `json:"services"`
	} `json:"industry"`
	Inflow   int `json:"inflow"`
	Outflow  int `json:"outflow"`
	Internal int `json:"internal"`
}

func (s *EmploymentSource) fetchLive(ctx context.Context, box geometry.BBox, census *CensusSummary) (*EmploymentSummary, bool) {
	reqURL := fmt.Sprintf("%s?minLon=%v&minLat=%v&maxLon=%v&maxLat=%v",
		s.cfg.LiveURL, box.MinLon, box.MinLat, box.MaxLon, box.MaxLat)

	resp, ok := fetcher.FetchJSON[liveEmployment](ctx, s.http, s.cache, fetcher.Request{
		URL:      reqURL,
		CacheTTL: 6 * time.Hour,
	})
	if !ok || resp.TotalJobs <= 0 {
		return nil, false
	}

	jobsPerResident := 0.0
	if census.TotalPopulation > 0 {
		jobsPerResident = roundHundredth(float64(resp.TotalJobs) / float64(census.TotalPopulation))
	}

	return &EmploymentSummary{
		TotalJobs: resp.TotalJobs,
		JobsByEarnings: JobsByEarnings{
			Low: resp.Earnings.Low, Mid: resp.Earnings.Mid, High: resp.Earnings.High,
		},
		JobsByIndustry: JobsByIndustry{
			Goods: resp.Industry.Goods, Trade: resp.Industry.Trade, Services: resp.Industry.Services,
		},
		Inflow:          resp.Inflow,
		Outflow:         resp.Outflow,
		Internal:        resp.Internal,
		JobsPerResident: jobsPerResident,
		Source:          TagLODESAPI,
	}, true
}

// EstimateFromCensus derives employment figures from corridor
// population using national-average calibration: roughly 0.47 jobs per
// resident, with earnings tier shares 21/33/46 and industry shares
// 14/21/65. Commuter flows lean on the ACS commuter total when present.
func EstimateFromCensus(totalPopulation, totalCommuters int) *EmploymentSummary {
	estJobs := int(math.Round(float64(totalPopulation) * 0.47))
	estCommuters := totalCommuters
	if estCommuters == 0 {
		estCommuters = int(math.Round(float64(totalPopulation) * 0.45))
	}

	jobsPerResident := 0.0
	if totalPopulation > 0 {
		jobsPerResident = roundHundredth(float64(estJobs) / float64(totalPopulation))
	}

	return &EmploymentSummary{
		TotalJobs: estJobs,
		JobsByEarnings: JobsByEarnings{
			Low:  int(math.Round(float64(estJobs) * 0.21)),
			Mid:  int(math.Round(float64(estJobs) * 0.33)),
			High: int(math.Round(float64(estJobs) * 0.46)),
		},
		JobsByIndustry: JobsByIndustry{
			Goods:    int(math.Round(float64(estJobs) * 0.14)),
			Trade:    int(math.Round(float64(estJobs) * 0.21)),
			Services: int(math.Round(float64(estJobs) * 0.65)),
		},
		Inflow:          int(math.Round(float64(estCommuters) * 0.6)),
		Outflow:         int(math.Round(float64(estCommuters) * 0.55)),
		Internal:        int(math.Round(float64(estCommuters) * 0.15)),
		JobsPerResident: jobsPerResident,
		Source:          TagACSEstimate,
	}
}
