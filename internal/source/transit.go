package source

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/openplan/corridor-cli/internal/config"
	"github.com/openplan/corridor-cli/internal/fetcher"
	"github.com/openplan/corridor-cli/internal/geometry"
)

// TransitSummary counts transit stops inside the corridor box, a
// lightweight accessibility proxy in lieu of full GTFS ingestion.
type TransitSummary struct {
	TotalStops     int     `json:"totalStops"`
	BusStops       int     `json:"busStops"`
	RailStations   int     `json:"railStations"`
	FerryStops     int     `json:"ferryStops"`
	StopsPerSqMile float64 `json:"stopsPerSqMile"`
	AccessTier     Tier    `json:"accessTier"`
	Source         Tag     `json:"source"`
}

// TransitSource counts OpenStreetMap transit stops via the Overpass
// API, trying each configured endpoint in order.
type TransitSource struct {
	http  *fetcher.HTTPFetcher
	cache *fetcher.Cache
	cfg   config.TransitConfig
}

// NewTransitSource creates a transit source.
func NewTransitSource(http *fetcher.HTTPFetcher, cache *fetcher.Cache, cfg config.TransitConfig) *TransitSource {
	return &TransitSource{http: http, cache: cache, cfg: cfg}
}

// classifyTransitTier buckets stop density into an access tier.
func classifyTransitTier(stopsPerSqMile float64) Tier {
	switch {
	case stopsPerSqMile >= 8:
		return TierHigh
	case stopsPerSqMile >= 3:
		return TierMedium
	default:
		return TierLow
	}
}

// overpassElement is one Overpass result node. Nodes missing an id are
// deduplicated by rounded coordinate instead.
type overpassElement struct {
	ID   *int64            `json:"id"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

// overpassQuery builds the Overpass QL statement for the box. Overpass
// bbox ordering is south,west,north,east.
func overpassQuery(box geometry.BBox) string {
	bbox := fmt.Sprintf("(%v,%v,%v,%v)", box.MinLat, box.MinLon, box.MaxLat, box.MaxLon)
	return `[out:json][timeout:20];
(
  node["highway"="bus_stop"]` + bbox + `;
  node["public_transport"="stop_position"]` + bbox + `;
  node["railway"="station"]` + bbox + `;
  node["amenity"="ferry_terminal"]` + bbox + `;
);
out tags center;
`
}

// Fetch counts transit stops in the box. Endpoints are tried in order;
// when all fail the density estimate takes over so the analysis always
// has a transit picture.
func (s *TransitSource) Fetch(ctx context.Context, box geometry.BBox) *TransitSummary {
	area := box.AreaSqMiles()
	query := overpassQuery(box)

	for _, endpoint := range s.cfg.Endpoints {
		header := http.Header{}
		header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, ok := fetcher.FetchJSON[overpassResponse](ctx, s.http, s.cache, fetcher.Request{
			Method:   http.MethodPost,
			URL:      endpoint,
			Body:     "data=" + url.QueryEscape(query),
			Header:   header,
			Timeout:  15 * time.Second,
			Retries:  1,
			CacheTTL: 5 * time.Minute,
			CacheKey: fmt.Sprintf("overpass:%s:%.4f:%.4f:%.4f:%.4f",
				endpoint, box.MinLat, box.MinLon, box.MaxLat, box.MaxLon),
		})
		if !ok {
			zap.L().Debug("transit: overpass endpoint failed", zap.String("endpoint", endpoint))
			continue
		}

		return summarizeStops(resp.Elements, area)
	}

	zap.L().Warn("transit: all overpass endpoints failed, using estimate")
	return estimateTransit(area)
}

func summarizeStops(elements []overpassElement, area float64) *TransitSummary {
	stops := make(map[string]struct{})
	bus := make(map[string]struct{})
	rail := make(map[string]struct{})
	ferry := make(map[string]struct{})

	for _, el := range elements {
		var key string
		if el.ID != nil {
			key = fmt.Sprintf("node:%d", *el.ID)
		} else {
			key = fmt.Sprintf("pt:%.6f:%.6f", el.Lat, el.Lon)
		}

		isBus := el.Tags["highway"] == "bus_stop" || el.Tags["public_transport"] == "stop_position"
		isRail := el.Tags["railway"] == "station"
		isFerry := el.Tags["amenity"] == "ferry_terminal"
		if !isBus && !isRail && !isFerry {
			continue
		}

		stops[key] = struct{}{}
		if isBus {
			bus[key] = struct{}{}
		}
		if isRail {
			rail[key] = struct{}{}
		}
		if isFerry {
			ferry[key] = struct{}{}
		}
	}

	density := roundTenth(float64(len(stops)) / area)
	return &TransitSummary{
		TotalStops:     len(stops),
		BusStops:       len(bus),
		RailStations:   len(rail),
		FerryStops:     len(ferry),
		StopsPerSqMile: density,
		AccessTier:     classifyTransitTier(density),
		Source:         TagOSMOverpass,
	}
}

// estimateTransit assumes a sparse national baseline of 2.5 stops per
// square mile, split 85/10/5 across bus, rail, and ferry.
func estimateTransit(area float64) *TransitSummary {
	estStops := int(math.Max(1, math.Round(area*2.5)))
	density := roundTenth(float64(estStops) / area)

	return &TransitSummary{
		TotalStops:     estStops,
		BusStops:       int(math.Round(float64(estStops) * 0.85)),
		RailStations:   int(math.Round(float64(estStops) * 0.1)),
		FerryStops:     int(math.Round(float64(estStops) * 0.05)),
		StopsPerSqMile: density,
		AccessTier:     classifyTransitTier(density),
		Source:         TagEstimate,
	}
}
