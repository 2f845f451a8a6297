package source

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/openplan/corridor-cli/internal/fetcher"
	"github.com/openplan/corridor-cli/internal/geometry"
)

// County is a state+county FIPS pair, the unit ACS tract queries are
// scoped to.
type County struct {
	State  string `json:"state"`
	County string `json:"county"`
}

// fccBlockResponse is the FCC census block find payload. Only the block
// FIPS is used; the first five digits are state+county.
type fccBlockResponse struct {
	Block struct {
		FIPS string `json:"FIPS"`
	} `json:"Block"`
}

// ResolveCounties looks up the state+county FIPS codes overlapping the
// box by geocoding its four corners plus the box center through the
// FCC block API. Individual lookup failures are skipped; an empty
// result means the census source must fall back to its estimate path.
//
// Lookups run sequentially so the deduplicated result order is stable.
func (s *CensusSource) ResolveCounties(ctx context.Context, box geometry.BBox) []County {
	points := [][2]float64{
		{box.MinLon, box.MinLat},
		{box.MaxLon, box.MinLat},
		{box.MinLon, box.MaxLat},
		{box.MaxLon, box.MaxLat},
		{(box.MinLon + box.MaxLon) / 2, (box.MinLat + box.MaxLat) / 2},
	}

	seen := make(map[string]struct{})
	var counties []County

	for _, p := range points {
		lon, lat := p[0], p[1]

		q := url.Values{}
		q.Set("latitude", fmt.Sprintf("%v", lat))
		q.Set("longitude", fmt.Sprintf("%v", lon))
		q.Set("format", "json")

		resp, ok := fetcher.FetchJSON[fccBlockResponse](ctx, s.http, s.cache, fetcher.Request{
			URL:      s.cfg.FCCURL + "?" + q.Encode(),
			Timeout:  6 * time.Second,
			Retries:  1,
			CacheTTL: 24 * time.Hour,
			CacheKey: fmt.Sprintf("fcc:%.4f:%.4f", lat, lon),
		})
		if !ok {
			zap.L().Debug("fcc block lookup failed",
				zap.Float64("lat", lat), zap.Float64("lon", lon))
			continue
		}

		fips := resp.Block.FIPS
		if len(fips) < 5 {
			continue
		}

		key := fips[:5]
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		counties = append(counties, County{State: fips[:2], County: fips[2:5]})
	}

	return counties
}
