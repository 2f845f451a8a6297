// Package source implements the per-source corridor data fetchers:
// Census/ACS demographics, LODES employment, crash safety, and transit
// stop density. Every fetcher degrades to a deterministic, clearly
// tagged estimate when its upstream is unavailable; upstream failure
// is never fatal to an analysis.
package source

import (
	"math"
	"strings"
)

// Tag identifies where a summary's numbers came from. Tags are a
// contractual part of the analysis output (the dataQuality record);
// estimate detection keys off the substring "estimate".
type Tag string

const (
	TagLODESAPI     Tag = "lodes-api"
	TagACSEstimate  Tag = "acs-estimate"
	TagLocalCrash   Tag = "switrs-local"
	TagFARSAPI      Tag = "fars-api"
	TagFARSEstimate Tag = "fars-estimate"
	TagOSMOverpass  Tag = "osm-overpass"
	TagEstimate     Tag = "estimate"
)

// IsEstimate reports whether the tag marks estimated (non-live) data.
func (t Tag) IsEstimate() bool {
	return strings.Contains(string(t), "estimate")
}

// Tier buckets a density or access level.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// roundTenth rounds to one decimal place, half away from zero. All
// percentage and density outputs round this way so repeated runs over
// identical inputs produce identical persisted metrics.
func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// roundHundredth rounds to two decimal places, half away from zero.
func roundHundredth(v float64) float64 {
	return math.Round(v*100) / 100
}

// pct returns n/d as a percentage rounded to one decimal, and exactly 0
// when the denominator is not positive (never NaN).
func pct(n, d float64) float64 {
	if d <= 0 {
		return 0
	}
	return roundTenth(n / d * 100)
}
