// Package access classifies corridor walk/bike network access from
// deterministic proxy signals. The current release deliberately avoids
// external routing APIs; observed isochrone catchments can replace the
// proxy components once an OSM routing provider is wired in.
package access

import (
	"fmt"
	"math"
)

// Tier is the walk/bike access classification.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Inputs are the proxy signals the classifier consumes. All come from
// data the analysis pipeline already fetched.
type Inputs struct {
	PctWalk               float64
	PctBike               float64
	PctZeroVehicle        float64
	TransitStopsPerSqMile float64
}

// Classification is the classifier output. ScoreBoost feeds the
// accessibility narrative; RawScore is retained for transparency.
type Classification struct {
	Tier       Tier   `json:"tier"`
	ScoreBoost int    `json:"scoreBoost"`
	Rationale  string `json:"rationale"`
	RawScore   int    `json:"rawScore"`
}

// bucket maps a value to a score: the score of the first breakpoint the
// value falls under, or the fallback past the last breakpoint. Scores
// are nondecreasing in the input, which keeps the classifier monotonic.
type bucket struct {
	maxExclusive float64
	score        int
}

func bucketScore(value float64, buckets []bucket, fallback int) int {
	for _, b := range buckets {
		if value < b.maxExclusive {
			return b.score
		}
	}
	return fallback
}

var (
	modeShareBuckets   = []bucket{{5, 4}, {10, 10}, {15, 16}, {25, 24}}
	zeroVehicleBuckets = []bucket{{5, 2}, {10, 6}, {20, 10}}
	stopDensityBuckets = []bucket{{5, 2}, {15, 6}, {30, 10}}
)

// Tier breakpoints on the raw proxy score.
const (
	highThreshold   = 39
	mediumThreshold = 21
	highBoost       = 8
	mediumBoost     = 4
)

func roundPct(v float64) float64 {
	return math.Max(0, math.Round(v*10)/10)
}

// Classify buckets the proxy signals into a walk/bike access tier.
func Classify(in Inputs) Classification {
	walkBikeShare := math.Max(0, in.PctWalk+in.PctBike)

	raw := bucketScore(walkBikeShare, modeShareBuckets, 30) +
		bucketScore(math.Max(0, in.PctZeroVehicle), zeroVehicleBuckets, 14) +
		bucketScore(math.Max(0, in.TransitStopsPerSqMile), stopDensityBuckets, 14)

	tier, boost := TierLow, 0
	switch {
	case raw >= highThreshold:
		tier, boost = TierHigh, highBoost
	case raw >= mediumThreshold:
		tier, boost = TierMedium, mediumBoost
	}

	rationale := fmt.Sprintf(
		"Proxy signals: walk+bike mode share %v%%, zero-vehicle households %v%%, transit stop density %v/sq mi.",
		roundPct(walkBikeShare), roundPct(in.PctZeroVehicle), roundPct(in.TransitStopsPerSqMile))

	return Classification{
		Tier:       tier,
		ScoreBoost: boost,
		Rationale:  rationale,
		RawScore:   raw,
	}
}
