package analysis

import (
	"github.com/openplan/corridor-cli/internal/access"
	"github.com/openplan/corridor-cli/internal/equity"
	"github.com/openplan/corridor-cli/internal/narrative"
	"github.com/openplan/corridor-cli/internal/scoring"
	"github.com/openplan/corridor-cli/internal/source"
)

// DataQuality is the scoring data-quality record extended with the
// narrative source, so a persisted run documents every input that was
// estimated or generated.
type DataQuality struct {
	scoring.DataQuality
	AIInterpretationSource narrative.Source `json:"aiInterpretationSource"`
}

// Metrics is the flat metrics document persisted with each run. Field
// names are part of the stored contract; report tooling reads them by
// JSON key.
type Metrics struct {
	// Scores
	AccessibilityScore int                `json:"accessibilityScore"`
	SafetyScore        int                `json:"safetyScore"`
	EquityScore        int                `json:"equityScore"`
	OverallScore       int                `json:"overallScore"`
	Confidence         scoring.Confidence `json:"confidence"`

	// Census demographics
	TotalPopulation int     `json:"totalPopulation"`
	MedianIncome    *int    `json:"medianIncome"`
	PctMinority     float64 `json:"pctMinority"`
	PctBelowPoverty float64 `json:"pctBelowPoverty"`
	TractCount      int     `json:"tractCount"`

	// Commute patterns
	PctTransit     float64 `json:"pctTransit"`
	PctWalk        float64 `json:"pctWalk"`
	PctBike        float64 `json:"pctBike"`
	PctWfh         float64 `json:"pctWfh"`
	PctZeroVehicle float64 `json:"pctZeroVehicle"`

	// Employment
	TotalJobs       int     `json:"totalJobs"`
	JobsPerResident float64 `json:"jobsPerResident"`

	// Transit access
	TotalTransitStops        int         `json:"totalTransitStops"`
	BusStops                 int         `json:"busStops"`
	RailStations             int         `json:"railStations"`
	FerryStops               int         `json:"ferryStops"`
	StopsPerSquareMile       float64     `json:"stopsPerSquareMile"`
	TransitAccessTier        source.Tier `json:"transitAccessTier"`
	WalkBikeAccessTier       access.Tier `json:"walkBikeAccessTier"`
	WalkBikeAccessScoreBoost int         `json:"walkBikeAccessScoreBoost"`
	WalkBikeAccessRationale  string      `json:"walkBikeAccessRationale"`

	// Safety
	TotalFatalCrashes    int     `json:"totalFatalCrashes"`
	TotalFatalities      int     `json:"totalFatalities"`
	PedestrianFatalities int     `json:"pedestrianFatalities"`
	BicyclistFatalities  int     `json:"bicyclistFatalities"`
	SevereInjuryCrashes  int     `json:"severeInjuryCrashes"`
	TotalInjuryCrashes   int     `json:"totalInjuryCrashes"`
	CrashesPerSquareMile float64 `json:"crashesPerSquareMile"`

	// Equity
	DisadvantagedTracts         int      `json:"disadvantagedTracts"`
	PctDisadvantaged            float64  `json:"pctDisadvantaged"`
	LowIncomeTracts             int      `json:"lowIncomeTracts"`
	HighPovertyTracts           int      `json:"highPovertyTracts"`
	HighMinorityTracts          int      `json:"highMinorityTracts"`
	LowVehicleAccessTracts      int      `json:"lowVehicleAccessTracts"`
	HighTransitDependencyTracts int      `json:"highTransitDependencyTracts"`
	BurdenedLowIncomeTracts     int      `json:"burdenedLowIncomeTracts"`
	EquitySource                string   `json:"equitySource"`
	Justice40Eligible           bool     `json:"justice40Eligible"`
	Title6Flags                 []string `json:"title6Flags"`

	// Data quality
	AIInterpretationSource narrative.Source `json:"aiInterpretationSource"`
	DataQuality            DataQuality      `json:"dataQuality"`
}

// buildMetrics assembles the metrics document from the per-stage
// results. The narrative source is stamped in afterwards, once the
// narrative generator has run.
func buildMetrics(
	census *source.CensusSummary,
	emp *source.EmploymentSummary,
	transit *source.TransitSummary,
	crashes *source.CrashSummary,
	screening equity.Screening,
	scores scoring.Scores,
	walkBike access.Classification,
) Metrics {
	return Metrics{
		AccessibilityScore: scores.AccessibilityScore,
		SafetyScore:        scores.SafetyScore,
		EquityScore:        scores.EquityScore,
		OverallScore:       scores.OverallScore,
		Confidence:         scores.Confidence,

		TotalPopulation: census.TotalPopulation,
		MedianIncome:    census.MedianIncomeWeighted,
		PctMinority:     census.PctMinority,
		PctBelowPoverty: census.PctBelowPoverty,
		TractCount:      len(census.Tracts),

		PctTransit:     census.PctTransit,
		PctWalk:        census.PctWalk,
		PctBike:        census.PctBike,
		PctWfh:         census.PctWfh,
		PctZeroVehicle: census.PctZeroVehicle,

		TotalJobs:       emp.TotalJobs,
		JobsPerResident: emp.JobsPerResident,

		TotalTransitStops:        transit.TotalStops,
		BusStops:                 transit.BusStops,
		RailStations:             transit.RailStations,
		FerryStops:               transit.FerryStops,
		StopsPerSquareMile:       transit.StopsPerSqMile,
		TransitAccessTier:        transit.AccessTier,
		WalkBikeAccessTier:       walkBike.Tier,
		WalkBikeAccessScoreBoost: walkBike.ScoreBoost,
		WalkBikeAccessRationale:  walkBike.Rationale,

		TotalFatalCrashes:    crashes.TotalFatalCrashes,
		TotalFatalities:      crashes.TotalFatalities,
		PedestrianFatalities: crashes.PedestrianFatalities,
		BicyclistFatalities:  crashes.BicyclistFatalities,
		SevereInjuryCrashes:  crashes.SevereInjuryCrashes,
		TotalInjuryCrashes:   crashes.TotalInjuryCrashes,
		CrashesPerSquareMile: crashes.CrashesPerSquareMile,

		DisadvantagedTracts:         screening.DisadvantagedTracts,
		PctDisadvantaged:            screening.PctDisadvantaged,
		LowIncomeTracts:             screening.TractCounts.LowIncome,
		HighPovertyTracts:           screening.TractCounts.HighPoverty,
		HighMinorityTracts:          screening.TractCounts.HighMinority,
		LowVehicleAccessTracts:      screening.TractCounts.LowVehicleAccess,
		HighTransitDependencyTracts: screening.TractCounts.TransitDependent,
		BurdenedLowIncomeTracts:     screening.TractCounts.BurdenedLowIncome,
		EquitySource:                screening.Source,
		Justice40Eligible:           screening.Justice40Eligible,
		Title6Flags:                 screening.Title6Flags,

		DataQuality: DataQuality{DataQuality: scores.DataQuality},
	}
}
