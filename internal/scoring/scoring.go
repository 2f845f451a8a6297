// Package scoring combines demographics, employment, transit, crash,
// and equity inputs into the three headline corridor scores plus an
// overall composite. The formulas are designed to be defensible in
// grant applications (ATP, SS4A, RAISE) where quantitative
// justification is required.
package scoring

import (
	"math"
	"strings"

	"github.com/openplan/corridor-cli/internal/equity"
	"github.com/openplan/corridor-cli/internal/source"
)

// Confidence grades how much of the analysis rests on live data.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// DataQuality records which inputs were live and which were estimated.
type DataQuality struct {
	CensusAvailable    bool   `json:"censusAvailable"`
	CrashDataAvailable bool   `json:"crashDataAvailable"`
	LodesSource        string `json:"lodesSource"`
	EquitySource       string `json:"equitySource"`
}

// Scores is the scoring engine output.
type Scores struct {
	AccessibilityScore int         `json:"accessibilityScore"`
	SafetyScore        int         `json:"safetyScore"`
	EquityScore        int         `json:"equityScore"`
	OverallScore       int         `json:"overallScore"`
	Confidence         Confidence  `json:"confidence"`
	DataQuality        DataQuality `json:"dataQuality"`
}

// clamp rounds and bounds a raw score into [0,100].
func clamp(v float64) int {
	return int(math.Max(0, math.Min(100, math.Round(v))))
}

// computeAccessibility scores multimodal commute patterns and job
// access. Four capped 20-point components plus a vehicle-independence
// bucket rewarding areas where people can get around without a car.
func computeAccessibility(census *source.CensusSummary, emp *source.EmploymentSummary, transit *source.TransitSummary) int {
	multimodalShare := census.PctTransit + census.PctWalk + census.PctBike

	multimodal := math.Min(20, multimodalShare*0.7)
	jobAccess := math.Min(20, emp.JobsPerResident*32)
	commuteTransit := math.Min(20, census.PctTransit*1.2)
	stopDensity := math.Min(20, transit.StopsPerSqMile*2.2)

	vehicleIndependence := 4.0
	switch {
	case census.PctZeroVehicle > 5 && multimodalShare > 15:
		vehicleIndependence = 16
	case census.PctZeroVehicle > 3 && multimodalShare > 8:
		vehicleIndependence = 10
	}

	return clamp(multimodal + jobAccess + commuteTransit + stopDensity + vehicleIndependence)
}

// computeSafety scores how safe the corridor currently is, so a higher
// crash rate LOWERS the score. A low safety score is itself the
// justification for safety investment.
func computeSafety(crashes *source.CrashSummary, cal Calibration) int {
	score := cal.SafetyBase

	switch {
	case crashes.CrashesPerSquareMile > 5:
		score -= 40
	case crashes.CrashesPerSquareMile > 2:
		score -= 25
	case crashes.CrashesPerSquareMile > 1:
		score -= 15
	case crashes.CrashesPerSquareMile > 0.5:
		score -= 8
	}

	// Vulnerable road user fatalities weigh extra.
	if crashes.PedestrianFatalities > 0 {
		score -= math.Min(20, float64(crashes.PedestrianFatalities)*5)
	}
	if crashes.BicyclistFatalities > 0 {
		score -= math.Min(15, float64(crashes.BicyclistFatalities)*5)
	}

	if crashes.TotalFatalities == 0 && crashes.TotalFatalCrashes == 0 {
		score += 10
	}

	return clamp(score)
}

// Compute derives all scores and the data quality assessment.
func Compute(
	census *source.CensusSummary,
	emp *source.EmploymentSummary,
	transit *source.TransitSummary,
	crashes *source.CrashSummary,
	screening equity.Screening,
	cal Calibration,
) Scores {
	accessibility := computeAccessibility(census, emp, transit)
	safety := computeSafety(crashes, cal)
	equityScore := clamp(float64(screening.EquityScore))

	overall := clamp(float64(accessibility)*cal.AccessibilityWeight +
		float64(safety)*cal.SafetyWeight +
		float64(equityScore)*cal.EquityWeight)

	censusAvailable := len(census.Tracts) > 0
	crashDataAvailable := !strings.Contains(string(crashes.Source), "estimate")

	confidence := ConfidenceLow
	switch {
	case censusAvailable && crashDataAvailable:
		confidence = ConfidenceHigh
	case censusAvailable || crashDataAvailable:
		confidence = ConfidenceMedium
	}

	return Scores{
		AccessibilityScore: accessibility,
		SafetyScore:        safety,
		EquityScore:        equityScore,
		OverallScore:       overall,
		Confidence:         confidence,
		DataQuality: DataQuality{
			CensusAvailable:    censusAvailable,
			CrashDataAvailable: crashDataAvailable,
			LodesSource:        string(emp.Source),
			EquitySource:       screening.Source,
		},
	}
}
