// Package equity derives an equity screening from ACS demographics
// already fetched for the corridor, using the same indicators the
// CEJST (Climate & Economic Justice Screening Tool) methodology keys
// on. Deriving locally avoids a second rate-limited upstream call.
package equity

import (
	"math"

	"github.com/openplan/corridor-cli/internal/source"
)

// Calibration holds the screening thresholds. Values track the CEJST
// and Title VI conventions; a deployment can override them from the
// calibration file without touching code.
type Calibration struct {
	// Tract-level disadvantage thresholds.
	LowIncomeThreshold  int     `yaml:"low_income_threshold"`  // median income below this, ~65th percentile nationally
	TractPovertyPct     float64 `yaml:"tract_poverty_pct"`     // poverty burden
	TractMinorityPct    float64 `yaml:"tract_minority_pct"`    // minority burden
	TractZeroVehicleShr float64 `yaml:"tract_zero_vehicle_shr"` // zero-vehicle household share burden

	// Corridor-level indicator thresholds.
	CorridorMinorityPct    float64 `yaml:"corridor_minority_pct"`
	CorridorPovertyPct     float64 `yaml:"corridor_poverty_pct"`
	CorridorZeroVehiclePct float64 `yaml:"corridor_zero_vehicle_pct"`
	CorridorTransitPct     float64 `yaml:"corridor_transit_pct"`
}

// DefaultCalibration returns the standard thresholds.
func DefaultCalibration() Calibration {
	return Calibration{
		LowIncomeThreshold:     50000,
		TractPovertyPct:        20,
		TractMinorityPct:       50,
		TractZeroVehicleShr:    0.1,
		CorridorMinorityPct:    40,
		CorridorPovertyPct:     20,
		CorridorZeroVehiclePct: 10,
		CorridorTransitPct:     15,
	}
}

// Indicators are the corridor-level environmental justice flags.
type Indicators struct {
	LowIncome              bool `json:"lowIncome"`
	HighMinority           bool `json:"highMinority"`
	LinguisticallyIsolated bool `json:"linguisticallyIsolated"` // needs ACS B16002; always false for now
	HighPoverty            bool `json:"highPoverty"`
	LowVehicleAccess       bool `json:"lowVehicleAccess"`
	TransitDependent       bool `json:"transitDependent"`
}

// TractCounts itemizes how many tracts trip each screening threshold,
// giving grant writers the per-indicator breakdown behind the
// disadvantaged-tract total.
type TractCounts struct {
	LowIncome         int `json:"lowIncome"`
	HighPoverty       int `json:"highPoverty"`
	HighMinority      int `json:"highMinority"`
	LowVehicleAccess  int `json:"lowVehicleAccess"`
	TransitDependent  int `json:"transitDependent"`
	BurdenedLowIncome int `json:"burdenedLowIncome"` // low income AND at least one burden
}

// Screening is the corridor equity screening result.
type Screening struct {
	TotalTracts         int         `json:"totalTracts"`
	DisadvantagedTracts int         `json:"disadvantagedTracts"`
	PctDisadvantaged    float64     `json:"pctDisadvantaged"`
	TractCounts         TractCounts `json:"tractCounts"`
	EJIndicators        Indicators  `json:"ejIndicators"`
	Title6Flags         []string    `json:"title6Flags"`
	Justice40Eligible   bool        `json:"justice40Eligible"`
	EquityScore         int         `json:"equityScore"` // 0-100 composite, higher = higher investment priority
	Source              string      `json:"source"`
}

// Screen derives the equity screening from the census summary. A tract
// is disadvantaged when it is low income AND carries at least one
// burden indicator (poverty, minority share, or zero-vehicle share).
func Screen(census *source.CensusSummary, cal Calibration) Screening {
	tracts := census.Tracts

	var counts TractCounts
	disadvantaged := 0
	for _, t := range tracts {
		lowIncome := t.MedianIncome != nil && *t.MedianIncome < cal.LowIncomeThreshold
		highPoverty := t.PctBelowPoverty > cal.TractPovertyPct
		highMinority := t.PctMinority > cal.TractMinorityPct
		lowVehicle := t.TotalHouseholds > 0 &&
			float64(t.ZeroVehicleHouseholds)/float64(t.TotalHouseholds) > cal.TractZeroVehicleShr
		transitDep := t.TotalCommuters > 0 &&
			float64(t.TransitCommuters)/float64(t.TotalCommuters)*100 > cal.CorridorTransitPct

		if lowIncome {
			counts.LowIncome++
		}
		if highPoverty {
			counts.HighPoverty++
		}
		if highMinority {
			counts.HighMinority++
		}
		if lowVehicle {
			counts.LowVehicleAccess++
		}
		if transitDep {
			counts.TransitDependent++
		}
		if lowIncome && (highPoverty || highMinority || lowVehicle) {
			disadvantaged++
		}
	}

	counts.BurdenedLowIncome = disadvantaged

	pctDisadvantaged := 0.0
	if len(tracts) > 0 {
		pctDisadvantaged = math.Round(float64(disadvantaged)/float64(len(tracts))*1000) / 10
	}

	indicators := Indicators{
		LowIncome:        census.MedianIncomeWeighted != nil && *census.MedianIncomeWeighted < cal.LowIncomeThreshold,
		HighMinority:     census.PctMinority > cal.CorridorMinorityPct,
		HighPoverty:      census.PctBelowPoverty > cal.CorridorPovertyPct,
		LowVehicleAccess: census.PctZeroVehicle > cal.CorridorZeroVehiclePct,
		TransitDependent: census.PctTransit > cal.CorridorTransitPct,
	}

	var flags []string
	if indicators.HighMinority {
		flags = append(flags, "Corridor serves a high proportion of minority residents")
	}
	if indicators.LowIncome {
		flags = append(flags, "Median household income is below the 65th percentile threshold")
	}
	if indicators.HighPoverty {
		flags = append(flags, "Poverty rate exceeds 20% - qualifies as a high-poverty area")
	}
	if indicators.LowVehicleAccess {
		flags = append(flags, "Significant proportion of households lack vehicle access")
	}
	if indicators.TransitDependent {
		flags = append(flags, "High transit dependency indicates need for multimodal investment")
	}

	return Screening{
		TotalTracts:         len(tracts),
		DisadvantagedTracts: disadvantaged,
		PctDisadvantaged:    pctDisadvantaged,
		TractCounts:         counts,
		EJIndicators:        indicators,
		Title6Flags:         flags,
		Justice40Eligible:   disadvantaged > 0,
		EquityScore:         equityScore(census, pctDisadvantaged, indicators),
		Source:              "census-derived",
	}
}

// equityScore composes the 0-100 priority score. Each demographic
// factor contributes a 20/12/5 bucket and each binary indicator a 10/3
// bucket; the sum is capped at 100. Higher disadvantage scores higher
// because the score ranks investment priority, not current conditions.
func equityScore(census *source.CensusSummary, pctDisadvantaged float64, ind Indicators) int {
	bucket := func(v, high, mid float64) int {
		switch {
		case v > high:
			return 20
		case v > mid:
			return 12
		default:
			return 5
		}
	}
	binary := func(b bool) int {
		if b {
			return 10
		}
		return 3
	}

	score := bucket(census.PctMinority, 50, 30) +
		bucket(census.PctBelowPoverty, 25, 15) +
		bucket(census.PctZeroVehicle, 15, 8) +
		bucket(pctDisadvantaged, 50, 25) +
		binary(ind.LowIncome) +
		binary(ind.TransitDependent)

	if score > 100 {
		score = 100
	}
	return score
}
