// Package summary composes the human-readable corridor analysis
// summary. The text is markdown-ish (bold section labels) and is the
// fallback narrative when no AI interpretation is available, so the
// wording stays stable across releases.
package summary

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/openplan/corridor-cli/internal/access"
	"github.com/openplan/corridor-cli/internal/equity"
	"github.com/openplan/corridor-cli/internal/scoring"
	"github.com/openplan/corridor-cli/internal/source"
)

// printer formats grouped integers ("12,345") the way US grant readers
// expect.
var printer = message.NewPrinter(language.AmericanEnglish)

func grouped(n int) string {
	return printer.Sprintf("%d", n)
}

// fnum renders a float the way the scores read naturally: no trailing
// zeros, so 12.0 prints as "12" and 12.5 as "12.5".
func fnum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatCurrency(n *int) string {
	if n == nil {
		return "N/A"
	}
	return "$" + grouped(*n)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Compose builds the summary text from the analysis results.
func Compose(
	census *source.CensusSummary,
	emp *source.EmploymentSummary,
	transit *source.TransitSummary,
	crashes *source.CrashSummary,
	screening equity.Screening,
	scores scoring.Scores,
	walkBike access.Classification,
) string {
	var lines []string

	lines = append(lines, fmt.Sprintf(
		"**Corridor Analysis Summary** (%d census tracts, population: %s)",
		len(census.Tracts), grouped(census.TotalPopulation)))
	lines = append(lines, "")

	lines = append(lines, fmt.Sprintf(
		"**Demographics:** Median household income: %s. %s%% minority, %s%% below poverty.",
		formatCurrency(census.MedianIncomeWeighted), fnum(census.PctMinority), fnum(census.PctBelowPoverty)))

	lines = append(lines, fmt.Sprintf(
		"**Commute Mode Share:** %s%% transit, %s%% walk, %s%% bike, %s%% remote. %s%% of households have zero vehicles.",
		fnum(census.PctTransit), fnum(census.PctWalk), fnum(census.PctBike),
		fnum(census.PctWfh), fnum(census.PctZeroVehicle)))

	lines = append(lines, fmt.Sprintf(
		"**Employment:** ~%s jobs in the corridor area (%s jobs per resident). Source: %s.",
		grouped(emp.TotalJobs), fnum(emp.JobsPerResident), emp.Source))

	lines = append(lines, fmt.Sprintf(
		"**Transit Access:** %d stops/stations (%s/sq mi), including %d bus stops, %d rail stations, %d ferry terminals. Access tier: %s.",
		transit.TotalStops, fnum(transit.StopsPerSqMile),
		transit.BusStops, transit.RailStations, transit.FerryStops, transit.AccessTier))

	lines = append(lines, fmt.Sprintf(
		"**Walk/Bike Access (baseline):** Tier %s. %s", walkBike.Tier, walkBike.Rationale))

	yearsStr := joinYears(crashes.YearsQueried)
	if yearsStr == "" {
		yearsStr = "estimated"
	}
	lines = append(lines, fmt.Sprintf(
		"**Safety (%s):** %d fatal crashes, %d fatalities (%d pedestrian, %d bicyclist). Crash density: %s/sq mi.",
		yearsStr, crashes.TotalFatalCrashes, crashes.TotalFatalities,
		crashes.PedestrianFatalities, crashes.BicyclistFatalities, fnum(crashes.CrashesPerSquareMile)))

	lines = append(lines, fmt.Sprintf(
		"**Equity:** %d of %d tracts are disadvantaged (%s%%). Justice40 eligible: %s. Method: %s.",
		screening.DisadvantagedTracts, screening.TotalTracts, fnum(screening.PctDisadvantaged),
		yesNo(screening.Justice40Eligible), screening.Source))
	if len(screening.Title6Flags) > 0 {
		lines = append(lines, fmt.Sprintf(
			"Title VI considerations: %s.", strings.Join(screening.Title6Flags, "; ")))
	}

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf(
		"**Scores:** Accessibility: %d/100, Safety: %d/100, Equity: %d/100. Overall: %d/100 (confidence: %s).",
		scores.AccessibilityScore, scores.SafetyScore, scores.EquityScore,
		scores.OverallScore, scores.Confidence))

	return strings.Join(lines, "\n")
}

func joinYears(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = strconv.Itoa(y)
	}
	return strings.Join(parts, ", ")
}
