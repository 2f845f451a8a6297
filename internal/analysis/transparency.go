package analysis

import (
	"strings"
)

// Tone grades a transparency item for display.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneInfo    Tone = "info"
	ToneWarning Tone = "warning"
	ToneNeutral Tone = "neutral"
)

// TransparencyItem documents one data source's provenance for a run,
// so report readers can see which inputs were live, estimated, or
// AI-generated before citing the numbers.
type TransparencyItem struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Status string `json:"status"`
	Detail string `json:"detail"`
	Tone   Tone   `json:"tone"`
}

// formatSourceToken turns a source tag like "acs-estimate" into a
// display token like "Acs Estimate".
func formatSourceToken(v string) string {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	for i, f := range fields {
		fields[i] = strings.ToUpper(f[:1]) + f[1:]
	}
	return strings.Join(fields, " ")
}

// BuildTransparency derives the source transparency list from a run's
// metrics.
func BuildTransparency(m Metrics) []TransparencyItem {
	dq := m.DataQuality

	censusStatus, censusDetail, censusTone := "Unavailable",
		"Census source check failed for this run; treat demographic outputs as provisional.", ToneWarning
	if dq.CensusAvailable {
		censusStatus = "Live"
		censusDetail = "Population and demographic indicators are sourced from Census tables."
		censusTone = ToneSuccess
	}

	crashStatus, crashDetail, crashTone := "Estimated",
		"Crash indicators are estimated fallback values and require manual validation.", ToneInfo
	if dq.CrashDataAvailable {
		crashStatus = "Live"
		crashDetail = "Fatal crash indicators were retrieved from the configured source for this run."
		crashTone = ToneSuccess
	}

	lodesSource := dq.LodesSource
	if strings.TrimSpace(lodesSource) == "" {
		lodesSource = "unknown"
	}
	lodesDetail := "Employment opportunity metrics were derived from " + formatSourceToken(lodesSource) + "."
	lodesTone := ToneInfo
	if lodesSource == "unknown" {
		lodesDetail = "Employment source could not be verified in this run metadata."
		lodesTone = ToneNeutral
	}

	equitySource := dq.EquitySource
	if strings.TrimSpace(equitySource) == "" {
		equitySource = "cejst-proxy-census"
	}

	aiStatus, aiDetail, aiTone := "Deterministic fallback",
		"Narrative fell back to deterministic summary logic because AI output was unavailable.", ToneWarning
	if strings.EqualFold(string(m.AIInterpretationSource), "ai") {
		aiStatus = "AI-assisted"
		aiDetail = "Narrative drafting used the AI interpretation layer; human review is required before release."
		aiTone = ToneInfo
	}

	return []TransparencyItem{
		{Key: "census", Label: "Census / ACS 5-Year", Status: censusStatus, Detail: censusDetail, Tone: censusTone},
		{Key: "crashes", Label: "Crash Safety Data", Status: crashStatus, Detail: crashDetail, Tone: crashTone},
		{Key: "lodes", Label: "LODES Employment", Status: formatSourceToken(lodesSource), Detail: lodesDetail, Tone: lodesTone},
		{Key: "equity", Label: "Equity Screening", Status: formatSourceToken(equitySource),
			Detail: "Equity flags were generated using " + formatSourceToken(equitySource) + " with corridor-level proxy aggregation.", Tone: ToneInfo},
		{Key: "ai", Label: "AI Narrative Layer", Status: aiStatus, Detail: aiDetail, Tone: aiTone},
	}
}
