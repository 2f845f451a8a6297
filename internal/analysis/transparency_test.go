package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openplan/corridor-cli/internal/narrative"
	"github.com/openplan/corridor-cli/internal/scoring"
)

func TestFormatSourceToken(t *testing.T) {
	assert.Equal(t, "Acs Estimate", formatSourceToken("acs-estimate"))
	assert.Equal(t, "Switrs Local", formatSourceToken("switrs_local"))
	assert.Equal(t, "Unknown", formatSourceToken("unknown"))
}

func TestBuildTransparency_LiveRun(t *testing.T) {
	m := Metrics{
		AIInterpretationSource: narrative.SourceAI,
		DataQuality: DataQuality{
			DataQuality: scoring.DataQuality{
				CensusAvailable:    true,
				CrashDataAvailable: true,
				LodesSource:        "lodes-api",
				EquitySource:       "census-derived",
			},
		},
	}

	items := BuildTransparency(m)
	require.Len(t, items, 5)

	byKey := make(map[string]TransparencyItem)
	for _, item := range items {
		byKey[item.Key] = item
	}

	assert.Equal(t, "Live", byKey["census"].Status)
	assert.Equal(t, ToneSuccess, byKey["census"].Tone)
	assert.Equal(t, "Live", byKey["crashes"].Status)
	assert.Equal(t, "Lodes Api", byKey["lodes"].Status)
	assert.Equal(t, "Census Derived", byKey["equity"].Status)
	assert.Equal(t, "AI-assisted", byKey["ai"].Status)
	assert.Equal(t, ToneInfo, byKey["ai"].Tone)
}

func TestBuildTransparency_DegradedRun(t *testing.T) {
	m := Metrics{AIInterpretationSource: narrative.SourceFallback}

	items := BuildTransparency(m)
	byKey := make(map[string]TransparencyItem)
	for _, item := range items {
		byKey[item.Key] = item
	}

	assert.Equal(t, "Unavailable", byKey["census"].Status)
	assert.Equal(t, ToneWarning, byKey["census"].Tone)
	assert.Equal(t, "Estimated", byKey["crashes"].Status)
	assert.Equal(t, "Unknown", byKey["lodes"].Status)
	assert.Equal(t, ToneNeutral, byKey["lodes"].Tone)
	// Empty equity source falls back to the CEJST census proxy label.
	assert.Equal(t, "Cejst Proxy Census", byKey["equity"].Status)
	assert.Equal(t, "Deterministic fallback", byKey["ai"].Status)
	assert.Equal(t, ToneWarning, byKey["ai"].Tone)
}
