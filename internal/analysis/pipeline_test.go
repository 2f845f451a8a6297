package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openplan/corridor-cli/internal/equity"
	"github.com/openplan/corridor-cli/internal/geometry"
	"github.com/openplan/corridor-cli/internal/narrative"
	"github.com/openplan/corridor-cli/internal/scoring"
	"github.com/openplan/corridor-cli/internal/source"
	"github.com/openplan/corridor-cli/internal/store"
)

const corridorGeoJSON = `{
	"type": "Polygon",
	"coordinates": [[
		[-121.52, 38.55],
		[-121.45, 38.55],
		[-121.45, 38.62],
		[-121.52, 38.62],
		[-121.52, 38.55]
	]]
}`

type stubCensus struct{ summary *source.CensusSummary }

func (s stubCensus) Fetch(ctx context.Context, box geometry.BBox) *source.CensusSummary {
	return s.summary
}

type stubEmployment struct{}

func (stubEmployment) Fetch(ctx context.Context, box geometry.BBox, census *source.CensusSummary) *source.EmploymentSummary {
	return source.EstimateFromCensus(census.TotalPopulation, census.TotalCommuters)
}

type stubCrashes struct{ summary *source.CrashSummary }

func (s stubCrashes) Fetch(ctx context.Context, box geometry.BBox) *source.CrashSummary {
	return s.summary
}

type stubTransit struct{ summary *source.TransitSummary }

func (s stubTransit) Fetch(ctx context.Context, box geometry.BBox) *source.TransitSummary {
	return s.summary
}

// memStore captures created runs in memory.
type memStore struct {
	runs      []*store.AnalysisRun
	createErr error
}

func (m *memStore) CreateRun(ctx context.Context, run *store.AnalysisRun) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *memStore) GetRun(ctx context.Context, runID string) (*store.AnalysisRun, error) {
	for _, r := range m.runs {
		if r.ID == runID {
			return r, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *memStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]store.AnalysisRun, error) {
	return nil, nil
}
func (m *memStore) Migrate(ctx context.Context) error { return nil }
func (m *memStore) Close() error                      { return nil }

func intp(v int) *int { return &v }

func testCensusSummary() *source.CensusSummary {
	return &source.CensusSummary{
		Tracts: []source.CensusTract{{
			GeoID:           "06067001101",
			Population:      5200,
			MedianIncome:    intp(43000),
			TotalCommuters:  2300,
			PctMinority:     55.0,
			PctBelowPoverty: 24.0,
		}},
		TotalPopulation:      5200,
		TotalCommuters:       2300,
		MedianIncomeWeighted: intp(43000),
		PctTransit:           9.1,
		PctWalk:              3.4,
		PctBike:              1.2,
		PctZeroVehicle:       11.0,
		PctMinority:          55.0,
		PctBelowPoverty:      24.0,
	}
}

func testPipeline(st store.Store) *Pipeline {
	return &Pipeline{
		Census: stubCensus{summary: testCensusSummary()},
		Crashes: stubCrashes{summary: &source.CrashSummary{
			TotalFatalCrashes:    2,
			TotalFatalities:      2,
			YearsQueried:         []int{2022},
			CrashesPerSquareMile: 0.4,
			Source:               source.TagFARSAPI,
		}},
		Transit: stubTransit{summary: &source.TransitSummary{
			TotalStops:     18,
			BusStops:       17,
			RailStations:   1,
			StopsPerSqMile: 4.2,
			AccessTier:     source.TierMedium,
			Source:         source.TagOSMOverpass,
		}},
		Employment: stubEmployment{},
		Narrative:  narrative.NewGenerator("", ""),
		Store:      st,
		Cal: &scoring.CalibrationFile{
			Equity:  equity.DefaultCalibration(),
			Scoring: scoring.DefaultCalibration(),
		},
	}
}

func TestPipelineRun_EndToEnd(t *testing.T) {
	st := &memStore{}
	p := testPipeline(st)

	result, err := p.Run(context.Background(), Request{
		CorridorGeoJSON: json.RawMessage(corridorGeoJSON),
		QueryText:       "Analyze the Broadway corridor for safety and transit access",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, scoring.ConfidenceHigh, result.Metrics.Confidence)
	assert.Equal(t, 5200, result.Metrics.TotalPopulation)
	assert.Equal(t, 1, result.Metrics.TractCount)
	assert.Equal(t, narrative.SourceFallback, result.Source)
	assert.Equal(t, result.Summary, result.Narrative) // fallback narrative is the summary
	assert.Len(t, result.Transparency, 5)
	assert.Equal(t, narrative.SourceFallback, result.Metrics.AIInterpretationSource)
	assert.Equal(t, narrative.SourceFallback, result.Metrics.DataQuality.AIInterpretationSource)

	// Persisted run mirrors the result.
	require.Len(t, st.runs, 1)
	run := st.runs[0]
	assert.Equal(t, result.RunID, run.ID)
	assert.Equal(t, "Analyze the Broadway corridor for safety and transit access", run.Title)
	assert.JSONEq(t, string(result.GeoJSON), string(run.ResultGeoJSON))

	var persisted Metrics
	require.NoError(t, json.Unmarshal(run.Metrics, &persisted))
	assert.Equal(t, result.Metrics.OverallScore, persisted.OverallScore)

	// The result feature collection tags the corridor with the run ID.
	assert.Contains(t, string(result.GeoJSON), result.RunID)
	assert.Contains(t, string(result.GeoJSON), "corridor_centroid")
}

func TestPipelineRun_AllSourcesDegraded(t *testing.T) {
	st := &memStore{}
	p := testPipeline(st)
	p.Census = stubCensus{summary: &source.CensusSummary{}}
	p.Crashes = stubCrashes{summary: &source.CrashSummary{
		YearsQueried: []int{2022, 2021, 2020},
		Source:       source.TagFARSEstimate,
	}}
	p.Transit = stubTransit{summary: &source.TransitSummary{
		TotalStops: 3,
		AccessTier: source.TierMedium,
		Source:     source.TagEstimate,
	}}

	result, err := p.Run(context.Background(), Request{
		CorridorGeoJSON: json.RawMessage(corridorGeoJSON),
		QueryText:       "degraded corridor",
	})
	require.NoError(t, err)

	assert.Equal(t, scoring.ConfidenceLow, result.Metrics.Confidence)
	assert.False(t, result.Metrics.DataQuality.CensusAvailable)
	assert.Equal(t, 26, result.Metrics.EquityScore) // no-tract floor
	assert.Equal(t, 0, result.Metrics.TotalPopulation)

	byKey := make(map[string]TransparencyItem)
	for _, item := range result.Transparency {
		byKey[item.Key] = item
	}
	assert.Equal(t, "Unavailable", byKey["census"].Status)
	assert.Equal(t, "Estimated", byKey["crashes"].Status)

	// Degraded runs still persist.
	require.Len(t, st.runs, 1)
}

func TestPipelineRun_TitleTruncation(t *testing.T) {
	st := &memStore{}
	p := testPipeline(st)

	long := strings.Repeat("corridor ", 10) // 90 chars
	_, err := p.Run(context.Background(), Request{
		CorridorGeoJSON: json.RawMessage(corridorGeoJSON),
		QueryText:       long,
	})
	require.NoError(t, err)

	require.Len(t, st.runs, 1)
	title := st.runs[0].Title
	assert.Len(t, []rune(title), 60)
	assert.True(t, strings.HasSuffix(title, "..."))
	// The full query text is kept alongside the truncated title.
	assert.Equal(t, strings.TrimSpace(long), st.runs[0].QueryText)
}

func TestPipelineRun_EmptyQueryRejected(t *testing.T) {
	p := testPipeline(&memStore{})
	_, err := p.Run(context.Background(), Request{
		CorridorGeoJSON: json.RawMessage(corridorGeoJSON),
		QueryText:       "   ",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query text is required")
}

func TestPipelineRun_InvalidGeoJSON(t *testing.T) {
	p := testPipeline(&memStore{})
	_, err := p.Run(context.Background(), Request{
		CorridorGeoJSON: json.RawMessage(`{"type": "Point", "coordinates": [0, 0]}`),
		QueryText:       "q",
	})
	require.Error(t, err)
}

func TestPipelineRun_GeometryGate(t *testing.T) {
	st := &memStore{}
	p := testPipeline(st)

	openRing := `{"type": "Polygon", "coordinates": [[
		[-121.52, 38.55], [-121.45, 38.55], [-121.45, 38.62], [-121.52, 38.62]
	]]}`
	_, err := p.Run(context.Background(), Request{
		CorridorGeoJSON: json.RawMessage(openRing),
		QueryText:       "q",
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Issues, 1)
	assert.Equal(t, geometry.IssueOpenRing, vErr.Issues[0].Kind)
	assert.Empty(t, st.runs) // nothing fetched or persisted past the gate
}

func TestPipelineRun_PersistFailureIsFatal(t *testing.T) {
	p := testPipeline(&memStore{createErr: errors.New("disk full")})
	_, err := p.Run(context.Background(), Request{
		CorridorGeoJSON: json.RawMessage(corridorGeoJSON),
		QueryText:       "q",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist run")
}

func TestPipelineRun_NoStore(t *testing.T) {
	p := testPipeline(nil)
	result, err := p.Run(context.Background(), Request{
		CorridorGeoJSON: json.RawMessage(corridorGeoJSON),
		QueryText:       "q",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
}

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "short", truncateTitle("short"))

	exact := strings.Repeat("a", 60)
	assert.Equal(t, exact, truncateTitle(exact))

	long := strings.Repeat("b", 61)
	got := truncateTitle(long)
	assert.Len(t, []rune(got), 60)
	assert.Equal(t, strings.Repeat("b", 57)+"...", got)
}
