package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRun(title string) *AnalysisRun {
	return &AnalysisRun{
		Title:           title,
		QueryText:       "analyze " + title,
		CorridorGeoJSON: json.RawMessage(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`),
		Metrics:         json.RawMessage(`{"overallScore":63,"confidence":"high"}`),
		ResultGeoJSON:   json.RawMessage(`{"type":"FeatureCollection","features":[]}`),
		SummaryText:     "**Corridor Analysis Summary**",
		Narrative:       "The corridor shows strong need.",
		NarrativeSource: "summary-fallback",
	}
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := testRun("Broadway corridor")
	require.NoError(t, st.CreateRun(ctx, run))
	assert.NotEmpty(t, run.ID) // assigned on insert
	assert.False(t, run.CreatedAt.IsZero())

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, run.Title, got.Title)
	assert.Equal(t, run.QueryText, got.QueryText)
	assert.Equal(t, run.Narrative, got.Narrative)
	assert.Equal(t, run.NarrativeSource, got.NarrativeSource)
	// Stored JSON round-trips byte for byte.
	assert.Equal(t, string(run.Metrics), string(got.Metrics))
	assert.Equal(t, string(run.CorridorGeoJSON), string(got.CorridorGeoJSON))
	assert.Equal(t, string(run.ResultGeoJSON), string(got.ResultGeoJSON))
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Second)
}

func TestSQLite_GetRun_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_CreateRun_PreservesExplicitID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := testRun("explicit")
	run.ID = "run-42"
	require.NoError(t, st.CreateRun(ctx, run))

	got, err := st.GetRun(ctx, "run-42")
	require.NoError(t, err)
	assert.Equal(t, "explicit", got.Title)
}

func TestSQLite_CreateRun_DuplicateIDRejected(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := testRun("first")
	run.ID = "dup"
	require.NoError(t, st.CreateRun(ctx, run))

	again := testRun("second")
	again.ID = "dup"
	require.Error(t, st.CreateRun(ctx, again))
}

func TestSQLite_ListRuns_NewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, title := range []string{"oldest", "middle", "newest"} {
		run := testRun(title)
		run.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, st.CreateRun(ctx, run))
	}

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "newest", runs[0].Title)
	assert.Equal(t, "oldest", runs[2].Title)
}

func TestSQLite_ListRuns_TitleFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, testRun("Broadway corridor study")))
	require.NoError(t, st.CreateRun(ctx, testRun("Main Street analysis")))

	runs, err := st.ListRuns(ctx, RunFilter{TitleQuery: "Broadway"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "Broadway corridor study", runs[0].Title)
}

func TestSQLite_ListRuns_LimitAndOffset(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		run := testRun("run")
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, st.CreateRun(ctx, run))
	}

	page, err := st.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := st.ListRuns(ctx, RunFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestSQLite_ListRuns_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	runs, err := st.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}
