package notion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openplan/corridor-cli/internal/store"
)

type stubNotion struct {
	existing  int
	queryErr  error
	createErr error
	created   *notionapi.PageCreateRequest
}

func (s *stubNotion) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	resp := &notionapi.DatabaseQueryResponse{}
	for i := 0; i < s.existing; i++ {
		resp.Results = append(resp.Results, notionapi.Page{ID: "existing"})
	}
	return resp, nil
}

func (s *stubNotion) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = req
	return &notionapi.Page{ID: "page-123"}, nil
}

func exportableRun() *store.AnalysisRun {
	return &store.AnalysisRun{
		ID:          "run-1",
		Title:       "Broadway corridor",
		QueryText:   "analyze",
		Metrics:     []byte(`{"overallScore":74,"accessibilityScore":65,"safetyScore":95,"equityScore":60,"confidence":"high"}`),
		SummaryText: "summary",
		Narrative:   "narrative",
		CreatedAt:   time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC),
	}
}

func TestExportRun_CreatesPage(t *testing.T) {
	stub := &stubNotion{}
	e := NewExporter(stub, "db-1")

	pageID, err := e.ExportRun(context.Background(), exportableRun())
	require.NoError(t, err)
	assert.Equal(t, "page-123", pageID)

	require.NotNil(t, stub.created)
	assert.Equal(t, notionapi.DatabaseID("db-1"), stub.created.Parent.DatabaseID)

	score, ok := stub.created.Properties["Overall Score"].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.Equal(t, 74.0, score.Number)

	conf, ok := stub.created.Properties["Confidence"].(notionapi.SelectProperty)
	require.True(t, ok)
	assert.Equal(t, "high", conf.Select.Name)

	// Summary, narrative, and the five transparency items follow the
	// three section headings.
	assert.Len(t, stub.created.Children, 10)
}

func TestExportRun_AlreadyExported(t *testing.T) {
	stub := &stubNotion{existing: 1}
	e := NewExporter(stub, "db-1")

	pageID, err := e.ExportRun(context.Background(), exportableRun())
	require.NoError(t, err)
	assert.Empty(t, pageID)
	assert.Nil(t, stub.created)
}

func TestExportRun_QueryError(t *testing.T) {
	e := NewExporter(&stubNotion{queryErr: errors.New("boom")}, "db-1")

	_, err := e.ExportRun(context.Background(), exportableRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check run")
}

func TestExportRun_BadMetrics(t *testing.T) {
	run := exportableRun()
	run.Metrics = []byte("{not json")

	_, err := NewExporter(&stubNotion{}, "db-1").ExportRun(context.Background(), run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode metrics")
}

func TestRichText_ChunksLongContent(t *testing.T) {
	long := strings.Repeat("x", 4500)
	segments := richText(long)

	require.Len(t, segments, 3)
	assert.Len(t, segments[0].Text.Content, 2000)
	assert.Len(t, segments[2].Text.Content, 500)

	empty := richText("")
	require.Len(t, empty, 1)
	assert.Equal(t, "", empty[0].Text.Content)
}
