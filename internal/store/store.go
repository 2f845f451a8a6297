// Package store persists analysis runs. Two backends implement the
// same interface: SQLite for single-user CLI use (the default) and
// Postgres for shared deployments behind the HTTP server.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// AnalysisRun is one persisted corridor analysis. The corridor
// geometry, metrics, and result feature collection are stored as raw
// JSON so a fetched run round-trips byte for byte.
type AnalysisRun struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	QueryText       string          `json:"queryText"`
	CorridorGeoJSON json.RawMessage `json:"corridorGeojson"`
	Metrics         json.RawMessage `json:"metrics"`
	ResultGeoJSON   json.RawMessage `json:"resultGeojson"`
	SummaryText     string          `json:"summaryText"`
	Narrative       string          `json:"aiInterpretation"`
	NarrativeSource string          `json:"aiInterpretationSource"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	TitleQuery string `json:"titleQuery,omitempty"` // substring match on title
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis runs.
type Store interface {
	CreateRun(ctx context.Context, run *AnalysisRun) error
	GetRun(ctx context.Context, runID string) (*AnalysisRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]AnalysisRun, error)

	Migrate(ctx context.Context) error
	Close() error
}
