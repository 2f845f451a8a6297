// Package analysis orchestrates a corridor analysis run: geometry
// validation, concurrent source fetches, screening and scoring, summary
// and narrative generation, and persistence.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openplan/corridor-cli/internal/access"
	"github.com/openplan/corridor-cli/internal/equity"
	"github.com/openplan/corridor-cli/internal/geometry"
	"github.com/openplan/corridor-cli/internal/metrics"
	"github.com/openplan/corridor-cli/internal/narrative"
	"github.com/openplan/corridor-cli/internal/scoring"
	"github.com/openplan/corridor-cli/internal/source"
	"github.com/openplan/corridor-cli/internal/store"
	"github.com/openplan/corridor-cli/internal/summary"
)

// Per-source fetcher contracts. The concrete sources in internal/source
// satisfy these; tests substitute stubs.
type (
	CensusFetcher interface {
		Fetch(ctx context.Context, box geometry.BBox) *source.CensusSummary
	}
	EmploymentFetcher interface {
		Fetch(ctx context.Context, box geometry.BBox, census *source.CensusSummary) *source.EmploymentSummary
	}
	CrashFetcher interface {
		Fetch(ctx context.Context, box geometry.BBox) *source.CrashSummary
	}
	TransitFetcher interface {
		Fetch(ctx context.Context, box geometry.BBox) *source.TransitSummary
	}
)

// Request is one analysis request.
type Request struct {
	CorridorGeoJSON json.RawMessage `json:"corridorGeojson"`
	QueryText       string          `json:"queryText"`
}

// Result is the full analysis output returned to the caller. The same
// content is persisted as an AnalysisRun.
type Result struct {
	RunID        string             `json:"runId"`
	Metrics      Metrics            `json:"metrics"`
	GeoJSON      json.RawMessage    `json:"geojson"`
	Summary      string             `json:"summary"`
	Narrative    string             `json:"aiInterpretation"`
	Source       narrative.Source   `json:"aiInterpretationSource"`
	Transparency []TransparencyItem `json:"sourceTransparency"`
}

// ValidationError reports rejected corridor geometry with the itemized
// issues, so callers can return them to the requester.
type ValidationError struct {
	Issues []geometry.Issue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid corridor geometry: %d issue(s)", len(e.Issues))
}

// Pipeline wires the analysis stages together.
type Pipeline struct {
	Census     CensusFetcher
	Employment EmploymentFetcher
	Crashes    CrashFetcher
	Transit    TransitFetcher
	Narrative  *narrative.Generator
	Store      store.Store
	Cal        *scoring.CalibrationFile
}

// truncateTitle derives the stored run title from the query text.
func truncateTitle(queryText string) string {
	runes := []rune(queryText)
	if len(runes) > 60 {
		return string(runes[:57]) + "..."
	}
	return queryText
}

// Run executes one analysis. Validation failures return a
// *ValidationError; upstream data failures never fail the run, they
// degrade to tagged estimates inside the sources. Only persistence
// errors are fatal after the gate.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	queryText := strings.TrimSpace(req.QueryText)
	if queryText == "" {
		return nil, eris.New("analysis: query text is required")
	}

	corridor, err := geometry.ParseGeoJSON(req.CorridorGeoJSON)
	if err != nil {
		metrics.AnalysisFailures.WithLabelValues("parse").Inc()
		return nil, err
	}
	if issues := corridor.Validate(); len(issues) > 0 {
		metrics.AnalysisFailures.WithLabelValues("validate").Inc()
		return nil, &ValidationError{Issues: issues}
	}

	runID := uuid.New().String()
	box := corridor.BBox()

	zap.L().Info("analysis started",
		zap.String("runId", runID),
		zap.Int("queryLength", len(queryText)),
	)

	// Census, transit, and crashes are independent; employment needs the
	// census population totals.
	var (
		census  *source.CensusSummary
		transit *source.TransitSummary
		crashes *source.CrashSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { census = p.Census.Fetch(gctx, box); return nil })
	g.Go(func() error { transit = p.Transit.Fetch(gctx, box); return nil })
	g.Go(func() error { crashes = p.Crashes.Fetch(gctx, box); return nil })
	g.Wait() //nolint:errcheck

	emp := p.Employment.Fetch(ctx, box, census)

	screening := equity.Screen(census, p.Cal.Equity)
	scores := scoring.Compute(census, emp, transit, crashes, screening, p.Cal.Scoring)
	walkBike := access.Classify(access.Inputs{
		PctWalk:               census.PctWalk,
		PctBike:               census.PctBike,
		PctZeroVehicle:        census.PctZeroVehicle,
		TransitStopsPerSqMile: transit.StopsPerSqMile,
	})

	m := buildMetrics(census, emp, transit, crashes, screening, scores, walkBike)

	geojson, err := buildResultGeoJSON(corridor, runID)
	if err != nil {
		metrics.AnalysisFailures.WithLabelValues("geojson").Inc()
		return nil, err
	}

	summaryText := summary.Compose(census, emp, transit, crashes, screening, scores, walkBike)

	nar := p.Narrative.Generate(ctx, m, summaryText)
	m.AIInterpretationSource = nar.Source
	m.DataQuality.AIInterpretationSource = nar.Source

	metricsJSON, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: marshal metrics")
	}

	if p.Store != nil {
		run := &store.AnalysisRun{
			ID:              runID,
			Title:           truncateTitle(queryText),
			QueryText:       queryText,
			CorridorGeoJSON: req.CorridorGeoJSON,
			Metrics:         metricsJSON,
			ResultGeoJSON:   geojson,
			SummaryText:     summaryText,
			Narrative:       nar.Text,
			NarrativeSource: string(nar.Source),
		}
		if err := p.Store.CreateRun(ctx, run); err != nil {
			metrics.AnalysisFailures.WithLabelValues("persist").Inc()
			return nil, eris.Wrapf(err, "analysis: persist run %s", runID)
		}
	}

	observeRun(scores, emp, crashes, transit, started)

	zap.L().Info("analysis completed",
		zap.String("runId", runID),
		zap.Duration("duration", time.Since(started)),
		zap.String("confidence", string(scores.Confidence)),
		zap.String("aiSource", string(nar.Source)),
	)

	return &Result{
		RunID:        runID,
		Metrics:      m,
		GeoJSON:      geojson,
		Summary:      summaryText,
		Narrative:    nar.Text,
		Source:       nar.Source,
		Transparency: BuildTransparency(m),
	}, nil
}

func observeRun(scores scoring.Scores, emp *source.EmploymentSummary, crashes *source.CrashSummary, transit *source.TransitSummary, started time.Time) {
	metrics.AnalysesTotal.WithLabelValues(string(scores.Confidence)).Inc()
	metrics.AnalysisDuration.Observe(time.Since(started).Seconds())
	metrics.ObserveSource("census", !scores.DataQuality.CensusAvailable)
	metrics.ObserveSource("employment", emp.Source.IsEstimate())
	metrics.ObserveSource("crashes", crashes.Source.IsEstimate())
	metrics.ObserveSource("transit", transit.Source.IsEstimate())
}
