package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/openplan/corridor-cli/internal/analysis"
	"github.com/openplan/corridor-cli/internal/fetcher"
	"github.com/openplan/corridor-cli/internal/narrative"
	"github.com/openplan/corridor-cli/internal/scoring"
	"github.com/openplan/corridor-cli/internal/source"
	"github.com/openplan/corridor-cli/internal/store"
)

// env bundles the wired pipeline and its owned resources for a single
// command invocation.
type env struct {
	Pipeline *analysis.Pipeline
	Store    store.Store
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "corridor.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline wires the full analysis pipeline from config: the shared
// HTTP fetcher and cache, the four data sources, calibration, the
// narrative generator, and the run store.
func initPipeline(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	cal, err := scoring.LoadCalibration(cfg.CalibrationPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	httpf := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.Fetch.Timeout(),
		Retries:      cfg.Fetch.Retries,
		RetryDelay:   cfg.Fetch.RetryDelay(),
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
	cache := fetcher.NewCache()

	p := &analysis.Pipeline{
		Census:     source.NewCensusSource(httpf, cache, cfg.Census),
		Employment: source.NewEmploymentSource(httpf, cache, cfg.Employment),
		Crashes:    source.NewCrashSource(httpf, cfg.Crashes),
		Transit:    source.NewTransitSource(httpf, cache, cfg.Transit),
		Narrative:  narrative.NewGenerator(cfg.Anthropic.Key, cfg.Anthropic.Model),
		Store:      st,
		Cal:        cal,
	}

	return &env{Pipeline: p, Store: st}, nil
}
