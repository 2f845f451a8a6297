package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the pgxpool surface the store uses, abstracted so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// preparedStatements lists queries to prepare on each new connection
// for the hot store operations.
var preparedStatements = map[string]string{
	"insert_run": `INSERT INTO analysis_runs
		(id, title, query_text, corridor_geojson, metrics, result_geojson, summary_text, narrative, narrative_source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"get_run": `SELECT id, title, query_text, corridor_geojson, metrics, result_geojson,
		summary_text, narrative, narrative_source, created_at
		FROM analysis_runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analysis_runs (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	title             TEXT NOT NULL,
	query_text        TEXT NOT NULL,
	corridor_geojson  JSONB NOT NULL,
	metrics           JSONB NOT NULL,
	result_geojson    JSONB NOT NULL,
	summary_text      TEXT NOT NULL,
	narrative         TEXT NOT NULL DEFAULT '',
	narrative_source  TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analysis_runs_title ON analysis_runs(title);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *AnalysisRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_runs
		 (id, title, query_text, corridor_geojson, metrics, result_geojson, summary_text, narrative, narrative_source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.Title, run.QueryText,
		[]byte(run.CorridorGeoJSON), []byte(run.Metrics), []byte(run.ResultGeoJSON),
		run.SummaryText, run.Narrative, run.NarrativeSource, run.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert run")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*AnalysisRun, error) {
	var r AnalysisRun
	var corridor, metrics, result []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, title, query_text, corridor_geojson, metrics, result_geojson,
		        summary_text, narrative, narrative_source, created_at
		 FROM analysis_runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Title, &r.QueryText, &corridor, &metrics, &result,
		&r.SummaryText, &r.Narrative, &r.NarrativeSource, &r.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	r.CorridorGeoJSON = corridor
	r.Metrics = metrics
	r.ResultGeoJSON = result
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]AnalysisRun, error) {
	query := `SELECT id, title, query_text, corridor_geojson, metrics, result_geojson,
	                 summary_text, narrative, narrative_source, created_at
	          FROM analysis_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.TitleQuery != "" {
		query += fmt.Sprintf(` AND title ILIKE $%d`, argIdx)
		args = append(args, "%"+filter.TitleQuery+"%")
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []AnalysisRun
	for rows.Next() {
		var r AnalysisRun
		var corridor, metrics, result []byte
		if err := rows.Scan(&r.ID, &r.Title, &r.QueryText, &corridor, &metrics, &result,
			&r.SummaryText, &r.Narrative, &r.NarrativeSource, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.CorridorGeoJSON = corridor
		r.Metrics = metrics
		r.ResultGeoJSON = result
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
