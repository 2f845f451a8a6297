package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analysis_runs (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	query_text        TEXT NOT NULL,
	corridor_geojson  TEXT NOT NULL,
	metrics           TEXT NOT NULL,
	result_geojson    TEXT NOT NULL,
	summary_text      TEXT NOT NULL,
	narrative         TEXT NOT NULL DEFAULT '',
	narrative_source  TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_analysis_runs_title ON analysis_runs(title);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *AnalysisRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_runs
		 (id, title, query_text, corridor_geojson, metrics, result_geojson, summary_text, narrative, narrative_source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Title, run.QueryText,
		string(run.CorridorGeoJSON), string(run.Metrics), string(run.ResultGeoJSON),
		run.SummaryText, run.Narrative, run.NarrativeSource, run.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, query_text, corridor_geojson, metrics, result_geojson,
		        summary_text, narrative, narrative_source, created_at
		 FROM analysis_runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]AnalysisRun, error) {
	query := `SELECT id, title, query_text, corridor_geojson, metrics, result_geojson,
	                 summary_text, narrative, narrative_source, created_at
	          FROM analysis_runs WHERE 1=1`
	var args []any

	if filter.TitleQuery != "" {
		query += ` AND title LIKE ?`
		args = append(args, "%"+filter.TitleQuery+"%")
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []AnalysisRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*AnalysisRun, error) {
	var r AnalysisRun
	var corridor, metrics, result string

	err := row.Scan(&r.ID, &r.Title, &r.QueryText, &corridor, &metrics, &result,
		&r.SummaryText, &r.Narrative, &r.NarrativeSource, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.CorridorGeoJSON = []byte(corridor)
	r.Metrics = []byte(metrics)
	r.ResultGeoJSON = []byte(result)
	return &r, nil
}
