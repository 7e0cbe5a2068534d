package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/jobpulse/jobpulse-cli/internal/model"
)

// Querier is the subset of pgxpool.Pool the store uses. Tests inject a
// pgxmock pool through it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Querier
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection
// for the hot path of a pipeline run.
var preparedStatements = map[string]string{
	"insert_run":       `INSERT INTO runs (id, state, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
	"update_run_state": `UPDATE runs SET state = $1, updated_at = $2 WHERE id = $3`,
	"save_manifest":    `UPDATE runs SET manifest = $1, updated_at = $2 WHERE id = $3`,
	"get_run":          `SELECT id, state, manifest, created_at, updated_at FROM runs WHERE id = $1`,
	"insert_posting":   `INSERT INTO postings (run_id, id, sector, city, posted_at, data) VALUES ($1, $2, $3, $4, $5, $6)`,
	"insert_skill":     `INSERT INTO posting_skills (run_id, posting_id, skill) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
	"insert_company":   `INSERT INTO companies (run_id, id, data) VALUES ($1, $2, $3)`,
	"insert_cluster":   `INSERT INTO clusters (run_id, id, data) VALUES ($1, $2, $3)`,
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

	// Prepare frequently-used statements on each new connection.
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithQuerier builds a store around an existing querier.
// Used by tests with pgxmock.
func NewPostgresWithQuerier(q Querier) *PostgresStore {
	return &PostgresStore{pool: q}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	state      TEXT NOT NULL DEFAULT 'idle',
	manifest   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS postings (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	id        TEXT NOT NULL,
	sector    TEXT NOT NULL,
	city      TEXT NOT NULL,
	posted_at DATE NOT NULL,
	data      JSONB NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS posting_skills (
	run_id     TEXT NOT NULL,
	posting_id TEXT NOT NULL,
	skill      TEXT NOT NULL,
	PRIMARY KEY (run_id, posting_id, skill)
);

CREATE TABLE IF NOT EXISTS companies (
	run_id TEXT NOT NULL REFERENCES runs(id),
	id     TEXT NOT NULL,
	data   JSONB NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS clusters (
	run_id TEXT NOT NULL REFERENCES runs(id),
	id     TEXT NOT NULL,
	data   JSONB NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS analytics (
	run_id TEXT PRIMARY KEY REFERENCES runs(id),
	data   JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state);
CREATE INDEX IF NOT EXISTS idx_postings_sector ON postings(run_id, sector);
CREATE INDEX IF NOT EXISTS idx_postings_city ON postings(run_id, city);
CREATE INDEX IF NOT EXISTS idx_postings_date ON postings(run_id, posted_at);
CREATE INDEX IF NOT EXISTS idx_posting_skills_skill ON posting_skills(run_id, skill);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, state, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		id, string(model.RunStateIdle), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		State:     model.RunStateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunState(ctx context.Context, runID string, state model.RunState) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET state = $1, updated_at = $2 WHERE id = $3`,
		string(state), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run state %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) SaveManifest(ctx context.Context, runID string, manifest *model.RunManifest) error {
	data, err := json.Marshal(manifest)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal manifest")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET manifest = $1, updated_at = $2 WHERE id = $3`,
		data, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save manifest %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var manifestJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, state, manifest, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.State, &manifestJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if len(manifestJSON) > 0 {
		r.Manifest = &model.RunManifest{}
		if err := json.Unmarshal(manifestJSON, r.Manifest); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal manifest")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, state, manifest, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, string(filter.State))
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
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var manifestJSON []byte

		if err := rows.Scan(&r.ID, &r.State, &manifestJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(manifestJSON) > 0 {
			r.Manifest = &model.RunManifest{}
			if err := json.Unmarshal(manifestJSON, r.Manifest); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal manifest")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM runs WHERE state = $1 ORDER BY created_at DESC LIMIT 1`,
		string(model.RunStateDone),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", eris.New("postgres: no completed runs")
		}
		return "", eris.Wrap(err, "postgres: latest run")
	}
	return id, nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin snapshot tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, p := range snap.Postings {
		data, err := json.Marshal(p)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal posting")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO postings (run_id, id, sector, city, posted_at, data) VALUES ($1, $2, $3, $4, $5, $6)`,
			snap.RunID, p.ID, p.Sector, p.City, p.PostedAt, data,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert posting %s", p.ID)
		}
		for _, skill := range p.Skills {
			if _, err := tx.Exec(ctx,
				`INSERT INTO posting_skills (run_id, posting_id, skill) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				snap.RunID, p.ID, skill,
			); err != nil {
				return eris.Wrapf(err, "postgres: insert posting skill %s", skill)
			}
		}
	}

	for _, c := range snap.Companies {
		data, err := json.Marshal(c)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal company")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO companies (run_id, id, data) VALUES ($1, $2, $3)`,
			snap.RunID, c.ID, data,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert company %s", c.ID)
		}
	}

	for _, cl := range snap.Clusters {
		data, err := json.Marshal(cl)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal cluster")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO clusters (run_id, id, data) VALUES ($1, $2, $3)`,
			snap.RunID, cl.ID, data,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert cluster %s", cl.ID)
		}
	}

	analytics, err := json.Marshal(snap.Analytics)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal analytics")
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO analytics (run_id, data) VALUES ($1, $2)`,
		snap.RunID, analytics,
	); err != nil {
		return eris.Wrap(err, "postgres: insert analytics")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit snapshot")
}

func (s *PostgresStore) GetAnalytics(ctx context.Context, runID string) (*model.AnalyticsSnapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM analytics WHERE run_id = $1`, runID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("postgres: no analytics for run %s", runID)
		}
		return nil, eris.Wrap(err, "postgres: get analytics")
	}

	var snap model.AnalyticsSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal analytics")
	}
	return &snap, nil
}

func (s *PostgresStore) GetCompanies(ctx context.Context, runID string) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM companies WHERE run_id = $1 ORDER BY id`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		var c model.Company
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal company")
		}
		companies = append(companies, c)
	}
	return companies, eris.Wrap(rows.Err(), "postgres: companies iterate")
}

func (s *PostgresStore) QueryPostings(ctx context.Context, runID string, filter PostingFilter) ([]model.Posting, error) {
	query := `SELECT data FROM postings WHERE run_id = $1`
	args := []any{runID}
	argIdx := 2

	if filter.Sector != "" {
		query += fmt.Sprintf(` AND sector = $%d`, argIdx)
		args = append(args, filter.Sector)
		argIdx++
	}
	if filter.City != "" {
		query += fmt.Sprintf(` AND city = $%d`, argIdx)
		args = append(args, filter.City)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND posted_at >= $%d`, argIdx)
		args = append(args, filter.Since)
		argIdx++
	}
	if !filter.Until.IsZero() {
		query += fmt.Sprintf(` AND posted_at <= $%d`, argIdx)
		args = append(args, filter.Until)
		argIdx++
	}
	if filter.Skill != "" {
		query += fmt.Sprintf(` AND id IN (SELECT posting_id FROM posting_skills WHERE run_id = $1 AND skill = $%d)`, argIdx)
		args = append(args, filter.Skill)
		argIdx++
	}
	query += ` ORDER BY id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query postings")
	}
	defer rows.Close()

	var postings []model.Posting
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan posting")
		}
		var p model.Posting
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal posting")
		}
		postings = append(postings, p)
	}
	return postings, eris.Wrap(rows.Err(), "postgres: postings iterate")
}
