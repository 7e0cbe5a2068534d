package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/jobpulse/jobpulse-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures
// WAL mode.
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
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	state      TEXT NOT NULL DEFAULT 'idle',
	manifest   TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS postings (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	id        TEXT NOT NULL,
	sector    TEXT NOT NULL,
	city      TEXT NOT NULL,
	posted_at DATE NOT NULL,
	data      TEXT NOT NULL,
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
	data   TEXT NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS clusters (
	run_id TEXT NOT NULL REFERENCES runs(id),
	id     TEXT NOT NULL,
	data   TEXT NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS analytics (
	run_id TEXT PRIMARY KEY REFERENCES runs(id),
	data   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state);
CREATE INDEX IF NOT EXISTS idx_postings_sector ON postings(run_id, sector);
CREATE INDEX IF NOT EXISTS idx_postings_city ON postings(run_id, city);
CREATE INDEX IF NOT EXISTS idx_postings_date ON postings(run_id, posted_at);
CREATE INDEX IF NOT EXISTS idx_posting_skills_skill ON posting_skills(run_id, skill);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, state, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, string(model.RunStateIdle), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		State:     model.RunStateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunState(ctx context.Context, runID string, state model.RunState) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, updated_at = ? WHERE id = ?`,
		string(state), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run state %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) SaveManifest(ctx context.Context, runID string, manifest *model.RunManifest) error {
	data, err := json.Marshal(manifest)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal manifest")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET manifest = ?, updated_at = ? WHERE id = ?`,
		string(data), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save manifest %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, state, manifest, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, state, manifest, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
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

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs WHERE state = ? ORDER BY created_at DESC LIMIT 1`,
		string(model.RunStateDone),
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", eris.New("sqlite: no completed runs")
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: latest run")
	}
	return id, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin snapshot tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range snap.Postings {
		data, err := json.Marshal(p)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal posting")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO postings (run_id, id, sector, city, posted_at, data) VALUES (?, ?, ?, ?, ?, ?)`,
			snap.RunID, p.ID, p.Sector, p.City, p.PostedAt.Format("2006-01-02"), string(data),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert posting %s", p.ID)
		}
		for _, skill := range p.Skills {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO posting_skills (run_id, posting_id, skill) VALUES (?, ?, ?)`,
				snap.RunID, p.ID, skill,
			); err != nil {
				return eris.Wrapf(err, "sqlite: insert posting skill %s", skill)
			}
		}
	}

	for _, c := range snap.Companies {
		data, err := json.Marshal(c)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal company")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO companies (run_id, id, data) VALUES (?, ?, ?)`,
			snap.RunID, c.ID, string(data),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert company %s", c.ID)
		}
	}

	for _, cl := range snap.Clusters {
		data, err := json.Marshal(cl)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal cluster")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO clusters (run_id, id, data) VALUES (?, ?, ?)`,
			snap.RunID, cl.ID, string(data),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert cluster %s", cl.ID)
		}
	}

	analytics, err := json.Marshal(snap.Analytics)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analytics")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO analytics (run_id, data) VALUES (?, ?)`,
		snap.RunID, string(analytics),
	); err != nil {
		return eris.Wrap(err, "sqlite: insert analytics")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit snapshot")
}

func (s *SQLiteStore) GetAnalytics(ctx context.Context, runID string) (*model.AnalyticsSnapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM analytics WHERE run_id = ?`, runID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: no analytics for run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get analytics")
	}

	var snap model.AnalyticsSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal analytics")
	}
	return &snap, nil
}

func (s *SQLiteStore) GetCompanies(ctx context.Context, runID string) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM companies WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		var c model.Company
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal company")
		}
		companies = append(companies, c)
	}
	return companies, eris.Wrap(rows.Err(), "sqlite: companies iterate")
}

func (s *SQLiteStore) QueryPostings(ctx context.Context, runID string, filter PostingFilter) ([]model.Posting, error) {
	query := `SELECT data FROM postings WHERE run_id = ?`
	args := []any{runID}

	if filter.Sector != "" {
		query += ` AND sector = ?`
		args = append(args, filter.Sector)
	}
	if filter.City != "" {
		query += ` AND city = ?`
		args = append(args, filter.City)
	}
	if !filter.Since.IsZero() {
		query += ` AND posted_at >= ?`
		args = append(args, filter.Since.Format("2006-01-02"))
	}
	if !filter.Until.IsZero() {
		query += ` AND posted_at <= ?`
		args = append(args, filter.Until.Format("2006-01-02"))
	}
	if filter.Skill != "" {
		query += ` AND id IN (SELECT posting_id FROM posting_skills WHERE run_id = ? AND skill = ?)`
		args = append(args, runID, filter.Skill)
	}
	query += ` ORDER BY id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query postings")
	}
	defer rows.Close()

	var postings []model.Posting
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan posting")
		}
		var p model.Posting
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal posting")
		}
		postings = append(postings, p)
	}
	return postings, eris.Wrap(rows.Err(), "sqlite: postings iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var manifest sql.NullString

	err := row.Scan(&r.ID, &r.State, &manifest, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if manifest.Valid {
		r.Manifest = &model.RunManifest{}
		if err := json.Unmarshal([]byte(manifest.String), r.Manifest); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal manifest")
		}
	}
	return &r, nil
}
