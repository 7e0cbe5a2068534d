// Package store persists runs, snapshots, and manifests. Snapshots
// are insert-only: a new run supersedes prior snapshots, never mutates
// them.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/jobpulse/jobpulse-cli/internal/config"
	"github.com/jobpulse/jobpulse-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	State  model.RunState `json:"state,omitempty"`
	Limit  int            `json:"limit,omitempty"`
	Offset int            `json:"offset,omitempty"`
}

// PostingFilter is the read-only query surface over a snapshot,
// consumed by external serving layers.
type PostingFilter struct {
	Sector string    `json:"sector,omitempty"`
	Skill  string    `json:"skill,omitempty"`
	City   string    `json:"city,omitempty"`
	Since  time.Time `json:"since,omitempty"`
	Until  time.Time `json:"until,omitempty"`
	Limit  int       `json:"limit,omitempty"`
}

// Store defines the persistence interface for the ingestion pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context) (*model.Run, error)
	UpdateRunState(ctx context.Context, runID string, state model.RunState) error
	SaveManifest(ctx context.Context, runID string, manifest *model.RunManifest) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	LatestRunID(ctx context.Context) (string, error)

	// Snapshots
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error
	GetAnalytics(ctx context.Context, runID string) (*model.AnalyticsSnapshot, error)
	GetCompanies(ctx context.Context, runID string) ([]model.Company, error)
	QueryPostings(ctx context.Context, runID string, filter PostingFilter) ([]model.Posting, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store selected by the configuration.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = "jobpulse.db"
		}
		return NewSQLite(path)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires database_url")
		}
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
