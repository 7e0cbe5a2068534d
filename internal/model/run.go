package model

import "time"

// RunState represents the current state of an ingestion run.
type RunState string

const (
	RunStateIdle          RunState = "idle"
	RunStateFetching      RunState = "fetching"
	RunStateNormalizing   RunState = "normalizing"
	RunStateDeduplicating RunState = "deduplicating"
	RunStateAggregating   RunState = "aggregating"
	RunStateDone          RunState = "done"
	RunStateFailed        RunState = "failed"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == RunStateDone || s == RunStateFailed
}

// SourceStats records per-source outcomes for the run manifest.
type SourceStats struct {
	Fetched    int    `json:"fetched"`
	Malformed  int    `json:"malformed"`
	Normalized int    `json:"normalized"`
	Dropped    int    `json:"dropped"`
	Failed     bool   `json:"failed"`
	Reason     string `json:"reason,omitempty"`
}

// RunManifest summarizes one pipeline run. Every run produces a
// manifest, including degraded and failed runs, so consumers can tell
// clean, degraded, and failed runs apart.
type RunManifest struct {
	RunID          string                 `json:"run_id"`
	StartedAt      time.Time              `json:"started_at"`
	FinishedAt     time.Time              `json:"finished_at"`
	Sources        map[string]SourceStats `json:"sources"`
	PartialFailure bool                   `json:"partial_failure"`
	Candidates     int                    `json:"candidates"`
	Postings       int                    `json:"postings"`
	Companies      int                    `json:"companies"`
	MergeCount     int                    `json:"merge_count"`
	CompanyMerges  int                    `json:"company_merges"`
	Error          string                 `json:"error,omitempty"`
}

// Run represents one end-to-end pipeline execution producing one
// immutable output snapshot.
type Run struct {
	ID        string       `json:"id"`
	State     RunState     `json:"state"`
	Manifest  *RunManifest `json:"manifest,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Snapshot is the persisted output of a run: the canonical dataset
// plus its analytics. Prior snapshots are superseded, never mutated.
type Snapshot struct {
	RunID     string            `json:"run_id"`
	Postings  []Posting         `json:"postings"`
	Companies []Company         `json:"companies"`
	Clusters  []DedupCluster    `json:"clusters"`
	Analytics AnalyticsSnapshot `json:"analytics"`
}
