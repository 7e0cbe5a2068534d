// Package pipeline orchestrates one ingestion run end to end: fetch
// from every configured source, normalize the raw records, deduplicate
// postings and companies, aggregate analytics, and persist the
// snapshot. A run walks a fixed state machine; the manifest is written
// even when the run fails.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jobpulse/jobpulse-cli/internal/aggregate"
	"github.com/jobpulse/jobpulse-cli/internal/config"
	"github.com/jobpulse/jobpulse-cli/internal/dedupe"
	"github.com/jobpulse/jobpulse-cli/internal/model"
	"github.com/jobpulse/jobpulse-cli/internal/normalize"
	"github.com/jobpulse/jobpulse-cli/internal/source"
	"github.com/jobpulse/jobpulse-cli/internal/store"
	"github.com/jobpulse/jobpulse-cli/internal/vocab"
)

// ErrAllSourcesFailed marks a run where no source returned a usable
// batch. The run is failed and its manifest records every source error.
var ErrAllSourcesFailed = eris.New("pipeline: all sources failed")

// Pipeline runs the ingestion state machine over a set of source
// adapters.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	adapters []source.Adapter
	deduper  *dedupe.Deduper
}

// New creates a Pipeline with its dependencies.
func New(cfg *config.Config, st store.Store, adapters []source.Adapter) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		adapters: adapters,
		deduper:  dedupe.New(cfg.Dedupe),
	}
}

// Run executes one full ingestion run and returns its manifest. The
// returned error is non-nil only when the run could not produce a
// usable snapshot: vocabulary missing, every source failed, or the
// store rejected a write. Individual source failures degrade the run
// instead of failing it.
func (p *Pipeline) Run(ctx context.Context) (*model.RunManifest, error) {
	log := zap.L()

	run, err := p.store.CreateRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("pipeline: run created", zap.Int("sources", len(p.adapters)))

	manifest := &model.RunManifest{
		RunID:     run.ID,
		StartedAt: time.Now().UTC(),
		Sources:   make(map[string]model.SourceStats),
	}

	setState := func(state model.RunState) {
		if stateErr := p.store.UpdateRunState(ctx, run.ID, state); stateErr != nil {
			log.Warn("pipeline: failed to update state",
				zap.String("state", string(state)), zap.Error(stateErr))
		}
	}

	fail := func(cause error) (*model.RunManifest, error) {
		manifest.FinishedAt = time.Now().UTC()
		manifest.Error = cause.Error()
		if saveErr := p.store.SaveManifest(ctx, run.ID, manifest); saveErr != nil {
			log.Warn("pipeline: failed to save manifest", zap.Error(saveErr))
		}
		setState(model.RunStateFailed)
		log.Error("pipeline: run failed", zap.Error(cause))
		return manifest, cause
	}

	// The vocabulary gates the whole run: without it no record can be
	// classified, so missing files abort before any fetch happens.
	vocabs, err := vocab.LoadSet(p.cfg.Vocab)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: load vocabulary"))
	}

	// ===== Fetch =====
	setState(model.RunStateFetching)
	results := p.fetchAll(ctx)

	usable := 0
	for name, res := range results {
		stats := model.SourceStats{Fetched: len(res.Records), Malformed: res.Malformed}
		if res.Err != nil {
			stats.Failed = true
			stats.Reason = res.Err.Error()
			manifest.PartialFailure = true
			log.Warn("pipeline: source unavailable",
				zap.String("source", name), zap.Error(res.Err))
		} else {
			usable++
		}
		manifest.Sources[name] = stats
	}
	if usable == 0 {
		return fail(ErrAllSourcesFailed)
	}

	// ===== Normalize =====
	setState(model.RunStateNormalizing)
	fetchedAt := time.Now().UTC()

	var candidates []model.PostingCandidate
	for name, res := range results {
		if res.Err != nil {
			continue
		}
		stats := manifest.Sources[name]
		srcCfg := p.cfg.Sources[name]
		for _, rec := range res.Records {
			cand, err := normalize.Normalize(rec, name, srcCfg, vocabs, fetchedAt)
			if err != nil {
				stats.Dropped++
				log.Debug("pipeline: record dropped",
					zap.String("source", name), zap.Error(err))
				continue
			}
			stats.Normalized++
			candidates = append(candidates, cand)
		}
		manifest.Sources[name] = stats
	}
	manifest.Candidates = len(candidates)
	log.Info("pipeline: normalized", zap.Int("candidates", len(candidates)))

	// ===== Deduplicate =====
	setState(model.RunStateDeduplicating)

	postings, clusters, err := p.deduper.Postings(ctx, candidates)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: dedupe postings"))
	}
	for _, cl := range clusters {
		manifest.MergeCount += cl.Merges()
	}

	companies, assign, companyMerges := p.deduper.Companies(postings)
	for i := range postings {
		postings[i].CompanyID = assign[postings[i].ID]
	}
	manifest.Postings = len(postings)
	manifest.Companies = len(companies)
	manifest.CompanyMerges = companyMerges
	log.Info("pipeline: deduplicated",
		zap.Int("postings", len(postings)),
		zap.Int("companies", len(companies)),
		zap.Int("merges", manifest.MergeCount),
	)

	// ===== Aggregate =====
	setState(model.RunStateAggregating)
	analytics := aggregate.Build(postings, companies)

	snap := &model.Snapshot{
		RunID:     run.ID,
		Postings:  postings,
		Companies: companies,
		Clusters:  clusters,
		Analytics: analytics,
	}
	if err := p.store.SaveSnapshot(ctx, snap); err != nil {
		return fail(eris.Wrap(err, "pipeline: save snapshot"))
	}

	manifest.FinishedAt = time.Now().UTC()
	if err := p.store.SaveManifest(ctx, run.ID, manifest); err != nil {
		return fail(eris.Wrap(err, "pipeline: save manifest"))
	}
	setState(model.RunStateDone)

	log.Info("pipeline: run complete",
		zap.Bool("partial_failure", manifest.PartialFailure),
		zap.Duration("elapsed", manifest.FinishedAt.Sub(manifest.StartedAt)),
	)
	return manifest, nil
}

// fetchAll fetches every source concurrently. A source failure is
// captured in its FetchResult, never propagated as a group error, so
// one bad source cannot cancel the others.
func (p *Pipeline) fetchAll(ctx context.Context) map[string]source.FetchResult {
	var mu sync.Mutex
	results := make(map[string]source.FetchResult, len(p.adapters))

	g, ctx := errgroup.WithContext(ctx)
	for _, a := range p.adapters {
		g.Go(func() error {
			res := a.Fetch(ctx)
			mu.Lock()
			results[a.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	// Goroutines never return errors; Wait only observes ctx cancel.
	_ = g.Wait()

	return results
}
