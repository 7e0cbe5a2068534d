package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobpulse/jobpulse-cli/internal/config"
	"github.com/jobpulse/jobpulse-cli/internal/model"
	"github.com/jobpulse/jobpulse-cli/internal/source"
	"github.com/jobpulse/jobpulse-cli/internal/store"
)

// stubAdapter feeds canned records into the pipeline.
type stubAdapter struct {
	name    string
	cfg     config.SourceConfig
	records []model.RawRecord
	err     error
}

func (a *stubAdapter) Name() string                { return a.name }
func (a *stubAdapter) Config() config.SourceConfig { return a.cfg }
func (a *stubAdapter) Fetch(context.Context) source.FetchResult {
	if a.err != nil {
		return source.FetchResult{Err: a.err}
	}
	return source.FetchResult{Records: a.records}
}

func testPipelineConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"sectors.yaml": "sectors: [Tech]\naliases:\n  it: Tech\n",
		"skills.yaml":  "skills:\n  - name: Go\n    synonyms: [golang]\n  - name: SQL\n",
		"cities.yaml":  "cities:\n  - name: Paris\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	srcCfg := config.SourceConfig{
		Authority: 1,
		Fields: map[string]string{
			"title":   "title",
			"company": "company",
			"city":    "city",
			"date":    "date",
			"sector":  "sector",
		},
	}

	return &config.Config{
		Vocab: config.VocabConfig{
			SectorsPath: filepath.Join(dir, "sectors.yaml"),
			SkillsPath:  filepath.Join(dir, "skills.yaml"),
			CitiesPath:  filepath.Join(dir, "cities.yaml"),
		},
		Sources: map[string]config.SourceConfig{
			"boards": srcCfg,
			"agency": func() config.SourceConfig { c := srcCfg; c.Authority = 2; return c }(),
		},
		Dedupe: config.DedupeConfig{
			Threshold:            0.75,
			TitleWeight:          0.5,
			CompanyWeight:        0.2,
			CityWeight:           0.1,
			SkillWeight:          0.2,
			CompanyNameThreshold: 0.9,
			BlockWorkers:         2,
		},
	}
}

func testStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func record(title, company string) model.RawRecord {
	return model.RawRecord{
		"title":   title,
		"company": company,
		"city":    "Paris",
		"date":    "2024-01-10",
		"sector":  "IT",
	}
}

func TestRun_CleanRunMergesAcrossSources(t *testing.T) {
	cfg := testPipelineConfig(t)
	st := testStore(t)
	ctx := context.Background()

	adapters := []source.Adapter{
		&stubAdapter{name: "boards", cfg: cfg.Sources["boards"], records: []model.RawRecord{
			record("Golang Backend Engineer", "Acme Corp"),
		}},
		&stubAdapter{name: "agency", cfg: cfg.Sources["agency"], records: []model.RawRecord{
			record("Golang Backend Engineer", "Acme Corp"),
		}},
	}

	manifest, err := New(cfg, st, adapters).Run(ctx)
	require.NoError(t, err)

	assert.False(t, manifest.PartialFailure)
	assert.Equal(t, 2, manifest.Candidates)
	assert.Equal(t, 1, manifest.Postings)
	assert.Equal(t, 1, manifest.Companies)
	assert.Equal(t, 1, manifest.MergeCount)

	run, err := st.GetRun(ctx, manifest.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStateDone, run.State)

	postings, err := st.QueryPostings(ctx, manifest.RunID, store.PostingFilter{})
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.ElementsMatch(t, []string{"boards", "agency"}, postings[0].Sources)
	assert.NotEmpty(t, postings[0].CompanyID)
}

func TestRun_PartialFailureDegrades(t *testing.T) {
	cfg := testPipelineConfig(t)
	st := testStore(t)
	ctx := context.Background()

	adapters := []source.Adapter{
		&stubAdapter{name: "boards", cfg: cfg.Sources["boards"], records: []model.RawRecord{
			record("Backend Engineer", "Acme Corp"),
		}},
		&stubAdapter{name: "agency", cfg: cfg.Sources["agency"], err: eris.New("connection refused")},
	}

	manifest, err := New(cfg, st, adapters).Run(ctx)
	require.NoError(t, err)

	assert.True(t, manifest.PartialFailure)
	assert.Equal(t, 1, manifest.Postings)
	assert.True(t, manifest.Sources["agency"].Failed)
	assert.Contains(t, manifest.Sources["agency"].Reason, "connection refused")

	run, err := st.GetRun(ctx, manifest.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStateDone, run.State)
}

func TestRun_AllSourcesFailedIsTerminal(t *testing.T) {
	cfg := testPipelineConfig(t)
	st := testStore(t)
	ctx := context.Background()

	adapters := []source.Adapter{
		&stubAdapter{name: "boards", cfg: cfg.Sources["boards"], err: eris.New("timeout")},
		&stubAdapter{name: "agency", cfg: cfg.Sources["agency"], err: eris.New("dns failure")},
	}

	manifest, err := New(cfg, st, adapters).Run(ctx)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrAllSourcesFailed))
	require.NotNil(t, manifest)
	assert.NotEmpty(t, manifest.Error)

	// The manifest is persisted even for failed runs.
	run, getErr := st.GetRun(ctx, manifest.RunID)
	require.NoError(t, getErr)
	assert.Equal(t, model.RunStateFailed, run.State)
	require.NotNil(t, run.Manifest)
	assert.True(t, run.Manifest.Sources["boards"].Failed)
}

func TestRun_MissingVocabularyAbortsBeforeFetch(t *testing.T) {
	cfg := testPipelineConfig(t)
	cfg.Vocab.SkillsPath = filepath.Join(t.TempDir(), "absent.yaml")
	st := testStore(t)

	fetched := false
	adapters := []source.Adapter{
		&stubAdapter{name: "boards", cfg: cfg.Sources["boards"]},
	}
	// Wrap to observe whether Fetch ran.
	probe := &fetchProbe{Adapter: adapters[0], fetched: &fetched}

	manifest, err := New(cfg, st, []source.Adapter{probe}).Run(context.Background())
	require.Error(t, err)
	assert.False(t, fetched)
	require.NotNil(t, manifest)

	run, getErr := st.GetRun(context.Background(), manifest.RunID)
	require.NoError(t, getErr)
	assert.Equal(t, model.RunStateFailed, run.State)
}

type fetchProbe struct {
	source.Adapter
	fetched *bool
}

func (p *fetchProbe) Fetch(ctx context.Context) source.FetchResult {
	*p.fetched = true
	return p.Adapter.Fetch(ctx)
}

func TestRun_MalformedRecordsCountedNotFatal(t *testing.T) {
	cfg := testPipelineConfig(t)
	st := testStore(t)

	adapters := []source.Adapter{
		&stubAdapter{name: "boards", cfg: cfg.Sources["boards"], records: []model.RawRecord{
			record("Backend Engineer", "Acme Corp"),
			{"company": "Acme Corp", "date": "2024-01-10"},       // no title
			{"title": "Analyst", "company": "Acme Corp"},         // no date
			{"title": "Clerk", "company": "Acme", "date": "???"}, // bad date
		}},
	}

	manifest, err := New(cfg, st, adapters).Run(context.Background())
	require.NoError(t, err)

	stats := manifest.Sources["boards"]
	assert.Equal(t, 4, stats.Fetched)
	assert.Equal(t, 1, stats.Normalized)
	assert.Equal(t, 3, stats.Dropped)
	assert.Equal(t, 1, manifest.Postings)
}
