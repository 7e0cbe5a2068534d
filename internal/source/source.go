// Package source implements the adapters that pull raw records from
// external posting sources. Each adapter owns its own transport and
// result buffer, so adapters are safe to invoke concurrently.
package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/jobpulse/jobpulse-cli/internal/config"
	"github.com/jobpulse/jobpulse-cli/internal/fetcher"
	"github.com/jobpulse/jobpulse-cli/internal/model"
)

// FetchResult is the outcome of one adapter fetch. Malformed counts
// individual records that were flagged and skipped; Err is set only
// when the source as a whole was unavailable. Overlapping data across
// invocations is expected and resolved downstream by the deduplicator.
type FetchResult struct {
	Records   []model.RawRecord
	Malformed int
	Err       error
}

// Adapter fetches raw records from one external source.
type Adapter interface {
	// Name returns the source identifier.
	Name() string

	// Config returns the source configuration the adapter was built from.
	Config() config.SourceConfig

	// Fetch pulls all records from the source. Malformed individual
	// records are counted and skipped, never fatal; a non-nil
	// FetchResult.Err means the source was unavailable.
	Fetch(ctx context.Context) FetchResult
}

// Build constructs the adapter for a source configuration.
func Build(name string, cfg config.SourceConfig, httpFetcher, ftpFetcher fetcher.Fetcher) (Adapter, error) {
	switch cfg.Kind {
	case "http_json":
		return &httpJSONAdapter{name: name, cfg: cfg, fetcher: httpFetcher}, nil
	case "csv":
		return &csvAdapter{name: name, cfg: cfg, fetcher: httpFetcher}, nil
	case "ftp_csv":
		return &csvAdapter{name: name, cfg: cfg, fetcher: ftpFetcher}, nil
	case "xlsx":
		return &xlsxAdapter{name: name, cfg: cfg}, nil
	default:
		return nil, eris.Errorf("source %s: unknown kind %q", name, cfg.Kind)
	}
}

// BuildAll constructs adapters for every configured source, optionally
// restricted to the given names.
func BuildAll(sources map[string]config.SourceConfig, only []string, httpFetcher, ftpFetcher fetcher.Fetcher) ([]Adapter, error) {
	selected := make(map[string]bool, len(only))
	for _, name := range only {
		selected[name] = true
	}

	var adapters []Adapter
	for name, cfg := range sources {
		if len(selected) > 0 && !selected[name] {
			continue
		}
		a, err := Build(name, cfg, httpFetcher, ftpFetcher)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}

	for name := range selected {
		if _, ok := sources[name]; !ok {
			return nil, eris.Errorf("source %s: not configured", name)
		}
	}

	return adapters, nil
}
