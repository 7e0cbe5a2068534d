package source

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/jobpulse/jobpulse-cli/internal/config"
	"github.com/jobpulse/jobpulse-cli/internal/fetcher"
	"github.com/jobpulse/jobpulse-cli/internal/model"
)

// csvAdapter fetches CSV records from a local file, an HTTP endpoint,
// or an FTP server (depending on the fetcher it was built with). The
// first row is the header and defines the raw field names.
type csvAdapter struct {
	name    string
	cfg     config.SourceConfig
	fetcher fetcher.Fetcher
}

func (a *csvAdapter) Name() string                { return a.name }
func (a *csvAdapter) Config() config.SourceConfig { return a.cfg }

func (a *csvAdapter) Fetch(ctx context.Context) FetchResult {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout())
	defer cancel()

	rc, err := a.open(ctx)
	if err != nil {
		return FetchResult{Err: eris.Wrapf(err, "source %s: open", a.name)}
	}
	defer rc.Close() //nolint:errcheck

	records, malformed, err := recordsFromRows(streamRows(ctx, rc, a.cfg))
	if err != nil {
		return FetchResult{Err: eris.Wrapf(err, "source %s: read", a.name)}
	}
	return FetchResult{Records: records, Malformed: malformed}
}

func (a *csvAdapter) open(ctx context.Context) (io.ReadCloser, error) {
	endpoint := a.cfg.Endpoint
	if strings.Contains(endpoint, "://") {
		return a.fetcher.Download(ctx, endpoint)
	}
	return os.Open(endpoint)
}

func streamRows(ctx context.Context, r io.Reader, cfg config.SourceConfig) (<-chan []string, <-chan error) {
	opts := fetcher.CSVOptions{LazyQuotes: true}
	if cfg.Delimiter != "" {
		opts.Delimiter = rune(cfg.Delimiter[0])
	}
	return fetcher.StreamCSV(ctx, r, opts)
}

// recordsFromRows zips rows against the header row into RawRecords.
// Rows with no non-empty cell are malformed; short rows leave trailing
// fields unset; extra cells are ignored.
func recordsFromRows(rowCh <-chan []string, errCh <-chan error) ([]model.RawRecord, int, error) {
	var (
		header    []string
		records   []model.RawRecord
		malformed int
	)

	for row := range rowCh {
		if header == nil {
			if empty(row) {
				continue
			}
			header = row
			continue
		}

		if empty(row) {
			malformed++
			continue
		}

		rec := make(model.RawRecord, len(header))
		for i, name := range header {
			if name == "" || i >= len(row) || row[i] == "" {
				continue
			}
			rec[name] = row[i]
		}
		if len(rec) == 0 {
			malformed++
			continue
		}
		records = append(records, rec)
	}

	if err := <-errCh; err != nil {
		return nil, 0, err
	}
	if header == nil {
		return nil, 0, eris.New("no header row")
	}
	return records, malformed, nil
}

func empty(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
