package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/jobpulse/jobpulse-cli/internal/config"
	"github.com/jobpulse/jobpulse-cli/internal/fetcher"
	"github.com/jobpulse/jobpulse-cli/internal/model"
)

// xlsxAdapter reads a spreadsheet export from disk. The first row of
// the selected sheet is the header.
type xlsxAdapter struct {
	name string
	cfg  config.SourceConfig
}

func (a *xlsxAdapter) Name() string                { return a.name }
func (a *xlsxAdapter) Config() config.SourceConfig { return a.cfg }

func (a *xlsxAdapter) Fetch(ctx context.Context) FetchResult {
	if err := ctx.Err(); err != nil {
		return FetchResult{Err: eris.Wrapf(err, "source %s: cancelled", a.name)}
	}

	rows, err := fetcher.ReadXLSX(a.cfg.Endpoint, fetcher.XLSXOptions{SheetName: a.cfg.SheetName})
	if err != nil {
		return FetchResult{Err: eris.Wrapf(err, "source %s: read xlsx", a.name)}
	}

	var result FetchResult
	var header []string
	for _, row := range rows {
		if header == nil {
			if empty(row) {
				continue
			}
			header = row
			continue
		}
		if empty(row) {
			result.Malformed++
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
			result.Malformed++
			continue
		}
		result.Records = append(result.Records, rec)
	}

	if header == nil {
		return FetchResult{Err: eris.Errorf("source %s: no header row", a.name)}
	}
	return result
}
