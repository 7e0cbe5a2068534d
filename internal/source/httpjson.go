package source

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jobpulse/jobpulse-cli/internal/config"
	"github.com/jobpulse/jobpulse-cli/internal/fetcher"
	"github.com/jobpulse/jobpulse-cli/internal/model"
)

// httpJSONAdapter fetches a JSON array of posting objects from an HTTP
// endpoint. Elements are decoded individually so that one malformed
// element is skipped without aborting the fetch.
type httpJSONAdapter struct {
	name    string
	cfg     config.SourceConfig
	fetcher fetcher.Fetcher
}

func (a *httpJSONAdapter) Name() string                { return a.name }
func (a *httpJSONAdapter) Config() config.SourceConfig { return a.cfg }

func (a *httpJSONAdapter) Fetch(ctx context.Context) FetchResult {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout())
	defer cancel()

	body, err := a.fetcher.Download(ctx, a.cfg.Endpoint)
	if err != nil {
		return FetchResult{Err: eris.Wrapf(err, "source %s: fetch", a.name)}
	}
	defer body.Close() //nolint:errcheck

	var result FetchResult
	elemCh, errCh := fetcher.DecodeJSONArray[json.RawMessage](ctx, body)

	for raw := range elemCh {
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			result.Malformed++
			continue
		}
		rec := flatten(obj)
		if len(rec) == 0 {
			result.Malformed++
			continue
		}
		result.Records = append(result.Records, rec)
	}

	if err := <-errCh; err != nil {
		// A broken stream after zero records is a source failure;
		// partial data still counts as a degraded fetch.
		if len(result.Records) == 0 {
			return FetchResult{Err: eris.Wrapf(err, "source %s: decode", a.name)}
		}
		zap.L().Warn("source: json stream truncated, keeping partial data",
			zap.String("source", a.name),
			zap.Int("records", len(result.Records)),
			zap.Error(err),
		)
	}

	return result
}

// flatten turns a decoded JSON object into a RawRecord. Scalars are
// stringified, arrays of scalars are comma-joined, nested objects are
// dropped.
func flatten(obj map[string]any) model.RawRecord {
	rec := make(model.RawRecord, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if val != "" {
				rec[k] = val
			}
		case float64:
			rec[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			rec[k] = strconv.FormatBool(val)
		case []any:
			var parts []string
			for _, item := range val {
				switch s := item.(type) {
				case string:
					parts = append(parts, s)
				case float64:
					parts = append(parts, strconv.FormatFloat(s, 'f', -1, 64))
				}
			}
			if len(parts) > 0 {
				rec[k] = strings.Join(parts, ", ")
			}
		}
	}
	return rec
}
