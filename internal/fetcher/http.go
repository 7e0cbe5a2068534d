package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jobpulse/jobpulse-cli/internal/config"
	"github.com/jobpulse/jobpulse-cli/internal/resilience"
)

// HTTPFetcher implements Fetcher using net/http with retry and
// per-host rate limiting.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	retry       resilience.RetryConfig
	mu          sync.Mutex // guards limiters; sources fetch concurrently
	limiters    map[string]*rate.Limiter
	defaultRate rate.Limit
}

// NewHTTPFetcher creates an HTTPFetcher from the fetch configuration.
// Per-host rates come from cfg.RatePerHost; hosts without an entry use
// cfg.DefaultRate.
func NewHTTPFetcher(cfg config.FetchConfig) *HTTPFetcher {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "jobpulse/1.0"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	defaultRate := rate.Limit(cfg.DefaultRate)
	if defaultRate <= 0 {
		defaultRate = 10
	}

	limiters := make(map[string]*rate.Limiter, len(cfg.RatePerHost))
	for host, r := range cfg.RatePerHost {
		if r > 0 {
			limiters[host] = rate.NewLimiter(rate.Limit(r), int(r)+1)
		}
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = maxRetries
	retry.OnRetry = resilience.RetryLogger("http", "download")

	return &HTTPFetcher{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent:   userAgent,
		retry:       retry,
		limiters:    limiters,
		defaultRate: defaultRate,
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rate.NewLimiter(f.defaultRate, 1)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if lim, ok := f.limiters[u.Host]; ok {
		return lim
	}
	lim := rate.NewLimiter(f.defaultRate, 1)
	f.limiters[u.Host] = lim
	return lim
}

// Download fetches the URL and returns the response body. Transient
// failures (timeouts, 429, 5xx) are retried with backoff; the overall
// deadline is governed by ctx.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	lim := f.limiterFor(rawURL)

	body, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (io.ReadCloser, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("User-Agent", f.userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "http get")
		}

		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			err := eris.Errorf("http %d from %s", resp.StatusCode, rawURL)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				zap.L().Warn("transient http status, will retry",
					zap.String("url", rawURL),
					zap.Int("status", resp.StatusCode),
				)
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		return resp.Body, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "download %s", rawURL)
	}
	return body, nil
}
