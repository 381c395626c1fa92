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

	"github.com/sells-group/grant-scraper/internal/resilience"
)

// DefaultUserAgent mimics a desktop browser; some grant sites reject bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// maxBodyBytes caps how much of a page is read into memory.
const maxBodyBytes = 10 << 20

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration

	// HostInterval is the minimum spacing between requests to the same host.
	// Zero disables pacing.
	HostInterval time.Duration

	// Logger receives fetch and retry logs. Default: zap.L().
	Logger *zap.Logger
}

// HTTPFetcher implements Fetcher using net/http with fixed-backoff retry.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher, filling unset options with defaults.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Fetch GETs rawURL. Network errors, non-2xx statuses, and body read failures
// are all retried the same way.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	policy := resilience.Policy{
		Attempts: f.opts.MaxAttempts,
		Backoff:  f.opts.RetryBackoff,
		OnRetry:  resilience.RetryLogger(f.opts.Logger, "fetch", rawURL, f.opts.MaxAttempts),
	}

	body, err := resilience.DoVal(ctx, policy, func(ctx context.Context) ([]byte, error) {
		return f.fetchOnce(ctx, rawURL)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: %s failed after %d attempts", rawURL, f.opts.MaxAttempts)
	}
	return body, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	if lim := f.limiterFor(rawURL); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	f.opts.Logger.Info("fetching page", zap.String("url", rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "do request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}
	return body, nil
}

// limiterFor returns the pacing limiter for the URL's host, or nil when pacing is off.
func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	if f.opts.HostInterval <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[u.Host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(f.opts.HostInterval), 1)
		f.limiters[u.Host] = lim
	}
	return lim
}
