// Package archive is a client for the archiver appliance data
// retrieval API, used to pull historical PV data into a session.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/tangkong/hutch-python/errors"
	"github.com/tangkong/hutch-python/pkg/retry"
)

const (
	defaultTimeout = 10 * time.Second
	// The appliance is shared across every session on the floor, so
	// each client self-limits.
	defaultRateLimit = 10
	defaultBurst     = 5
	// Past history is immutable, so the TTL only bounds memory.
	defaultCacheTTL = 5 * time.Minute
)

// Point is one archived sample
type Point struct {
	Secs  int64   `json:"secs"`
	Nanos int64   `json:"nanos"`
	Value float64 `json:"val"`
}

// Time converts the appliance timestamp to a time.Time
func (p Point) Time() time.Time {
	return time.Unix(p.Secs, p.Nanos)
}

// Series is the archived history of one PV
type Series struct {
	Meta struct {
		Name string `json:"name"`
	} `json:"meta"`
	Data []Point `json:"data"`
}

// Client talks to one archiver appliance
type Client struct {
	base     string
	client   *http.Client
	limiter  *rate.Limiter
	cfg      retry.Config
	cache    *seriesCache
	requests *prometheus.CounterVec
	logger   *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithRateLimit overrides the request rate limit
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRetryConfig overrides the retry policy for transient failures
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Client) {
		c.cfg = cfg
	}
}

// WithCacheTTL overrides how long responses are cached. A zero or
// negative TTL disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = newSeriesCache(ttl)
	}
}

// WithRequestCounter counts appliance requests by outcome. The counter
// must have a single "status" label.
func WithRequestCounter(counter *prometheus.CounterVec) Option {
	return func(c *Client) {
		c.requests = counter
	}
}

// NewClient creates a client for the appliance at base, e.g.
// "http://pscaa01:17668".
func NewClient(base string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		base:    base,
		client:  &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		cfg:     retry.Quick(),
		cache:   newSeriesCache(defaultCacheTTL),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetData retrieves archived samples for a PV over [from, to]
func (c *Client) GetData(ctx context.Context, pv string, from, to time.Time) (*Series, error) {
	if pv == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: pv name is required", errors.ErrInvalidConfig),
			"archive", "GetData", "request validation")
	}

	query := url.Values{}
	query.Set("pv", pv)
	query.Set("from", from.UTC().Format(time.RFC3339))
	query.Set("to", to.UTC().Format(time.RFC3339))
	endpoint := fmt.Sprintf("%s/retrieval/data/getData.json?%s", c.base, query.Encode())

	if c.cache != nil {
		if series, ok := c.cache.get(endpoint); ok {
			c.logger.Debug("Archive cache hit", "pv", pv)
			return series, nil
		}
	}

	body, err := retry.DoWithResult(ctx, c.cfg, func() ([]byte, error) {
		return c.fetch(ctx, endpoint)
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "archive", "GetData",
			fmt.Sprintf("retrieve history for %s", pv))
	}

	var series []Series
	if err := json.Unmarshal(body, &series); err != nil {
		return nil, errors.WrapInvalid(err, "archive", "GetData", "decode appliance response")
	}
	result := &Series{}
	if len(series) > 0 {
		result = &series[0]
	}
	if c.cache != nil {
		c.cache.put(endpoint, result)
	}
	return result, nil
}

// fetch runs one GET against the appliance. Rate limiting happens here
// so retries are limited too.
func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, retry.NonRetryable(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.NonRetryable(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.count("error")
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		c.count("ok")
		return io.ReadAll(resp.Body)
	case resp.StatusCode == http.StatusNotFound:
		c.count("not_found")
		return nil, retry.NonRetryable(
			fmt.Errorf("pv not archived: %s", resp.Status))
	case resp.StatusCode == http.StatusTooManyRequests:
		c.count("rate_limited")
		return nil, fmt.Errorf("%w: %s", errors.ErrRateLimited, resp.Status)
	case resp.StatusCode >= 500:
		c.count("server_error")
		return nil, fmt.Errorf("appliance error: %s", resp.Status)
	default:
		c.count("error")
		return nil, retry.NonRetryable(
			fmt.Errorf("unexpected appliance response: %s", resp.Status))
	}
}

func (c *Client) count(status string) {
	if c.requests != nil {
		c.requests.WithLabelValues(status).Inc()
	}
}
