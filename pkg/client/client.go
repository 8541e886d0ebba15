// Package client provides the Microsoft Graph HTTP fetcher used to walk
// OneNote notebooks: authenticated GETs, typed errors, rate-limit backoff,
// optional request pacing and an optional Redis content cache.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/onenote-dump/pkg/cache"
	"github.com/Sternrassler/onenote-dump/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Graph OneNote root for the signed-in user.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0/me/onenote/"

// Prometheus metrics for Graph requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onenote_requests_total",
		Help: "Total Graph requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "onenote_request_duration_seconds",
		Help:    "Graph request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onenote_errors_total",
		Help: "Total Graph errors by class",
	}, []string{"class"})
)

// Client fetches Graph resources. It issues one request at a time per call
// and is meant to be driven by a single goroutine.
type Client struct {
	httpClient *http.Client
	baseURL    string
	backoff    BackoffPolicy
	pacer      *ratelimit.Pacer
	throttle   *ratelimit.Tracker
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the OneNote API root. Relative paths resolve against it.
	BaseURL string

	// TokenSource authenticates requests. Ignored when HTTPClient is set.
	TokenSource oauth2.TokenSource

	// HTTPClient replaces the oauth2 client, for callers that manage auth themselves.
	HTTPClient *http.Client

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration

	// RequestsPerSecond paces requests. Zero disables pacing.
	RequestsPerSecond float64

	// Backoff handles HTTP 429.
	Backoff BackoffPolicy

	// Redis enables the page content cache and cross-run throttle tracking.
	Redis *redis.Client

	// ContentCacheTTL is the lifetime of cached page content.
	ContentCacheTTL time.Duration
}

// DefaultConfig returns a configuration for the public Graph endpoint.
func DefaultConfig(ts oauth2.TokenSource) Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		TokenSource:     ts,
		UserAgent:       "onenote-dump/1.0",
		Timeout:         60 * time.Second,
		Backoff:         DefaultBackoffPolicy(),
		ContentCacheTTL: cache.DefaultTTL,
	}
}

// New creates a new Graph client.
func New(cfg Config) (*Client, error) {
	if cfg.TokenSource == nil && cfg.HTTPClient == nil {
		return nil, fmt.Errorf("token source or http client is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if err := cfg.Backoff.validate(); err != nil {
		return nil, err
	}

	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests_per_second must be >= 0 (got %v)", cfg.RequestsPerSecond)
	}

	logger := log.With().Str("component", "onenote-client").Logger()

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = oauth2.NewClient(context.Background(), cfg.TokenSource)
		httpClient.Timeout = cfg.Timeout
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    base.String(),
		pacer:      ratelimit.NewPacer(cfg.RequestsPerSecond),
		config:     cfg,
		logger:     logger,
	}

	if cfg.Redis != nil {
		c.throttle = ratelimit.NewTracker(cfg.Redis, log.With().Str("component", "throttle").Logger())
		c.throttle.SetSleep(cfg.Backoff.Sleep)
		c.cache = cache.NewManager(cfg.Redis, cfg.ContentCacheTTL)
	}

	c.backoff = cfg.Backoff
	c.backoff.Logger = &c.logger
	userHook := cfg.Backoff.OnWait
	c.backoff.OnWait = func(ctx context.Context, attempt int, wait time.Duration) {
		if c.throttle != nil {
			if err := c.throttle.RecordThrottle(ctx, wait); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to record throttle state")
			}
		}
		if userHook != nil {
			userHook(ctx, attempt, wait)
		}
	}

	return c, nil
}

// BaseURL returns the normalised API root, always ending in a slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// resolveURL resolves ref against the base URL. Absolute URLs pass through.
func (c *Client) resolveURL(ref string) string {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

// GetJSON fetches rawURL and decodes the body into v. Relative URLs such as
// "notebooks" resolve against the base URL.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, _, err := c.get(ctx, rawURL, "application/json")
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassMalformed)).Inc()
		c.logger.Error().Err(err).Str("url", rawURL).Msg("Malformed JSON response")
		return &MalformedResponseError{URL: rawURL, Err: err}
	}
	return nil
}

// GetBytes fetches rawURL and returns the raw body.
func (c *Client) GetBytes(ctx context.Context, rawURL string) ([]byte, error) {
	body, _, err := c.get(ctx, rawURL, "")
	return body, err
}

// GetContent is GetBytes fronted by the Redis content cache when one is
// configured. Entries are keyed by URL and modified, the resource's last
// modification time, so an edited page is fetched again. A zero modified
// bypasses the cache.
func (c *Client) GetContent(ctx context.Context, rawURL string, modified time.Time) ([]byte, error) {
	if c.cache == nil || modified.IsZero() {
		return c.GetBytes(ctx, rawURL)
	}

	rawURL = c.resolveURL(rawURL)
	key := cache.NewVersionedKey(rawURL, modified)
	entry, err := c.cache.Get(ctx, key)
	if err == nil {
		c.logger.Debug().Str("url", rawURL).Msg("Content cache hit")
		return entry.Data, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn().Err(err).Str("url", rawURL).Msg("Content cache get error")
	}

	body, contentType, err := c.get(ctx, rawURL, "")
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, cache.NewEntry(body, contentType)); err != nil {
		c.logger.Warn().Err(err).Str("url", rawURL).Msg("Failed to cache content")
	}
	return body, nil
}

// get runs one logical request through the backoff policy. A throttle window
// left by an earlier run is waited out once, before the first attempt;
// retries within this request are paced by the policy alone.
func (c *Client) get(ctx context.Context, rawURL, accept string) ([]byte, string, error) {
	var (
		body        []byte
		contentType string
	)

	rawURL = c.resolveURL(rawURL)

	if c.throttle != nil {
		if err := c.throttle.WaitIfThrottled(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, "", fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
			}
			c.logger.Warn().Err(err).Msg("Throttle state unavailable, continuing")
		}
	}

	err := c.backoff.Do(ctx, func() error {
		var err error
		body, contentType, err = c.attempt(ctx, rawURL, accept)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return body, contentType, nil
}

// attempt performs a single GET. HTTP 429 yields a RateLimitedError, any
// other status >= 400 an UpstreamError.
func (c *Client) attempt(ctx context.Context, rawURL, accept string) ([]byte, string, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("pace request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	endpoint := endpointLabel(req.URL)
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	c.logger.Debug().
		Str("url", rawURL).
		Str("endpoint", endpoint).
		Msg("Executing Graph request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("url", rawURL).Msg("HTTP request failed")
		return nil, "", fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		errorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
		return nil, "", &RateLimitedError{URL: rawURL}
	}

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		upstreamErr := newUpstreamError(resp.StatusCode, rawURL, snippet)
		errorsTotal.WithLabelValues(string(upstreamErr.Class)).Inc()

		c.logger.Warn().
			Str("url", rawURL).
			Int("status", resp.StatusCode).
			Str("error_class", string(upstreamErr.Class)).
			Str("code", upstreamErr.Code).
			Msg("Graph request error")
		return nil, "", upstreamErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, "", fmt.Errorf("read body of %s: %w", rawURL, err)
	}

	if c.throttle != nil {
		if err := c.throttle.RecordSuccess(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to clear throttle state")
		}
	}

	c.logger.Debug().
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("Graph request complete")

	return body, resp.Header.Get("Content-Type"), nil
}

// endpointLabel reduces a URL to a low-cardinality metrics label: the last
// path segment, or the collection name for resource $value downloads.
func endpointLabel(u *url.URL) string {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	if last == "$value" && len(segments) >= 3 {
		return segments[len(segments)-3]
	}
	if last == "" {
		return "root"
	}
	return last
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the content cache manager, nil when Redis is not configured.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
