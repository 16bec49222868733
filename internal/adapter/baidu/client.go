package baidu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/baidu-place-harvester/internal/domain"
	"github.com/couchcryptid/baidu-place-harvester/internal/observability"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 8 << 20

// Client implements domain.Geocoder and place search using the Baidu Map Web
// Service API. It is safe for concurrent use; each call is sequential.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

var _ domain.Geocoder = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client built from Config.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock replaces the clock used for retry backoff.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// NewClient creates a Baidu client. Zero-valued Config fields take the
// package defaults; a missing access key is an ErrConfiguration.
func NewClient(cfg Config, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxy, _ := url.Parse(cfg.ProxyURL) // validated above
		transport.Proxy = http.ProxyURL(proxy)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(limit, 1),
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Geocode converts an address, optionally scoped to a city, to coordinates.
// It returns nil and no error when the provider reports a non-zero status.
func (c *Client) Geocode(ctx context.Context, address, city string) (*domain.Location, error) {
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrQuery)
	}

	body, err := c.get(ctx, "geocode", c.cfg.geocodingURL(), c.geocodeParams(address, city))
	if err != nil {
		c.countOutcome("geocode", "error")
		return nil, err
	}

	r, err := parseGeocode(body, address)
	if err != nil {
		c.countOutcome("geocode", "error")
		return nil, err
	}
	if !r.status.OK() {
		c.logStatus("geocode", r.status)
		c.countOutcome("geocode", "empty")
		return nil, nil
	}
	c.countOutcome("geocode", "success")
	return &r.value, nil
}

// Reverse converts a point to an address and, when opts.IncludePOIs is set,
// the points of interest around it. It returns nil and no error when the
// provider reports a non-zero status.
func (c *Client) Reverse(ctx context.Context, p domain.Point, opts domain.ReverseOptions) (*domain.ReverseResult, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	if opts.CoordType == "" {
		opts.CoordType = domain.CoordBD09
	}
	if !opts.CoordType.Valid() {
		return nil, fmt.Errorf("%w: unsupported coordinate type %q", ErrQuery, opts.CoordType)
	}

	body, err := c.get(ctx, "reverse", c.cfg.geocodingURL(), c.reverseParams(p, opts))
	if err != nil {
		c.countOutcome("reverse", "error")
		return nil, err
	}

	r, err := parseReverse(body)
	if err != nil {
		c.countOutcome("reverse", "error")
		return nil, err
	}
	if !r.status.OK() {
		c.logStatus("reverse", r.status)
		c.countOutcome("reverse", "empty")
		return nil, nil
	}
	c.countOutcome("reverse", "success")
	return &r.value, nil
}

// ReverseString is Reverse for a point given as "lat,lon".
func (c *Client) ReverseString(ctx context.Context, location string, opts domain.ReverseOptions) (*domain.ReverseResult, error) {
	p, err := domain.ParsePoint(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	return c.Reverse(ctx, p, opts)
}

// get issues a rate-limited GET and returns the response body.
func (c *Client) get(ctx context.Context, method, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limit wait: %w", method, err)
	}

	c.logger.Debug("baidu request", "method", method, "url", redactedURL(endpoint, params))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.APIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, classifyTransportError(method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classifyTransportError(method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyHTTPStatus(method, resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) logStatus(method string, st Status) {
	c.logger.Debug("baidu returned no result",
		"method", method,
		"status", st.Code,
		"message", st.Message,
		"description", st.Description(),
	)
}

func (c *Client) countOutcome(method, outcome string) {
	c.metrics.Requests.WithLabelValues(method, outcome).Inc()
}
