package baidu

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Defaults applied by NewClient to zero-valued Config fields.
const (
	DefaultHost    = "api.map.baidu.com"
	DefaultScheme  = "http"
	DefaultOutput  = "json"
	DefaultTimeout = 10 * time.Second
)

// Config is the immutable client configuration. Only AccessKey is required.
type Config struct {
	AccessKey string
	Host      string
	Scheme    string // http or https
	Output    string // response format; only json is parsed
	Timeout   time.Duration
	ProxyURL  string

	// RequestsPerSecond caps outgoing calls; 0 disables limiting.
	RequestsPerSecond float64

	Retry RetryPolicy
}

// RetryPolicy bounds the retries of follow-up pages during recursive place search.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy starts at 200ms, doubles each retry, caps at 5s and gives
// up after five attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	c.Host = strings.Trim(strings.TrimSpace(c.Host), "/")
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Scheme == "" {
		c.Scheme = DefaultScheme
	}
	c.Scheme = strings.ToLower(c.Scheme)
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	c.Output = strings.ToLower(c.Output)
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = DefaultRetryPolicy()
	}
	return c
}

func (c Config) validate() error {
	if c.AccessKey == "" {
		return fmt.Errorf("%w: access key is required", ErrConfiguration)
	}
	if c.Scheme != "http" && c.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrConfiguration, c.Scheme)
	}
	switch c.Output {
	case "json":
	case "xml":
		return fmt.Errorf("%w: xml output is not supported, use json", ErrConfiguration)
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrConfiguration, c.Output)
	}
	if c.ProxyURL != "" {
		if _, err := url.Parse(c.ProxyURL); err != nil {
			return fmt.Errorf("%w: proxy url: %w", ErrConfiguration, err)
		}
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests per second must not be negative", ErrConfiguration)
	}
	if c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return fmt.Errorf("%w: invalid retry backoff %s..%s", ErrConfiguration, c.Retry.InitialBackoff, c.Retry.MaxBackoff)
	}
	return nil
}

func (c Config) geocodingURL() string {
	return c.Scheme + "://" + c.Host + "/geocoder/v2/"
}

func (c Config) placeSearchURL() string {
	return c.Scheme + "://" + c.Host + "/place/v2/search/"
}
