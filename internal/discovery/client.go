package discovery

import (
	"log/slog"
	"net/http"
	"time"
)

// Client queries discovery services.
type Client struct {
	httpClient *http.Client
	header     http.Header
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration

	observe func(outcome string)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new discovery client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		header:       http.Header{},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithHeader adds a header sent with every discovery request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// WithObserver registers a callback invoked once per Discover call with
// "ok" or "error". Used to feed request counters.
func WithObserver(fn func(outcome string)) ClientOption {
	return func(c *Client) {
		c.observe = fn
	}
}
