package platform

import (
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the default HTTP client timeout. The platform's own
	// defaults apply beyond this; no per-operation timeout is configured.
	DefaultTimeout = 30 * time.Second
)

// Client talks to one platform service endpoint. The identity, record, and
// file clients each wrap their own Client with a service-specific base URL.
type Client struct {
	apiKey     string
	projectID  string
	baseURL    string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// WithProjectID sets the platform project identifier sent with every request.
func WithProjectID(projectID string) Option {
	return func(c *Client) {
		c.projectID = projectID
	}
}

// NewClient creates a client for one platform service endpoint.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the current base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}
