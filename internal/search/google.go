package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultEndpoint is the Custom Search JSON API endpoint.
	DefaultEndpoint = "https://www.googleapis.com/customsearch/v1"

	// DefaultTimeout bounds a single search request.
	DefaultTimeout = 15 * time.Second

	// maxResponseSize caps the decoded search response.
	maxResponseSize = 2 * 1024 * 1024
)

// GoogleClient queries the Custom Search JSON API.
// It implements Provider and is safe for concurrent use.
type GoogleClient struct {
	// apiKey and engineID are the credentials sent as "key" and "cx".
	apiKey   string
	engineID string

	// endpoint is the API base URL. Tests point it at an httptest server.
	endpoint string

	// client performs the HTTP requests.
	client *http.Client

	// timeout bounds each query independently of the caller's context.
	timeout time.Duration

	// limiter is shared by every caller of this client.
	limiter *rate.Limiter

	// quota is the shared query budget. Nil means unlimited.
	quota *Quota

	logger *slog.Logger
}

// GoogleOption configures a GoogleClient.
type GoogleOption func(*GoogleClient)

// WithEndpoint overrides the API endpoint.
func WithEndpoint(endpoint string) GoogleOption {
	return func(c *GoogleClient) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient sets the HTTP client used for queries.
func WithHTTPClient(client *http.Client) GoogleOption {
	return func(c *GoogleClient) {
		c.client = client
	}
}

// WithTimeout sets the per-query timeout.
func WithTimeout(d time.Duration) GoogleOption {
	return func(c *GoogleClient) {
		c.timeout = d
	}
}

// WithLimiter sets the shared rate limiter.
func WithLimiter(l *rate.Limiter) GoogleOption {
	return func(c *GoogleClient) {
		c.limiter = l
	}
}

// WithQuota sets the shared query budget.
func WithQuota(q *Quota) GoogleOption {
	return func(c *GoogleClient) {
		c.quota = q
	}
}

// WithLogger sets the logger used for absorbed failures.
func WithLogger(logger *slog.Logger) GoogleOption {
	return func(c *GoogleClient) {
		c.logger = logger
	}
}

// NewGoogleClient creates a client for the given credentials.
func NewGoogleClient(apiKey, engineID string, opts ...GoogleOption) (*GoogleClient, error) {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(engineID) == "" {
		return nil, ErrMissingCredentials
	}

	c := &GoogleClient{
		apiKey:   apiKey,
		engineID: engineID,
		endpoint: DefaultEndpoint,
		client:   http.DefaultClient,
		timeout:  DefaultTimeout,
		limiter:  rate.NewLimiter(rate.Inf, 0),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// googleResponse is the subset of the API response we read.
type googleResponse struct {
	Items []struct {
		Link string `json:"link"`
	} `json:"items"`
}

// Search runs query and returns the result links in API order.
// Every failure is logged and reported as no hits.
//
// Design decision: We absorb errors here because:
//  1. Discovery treats "provider down" and "no results" the same way
//  2. The next candidate phrase is always a valid recovery
//  3. A single place logs the failure with the query attached
func (c *GoogleClient) Search(ctx context.Context, query string) []string {
	links, err := c.search(ctx, query)
	if err != nil {
		c.logger.Warn("search failed", "query", query, "error", err)
		return []string{}
	}
	return links
}

func (c *GoogleClient) search(ctx context.Context, query string) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", ErrSearchUnavailable, err)
	}
	if !c.quota.Take() {
		return nil, ErrQuotaExhausted
	}

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.requestURL(query), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: status %d", ErrQuotaExhausted, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSearchUnavailable, resp.StatusCode)
	}

	var body googleResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrSearchUnavailable, err)
	}

	links := make([]string, 0, len(body.Items))
	for _, item := range body.Items {
		if link := strings.TrimSpace(item.Link); link != "" {
			links = append(links, link)
		}
	}
	return links, nil
}

func (c *GoogleClient) requestURL(query string) string {
	params := url.Values{}
	params.Set("q", query)
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)

	sep := "?"
	if strings.Contains(c.endpoint, "?") {
		sep = "&"
	}
	return c.endpoint + sep + params.Encode()
}
