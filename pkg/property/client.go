// Package property provides a client for the Domain property API year built
// lookup.
package property

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/sales-tracker/internal/resilience"
)

// DefaultBaseURL is the Domain public API root.
const DefaultBaseURL = "https://api.domain.com.au/v1"

// Client looks up when a property was built.
type Client interface {
	// YearBuilt returns the construction year for address, or 0 when the
	// API has no usable answer.
	YearBuilt(ctx context.Context, address string) (int, error)
}

type suggestResponse struct {
	PropertyDetails struct {
		YearBuilt json.RawMessage `json:"yearBuilt"`
	} `json:"propertyDetails"`
}

// Option configures the property client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second ceiling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithBreaker sets the circuit breaker guarding the API.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) {
		c.breaker = b
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

// NewClient creates a property API client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(1, 1),
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig()),
	}
	c.retry.OnRetry = resilience.RetryLogger("property", "year_built")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) YearBuilt(ctx context.Context, address string) (int, error) {
	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (int, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (int, error) {
			return c.lookup(ctx, address)
		})
	})
}

func (c *httpClient) lookup(ctx context.Context, address string) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, eris.Wrap(err, "property: rate limit")
	}

	reqURL := c.baseURL + "/properties/_suggest?terms=" + url.QueryEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "property: build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, eris.Wrap(err, "property: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, nil
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return 0, resilience.NewTransientError(
			eris.Errorf("property: api returned status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return 0, eris.Errorf("property: api returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, eris.Wrap(err, "property: read body")
	}
	var parsed suggestResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, eris.Wrap(err, "property: parse response")
	}
	return ParseYearBuilt(parsed.PropertyDetails.YearBuilt), nil
}

// ParseYearBuilt reads a yearBuilt value sent as a number or a numeric
// string. Anything else yields 0.
func ParseYearBuilt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}
	y, err := strconv.Atoi(string(raw))
	if err != nil || y <= 0 {
		return 0
	}
	return y
}
