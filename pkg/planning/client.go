// Package planning provides a client for the NSW Planning Portal zoning lookup.
package planning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/sales-tracker/internal/resilience"
)

// DefaultBaseURL is the public ePlanning API. No key is required.
const DefaultBaseURL = "https://api.apps1.nsw.gov.au/planning/viewersf/V1/ePlanningApi"

// zoneCode extracts "R2" from "R2 Low Density Residential".
var zoneCode = regexp.MustCompile(`^([A-Z]\d+)`)

// Client looks up land zoning for a street address.
type Client interface {
	// Zoning returns the zone code for address, or "" when the portal has
	// no usable answer.
	Zoning(ctx context.Context, address string) (string, error)
}

type addressResponse struct {
	Zoning struct {
		ZoneName string `json:"zoneName"`
	} `json:"zoning"`
}

// Option configures the planning client.
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

// WithBreaker sets the circuit breaker guarding the portal. After repeated
// transient failures Zoning fails fast with resilience.ErrBreakerOpen.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) {
		c.breaker = b
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

// NewClient creates a planning portal client. The portal asks callers to stay
// at or below one request per second.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(1, 1),
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig()),
	}
	c.retry.OnRetry = resilience.RetryLogger("planning", "zoning")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Zoning(ctx context.Context, address string) (string, error) {
	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (string, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (string, error) {
			return c.lookup(ctx, address)
		})
	})
}

func (c *httpClient) lookup(ctx context.Context, address string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "planning: rate limit")
	}

	reqURL := c.baseURL + "/address?address=" + url.QueryEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "planning: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "planning: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return "", resilience.NewTransientError(
			eris.Errorf("planning: portal returned status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", eris.Errorf("planning: portal returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "planning: read body")
	}
	var parsed addressResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", eris.Wrap(err, "planning: parse response")
	}
	return ParseZoneCode(parsed.Zoning.ZoneName), nil
}

// ParseZoneCode extracts the leading zone code from a portal zone name.
func ParseZoneCode(zoneName string) string {
	m := zoneCode.FindStringSubmatch(zoneName)
	if m == nil {
		return ""
	}
	return m[1]
}
