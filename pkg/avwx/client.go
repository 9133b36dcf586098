// Package avwx provides a client for an AVWX-style NOTAM feed endpoint.
package avwx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/firwatch/notamwatch/internal/resilience"
)

// Client defines the NOTAM feed operations.
type Client interface {
	// Fetch returns every currently published NOTAM for one station.
	// Pages are walked until the feed returns a short page.
	Fetch(ctx context.Context, station string) ([]Notam, error)
}

// Notam is one raw feed entry. Raw carries the full ICAO message; Body is the
// free-text E) section some feed deployments return instead.
type Notam struct {
	Number    string `json:"number"`
	Location  string `json:"location"`
	Raw       string `json:"raw"`
	Body      string `json:"body"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// Text returns the best available message text for an entry.
func (n Notam) Text() string {
	if n.Raw != "" {
		return n.Raw
	}
	return n.Body
}

// Option configures the feed client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPageSize overrides the feed page size.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		c.pageSize = n
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	token    string
	baseURL  string
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a NOTAM feed client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:    token,
		baseURL:  "https://avwx.rest/api/notam",
		pageSize: 50,
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(2), 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type page struct {
	body       []byte
	statusCode int
}

// retryDo executes a request with backoff on transient failures. Network
// errors and 429/5xx responses retry; anything else returns immediately.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		OnRetry:        resilience.RetryLogger("avwx", "fetch"),
	}

	p, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (page, error) {
		resp, err := c.http.Do(req.Clone(ctx))
		if err != nil {
			return page{}, resilience.NewTransientError(err, 0)
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return page{}, eris.Wrap(readErr, "avwx: read response body")
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return page{}, resilience.NewTransientError(
				eris.Errorf("avwx: status %d: %s", resp.StatusCode, string(body)),
				resp.StatusCode,
			)
		}
		return page{body: body, statusCode: resp.StatusCode}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return p.body, p.statusCode, nil
}

func (c *httpClient) Fetch(ctx context.Context, station string) ([]Notam, error) {
	var all []Notam

	for page := 1; ; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "avwx: rate limiter")
		}

		reqURL := fmt.Sprintf("%s/%s?page=%d&page_size=%d", c.baseURL, station, page, c.pageSize)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "avwx: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "notamwatch/1.0")

		body, statusCode, err := c.retryDo(ctx, req)
		if err != nil {
			return nil, eris.Wrapf(err, "avwx: fetch %s page %d", station, page)
		}
		if statusCode != http.StatusOK {
			return nil, eris.Errorf("avwx: fetch %s page %d: status %d: %s", station, page, statusCode, string(body))
		}

		var items []Notam
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, eris.Wrapf(err, "avwx: unmarshal %s page %d", station, page)
		}

		all = append(all, items...)
		if len(items) < c.pageSize {
			break
		}
	}

	return all, nil
}
