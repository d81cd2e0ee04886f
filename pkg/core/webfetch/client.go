// Package webfetch is the single HTTP doorway to every upstream. It owns the
// browser-like header set the data sources expect, the small/bulk timeout
// budgets, and a politeness rate limit, and it folds every transport-level
// failure into ErrUnavailable so callers can treat "could not get it" as one
// condition and move to their next fallback.
package webfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"golang.org/x/time/rate"

	"brasset_research/pkg/core/config"
)

// ErrUnavailable wraps timeouts, connection failures and non-2xx statuses.
var ErrUnavailable = errors.New("upstream unavailable")

// Client issues rate-limited upstream requests with two timeout budgets:
// quick for small lookups, bulk for multi-megabyte archive downloads.
type Client struct {
	quick     *http.Client
	bulk      *http.Client
	limiter   *rate.Limiter
	userAgent string

	calls atomic.Int64
}

// NewClient builds a client from config. transport may be nil (production) or
// a fake RoundTripper in tests.
func NewClient(cfg *config.Config, transport http.RoundTripper) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	rps := cfg.RequestsPerSecond
	if rps < 1 {
		rps = 1
	}
	return &Client{
		quick:     &http.Client{Timeout: cfg.QuickTimeout, Transport: transport},
		bulk:      &http.Client{Timeout: cfg.BulkTimeout, Transport: transport},
		limiter:   rate.NewLimiter(rate.Limit(rps), rps),
		userAgent: cfg.UserAgent,
	}
}

// Calls returns how many upstream requests were issued. Tests use it to prove
// cache hits and tier short-circuits perform zero additional network work.
func (c *Client) Calls() int64 {
	return c.calls.Load()
}

// GetQuick fetches a small resource (pages, registries, JSON endpoints).
func (c *Client) GetQuick(ctx context.Context, rawURL string) ([]byte, error) {
	return c.get(ctx, c.quick, rawURL)
}

// GetBulk fetches a large resource (yearly archive bundles).
func (c *Client) GetBulk(ctx context.Context, rawURL string) ([]byte, error) {
	return c.get(ctx, c.bulk, rawURL)
}

// PostForm sends a form-encoded POST and returns the raw body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(c.quick, req)
}

// GetWithHeaders fetches with the bulk budget and also returns the response
// headers; the document download proxy needs Content-Disposition.
func (c *Client) GetWithHeaders(ctx context.Context, rawURL string) ([]byte, http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req, err := c.newGet(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	return c.doHeaders(c.bulk, req)
}

func (c *Client) get(ctx context.Context, hc *http.Client, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req, err := c.newGet(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return c.do(hc, req)
}

func (c *Client) newGet(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return req, nil
}

func (c *Client) do(hc *http.Client, req *http.Request) ([]byte, error) {
	body, _, err := c.doHeaders(hc, req)
	return body, err
}

func (c *Client) doHeaders(hc *http.Client, req *http.Request) ([]byte, http.Header, error) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")

	c.calls.Add(1)
	resp, err := hc.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("%w: status %d for %s", ErrUnavailable, resp.StatusCode, req.URL)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, resp.Header, nil
}
