// Package registry implements the package index backends: PyPI, npm, crates.io, the Go module
// proxy, pub.dev and Maven Central.
//
// All reads share one HTTP client from go-cleanhttp behind a client side rate limiter, so that a
// wide publish wave does not trip the index's own throttling. Transient failures (5xx, 429) are
// retried; a 404 is an answer, not an error.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/telemetry"
	"github.com/gruntwork-io/releasekit/pkg/log"
	"github.com/gruntwork-io/releasekit/util"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/time/rate"
)

const (
	DefaultRequestsPerSecond = 10
	DefaultBurst             = 5
	DefaultRetries           = 2
	DefaultRetryDelay        = 500 * time.Millisecond

	userAgent       = "releasekit (+https://github.com/gruntwork-io/releasekit)"
	maxResponseSize = 32 << 20
)

// Option configures the shared registry client.
type Option func(*client)

// WithHTTPClient replaces the pooled client from go-cleanhttp.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.http = httpClient
	}
}

// WithRateLimit sets the sustained request rate and burst.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithRetries sets how often transient failures are retried and the delay between attempts.
func WithRetries(retries int, delay time.Duration) Option {
	return func(c *client) {
		c.retries = retries
		c.retryDelay = delay
	}
}

// WithBaseURL points the registry at another endpoint, e.g. a mirror or a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		c.baseURL = baseURL
	}
}

type client struct {
	logger     log.Logger
	http       *http.Client
	limiter    *rate.Limiter
	name       string
	baseURL    string
	retries    int
	retryDelay time.Duration
}

func newClient(l log.Logger, name, baseURL string, opts ...Option) *client {
	c := &client{
		logger:     l,
		name:       name,
		baseURL:    baseURL,
		http:       cleanhttp.DefaultPooledClient(),
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), DefaultBurst),
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *client) Name() string {
	return c.name
}

// get fetches url and returns the body of a 2xx response. A 404 returns found=false without error.
func (c *client) get(ctx context.Context, url string) (body []byte, found bool, err error) {
	err = telemetry.Collect(ctx, "registry_get", map[string]any{"registry": c.name, "url": url}, func(ctx context.Context) error {
		return util.DoWithRetry(ctx, "GET "+url, c.retries, c.retryDelay, c.logger, func(ctx context.Context) error {
			body, found, err = c.do(ctx, url)
			return err
		})
	})

	return body, found, err
}

func (c *client) do(ctx context.Context, url string) ([]byte, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, util.FatalError{Underlying: errors.New(err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, util.FatalError{Underlying: errors.New(err)}
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, errors.New(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	c.logger.Tracef("GET %s: %d", url, resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, false, errors.New(HTTPError{Registry: c.name, URL: url, StatusCode: resp.StatusCode})
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, false, util.FatalError{Underlying: errors.New(HTTPError{Registry: c.name, URL: url, StatusCode: resp.StatusCode})}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, false, errors.New(err)
	}

	return body, true, nil
}

func (c *client) exists(ctx context.Context, url string) (bool, error) {
	_, found, err := c.get(ctx, url)
	return found, err
}

// getJSON decodes a 2xx JSON response into out.
func (c *client) getJSON(ctx context.Context, url string, out any) (bool, error) {
	body, found, err := c.get(ctx, url)
	if err != nil || !found {
		return found, err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return true, errors.Errorf("decoding %s response from %s: %w", c.name, url, err)
	}

	return true, nil
}

// HTTPError is returned for an unexpected registry response.
type HTTPError struct {
	Registry   string
	URL        string
	StatusCode int
}

func (err HTTPError) Error() string {
	return fmt.Sprintf("%s returned %d %s for %s", err.Registry, err.StatusCode, http.StatusText(err.StatusCode), err.URL)
}

// Hint implements the hinter interface.
func (err HTTPError) Hint() string {
	if err.StatusCode == http.StatusUnauthorized || err.StatusCode == http.StatusForbidden {
		return "check the registry credentials"
	}

	return "the registry may be degraded; retry the run later"
}

// NotFoundError is returned when a project does not exist on the registry.
type NotFoundError struct {
	Registry string
	Name     string
}

func (err NotFoundError) Error() string {
	return fmt.Sprintf("%s has no project named %s", err.Registry, err.Name)
}
