package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rflorenc/apim-template-extractor/internal/logging"
	"github.com/rflorenc/apim-template-extractor/internal/models"
)

// Client is the HTTP client used by the entity readers. It is safe for
// concurrent use.
type Client struct {
	baseURL    string
	apiVersion string
	tokens     TokenSource
	httpClient *http.Client
	maxRetries uint64
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetry bounds retries of transient failures.
func WithRetry(maxRetries uint64, minBackoff, maxBackoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		if minBackoff > 0 {
			c.minBackoff = minBackoff
		}
		if maxBackoff > 0 {
			c.maxBackoff = maxBackoff
		}
	}
}

// WithLogger sets the logger used for retry notices.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithAPIVersion overrides the management API version.
func WithAPIVersion(v string) Option {
	return func(c *Client) { c.apiVersion = v }
}

// NewClient creates a Client for a source service.
func NewClient(svc *models.Service, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    svc.BaseURL(),
		apiVersion: models.APIManagementAPIVersion,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxRetries: 4,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
		logger:     logging.Nop(),
	}
	if c.tokens == nil {
		c.tokens = StaticToken(svc.Token)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, truncate(e.Body, 200))
}

// IsNotFound reports whether err is an HTTP 404.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

// transient reports whether a status code is worth retrying (throttling, server errors).
func transient(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500
}

// pagedResponse is the ARM list envelope.
type pagedResponse struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"nextLink"`
}

// Item is one element of an ARM collection.
type Item struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Name       string          `json:"name"`
	Properties models.Resource `json:"properties"`
}

// Get performs an authenticated GET relative to the service URL (or an absolute
// URL, as returned in nextLink) and returns the response body. Transient
// failures are retried with exponential backoff.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.resolve(path, params)

	var body []byte
	hint := &retryAfterBackOff{}
	hint.BackOff = backoff.WithMaxRetries(c.newBackOff(), c.maxRetries)
	op := func() error {
		b, err := c.do(ctx, u)
		if err == nil {
			body = b
			return nil
		}
		var he *HTTPError
		if errors.As(err, &he) {
			if !transient(he.StatusCode) {
				return backoff.Permanent(err)
			}
			hint.next = he.RetryAfter
			return err
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("retrying request", "url", u, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(hint, ctx), notify); err != nil {
		return nil, err
	}
	return body, nil
}

// GetJSON performs an authenticated GET and unmarshals the response into dest.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, dest interface{}) error {
	body, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parsing response of %s: %w", path, err)
	}
	return nil
}

// GetAll fetches all pages of a collection, following nextLink until the
// service reports no further pages.
func (c *Client) GetAll(ctx context.Context, path string) ([]Item, error) {
	var all []Item
	next := path
	var params url.Values

	for next != "" {
		body, err := c.Get(ctx, next, params)
		if err != nil {
			return nil, err
		}

		var page pagedResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parsing response: %w", err)
		}

		for _, raw := range page.Value {
			var item Item
			if err := json.Unmarshal(raw, &item); err != nil {
				return nil, fmt.Errorf("parsing resource: %w", err)
			}
			if item.Properties == nil {
				item.Properties = models.Resource{}
			}
			all = append(all, item)
		}
		next = page.NextLink
	}
	return all, nil
}

// GetPolicy fetches a policy document in raw XML. A missing policy is not an
// error: it returns "".
func (c *Client) GetPolicy(ctx context.Context, path string) (string, error) {
	var item Item
	err := c.GetJSON(ctx, path, url.Values{"format": {"rawxml"}}, &item)
	if IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	for _, key := range []string{"value", "policyContent"} {
		if v, ok := item.Properties[key].(string); ok {
			return v, nil
		}
	}
	return "", nil
}

// resolve builds the request URL, adding api-version unless already present.
func (c *Client) resolve(path string, params url.Values) string {
	u := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if path != "" && !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		u = c.baseURL + path
	}
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	if !strings.Contains(u, "api-version=") {
		q.Set("api-version", c.apiVersion)
	}
	if len(q) == 0 {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + q.Encode()
}

func (c *Client) do(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("acquiring access token: %w", err))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Method:     http.MethodGet,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return body, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.minBackoff
	b.MaxInterval = c.maxBackoff
	b.MaxElapsedTime = 0 // bounded by maxRetries
	return b
}

// retryAfterBackOff stretches the next wait to the server's Retry-After hint.
type retryAfterBackOff struct {
	backoff.BackOff
	next time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if b.next > d {
		d = b.next
	}
	b.next = 0
	return d
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
