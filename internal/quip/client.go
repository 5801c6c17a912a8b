package quip

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/quip-export/quip-export/internal/model"
)

// Default client settings.
const (
	// DefaultBaseDomain is the Quip domain used when none is configured.
	// Dedicated instances use a custom domain (e.g. "quip-acme.com").
	DefaultBaseDomain = "quip.com"

	// DefaultMaxRetries is the per-endpoint retry ceiling for throttled
	// responses. Quip throttle windows can be long and a full export is a
	// one-shot batch job, so the ceiling is generous.
	DefaultMaxRetries = 1000

	// DefaultThrottleWait is the fallback backoff when a throttled response
	// carries no usable x-ratelimit-reset header.
	DefaultThrottleWait = 60 * time.Second

	// defaultTimeout covers a single request including body transfer.
	// Binary exports of large documents can be slow, so this is generous.
	defaultTimeout = 5 * time.Minute
)

// Client is a rate-limited Quip Automation API client.
//
// All fetch methods share the same failure contract: transient throttling
// (HTTP 429/503/504) is absorbed by retrying after the shared Throttle
// deadline, and every other failure resolves to an error wrapping
// ErrUnavailable. No transient condition is ever surfaced as a panic or a
// transport error to the caller.
//
// A Client is safe for concurrent use; the Throttle, the Stats counters and
// the per-endpoint retry counters are the only mutable state.
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	throttle   *Throttle
	limiter    *rate.Limiter
	stats      *Stats

	maxRetries  int
	defaultWait time.Duration

	// now and sleep exist so tests can drive the backoff deterministically.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	retries map[string]int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. Used by tests to point the
// client at an httptest server.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets a custom logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithThrottle injects a shared Throttle. Multiple clients can share one;
// tests can pre-seed a deadline.
func WithThrottle(t *Throttle) Option {
	return func(c *Client) {
		c.throttle = t
	}
}

// WithMaxRetries sets the per-endpoint retry ceiling for throttled
// responses.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithDefaultWait sets the fallback backoff used when a throttled response
// carries no reset deadline.
func WithDefaultWait(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultWait = d
		}
	}
}

// WithRequestInterval enables a client-side politeness limiter that spaces
// outgoing requests at least d apart, independent of server throttling.
// Zero disables the limiter.
func WithRequestInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithClock replaces the wall clock and the backoff sleeper.
// Tests use this to verify deadlines without real waiting.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewClient creates a Client for the given access token and base domain.
// An empty baseDomain selects the public quip.com instance.
func NewClient(token, baseDomain string, opts ...Option) *Client {
	if baseDomain == "" {
		baseDomain = DefaultBaseDomain
	}

	c := &Client{
		apiURL: fmt.Sprintf("https://platform.%s:443/1", baseDomain),
		token:  token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		throttle:    NewThrottle(),
		limiter:     rate.NewLimiter(rate.Inf, 1),
		stats:       &Stats{},
		maxRetries:  DefaultMaxRetries,
		defaultWait: DefaultThrottleWait,
		now:         time.Now,
		retries:     make(map[string]int),
	}
	c.sleep = func(ctx context.Context, d time.Duration) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// APIURL returns the resolved API base URL.
func (c *Client) APIURL() string {
	return c.apiURL
}

// Stats returns the shared call counters.
func (c *Client) Stats() *Stats {
	return c.stats
}

// Throttle returns the shared throttle state.
func (c *Client) Throttle() *Throttle {
	return c.throttle
}

// CheckUser verifies the access token by fetching the current user.
//
// This is the one high-priority call issued before any concurrent load
// exists, so it uses a simple fixed sleep-and-retry loop on 429 instead of
// the general backoff machinery. Any other failure is fatal and returns an
// error wrapping ErrUnauthorized or the transport error.
func (c *Client) CheckUser(ctx context.Context) error {
	for {
		c.stats.GetCurrentUser.Add(1)

		req, err := c.newRequest(ctx, http.MethodGet, "/users/current", nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("token check failed: %w", err)
		}

		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // Drain for connection reuse
		_ = resp.Body.Close()                 //nolint:errcheck // Nothing to do on close failure

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("token is being throttled, sleeping before rechecking",
				"wait", c.defaultWait,
			)
			if err := c.sleep(ctx, c.defaultWait); err != nil {
				return err
			}
		default:
			return fmt.Errorf("token check: HTTP %d: %w", resp.StatusCode, ErrUnauthorized)
		}
	}
}

// GetCurrentUser fetches the current user, including the default root
// folder IDs that seed the crawl.
func (c *Client) GetCurrentUser(ctx context.Context) (*model.User, error) {
	c.stats.GetCurrentUser.Add(1)
	var u model.User
	if err := c.callJSON(ctx, http.MethodGet, "/users/current", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetFolder fetches a single folder with its child references.
func (c *Client) GetFolder(ctx context.Context, folderID string) (*model.Folder, error) {
	c.stats.GetFolder.Add(1)
	var f model.Folder
	if err := c.callJSON(ctx, http.MethodGet, "/folders/"+folderID, nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFolders fetches several folders in one call. The result is keyed by
// folder ID; folders the token cannot access are absent from the map.
func (c *Client) GetFolders(ctx context.Context, folderIDs []string) (map[string]*model.Folder, error) {
	c.stats.GetFolders.Add(1)
	folders := make(map[string]*model.Folder)
	path := "/folders/?ids=" + strings.Join(folderIDs, ",")
	if err := c.callJSON(ctx, http.MethodGet, path, nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

// GetThread fetches a full thread including its HTML body.
func (c *Client) GetThread(ctx context.Context, threadID string) (*model.Thread, error) {
	c.stats.GetThread.Add(1)
	var t model.Thread
	if err := c.callJSON(ctx, http.MethodGet, "/threads/"+threadID, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetThreads fetches thread metadata in one batched call. The result is
// keyed by thread ID; threads the token cannot access are absent.
func (c *Client) GetThreads(ctx context.Context, threadIDs []string) (map[string]*model.Thread, error) {
	c.stats.GetThreads.Add(1)
	threads := make(map[string]*model.Thread)
	path := "/threads/?ids=" + strings.Join(threadIDs, ",")
	if err := c.callJSON(ctx, http.MethodGet, path, nil, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

// GetThreadMessages fetches the comment messages of a thread, newest first.
func (c *Client) GetThreadMessages(ctx context.Context, threadID string) ([]model.Message, error) {
	c.stats.GetMessages.Add(1)
	var messages []model.Message
	if err := c.callJSON(ctx, http.MethodGet, "/messages/"+threadID, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetBlob fetches a binary attachment of a thread.
func (c *Client) GetBlob(ctx context.Context, threadID, blobID string) (*model.Blob, error) {
	c.stats.GetBlob.Add(1)
	data, err := c.call(ctx, http.MethodGet, "/blob/"+threadID+"/"+blobID, nil)
	if err != nil {
		return nil, err
	}
	return &model.Blob{ThreadID: threadID, ID: blobID, Data: data}, nil
}

// ExportDocx fetches the thread rendered as a DOCX document.
func (c *Client) ExportDocx(ctx context.Context, threadID string) ([]byte, error) {
	c.stats.ExportDocx.Add(1)
	return c.call(ctx, http.MethodGet, "/threads/"+threadID+"/export/docx", nil)
}

// ExportXlsx fetches the thread rendered as an XLSX spreadsheet.
func (c *Client) ExportXlsx(ctx context.Context, threadID string) ([]byte, error) {
	c.stats.ExportXlsx.Add(1)
	return c.call(ctx, http.MethodGet, "/threads/"+threadID+"/export/xlsx", nil)
}

// ExportPDF fetches the thread rendered as a PDF document.
func (c *Client) ExportPDF(ctx context.Context, threadID string) ([]byte, error) {
	c.stats.ExportPDF.Add(1)
	return c.call(ctx, http.MethodGet, "/threads/"+threadID+"/export/pdf", nil)
}

// editDocumentLocationReplaceSection is the "location" value that replaces
// an existing section in the edit-document operation.
const editDocumentLocationReplaceSection = "4"

// EditDocument replaces the content of a document section. It is used after
// a successful export to prepend a title prefix.
func (c *Client) EditDocument(ctx context.Context, threadID, sectionID, content string) error {
	c.stats.UpdateThread.Add(1)
	form := url.Values{
		"thread_id":  {threadID},
		"content":    {content},
		"section_id": {sectionID},
		"location":   {editDocumentLocationReplaceSection},
	}
	_, err := c.call(ctx, http.MethodPost, "/threads/edit-document", form)
	return err
}

// LockEdits toggles the edits-disabled flag of a thread. Locking an already
// locked thread succeeds; the operation is idempotent on the server side.
func (c *Client) LockEdits(ctx context.Context, threadID string, disabled bool) error {
	c.stats.LockThread.Add(1)
	form := url.Values{
		"thread_id":      {threadID},
		"edits_disabled": {strconv.FormatBool(disabled)},
	}
	_, err := c.call(ctx, http.MethodPost, "/threads/lock-edits", form)
	return err
}

// callJSON performs a call and decodes the JSON response into v.
func (c *Client) callJSON(ctx context.Context, method, path string, form url.Values, v any) error {
	data, err := c.call(ctx, method, path, form)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.logger.Error("malformed API response", "path", path, "error", err)
		return fmt.Errorf("%s %s: decode response: %w", method, path, ErrUnavailable)
	}
	return nil
}

// call performs a single logical API call, retrying throttled responses
// until they succeed or the per-endpoint ceiling is reached.
//
// Backoff: the reset deadline from the x-ratelimit-reset header (or the
// fixed default wait when absent) is merged with the shared Throttle so
// every concurrent call converges on the latest observed deadline. The
// retry counter is keyed by (method, path), matching the unit the server
// throttles on.
func (c *Client) call(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		c.stats.Queries.Add(1)

		req, err := c.newRequest(ctx, method, path, form)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Error("request failed", "method", method, "path", path, "error", err)
			return nil, fmt.Errorf("%s %s: %w", method, path, ErrUnavailable)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close() //nolint:errcheck // Read already completed
			if err != nil {
				c.logger.Error("reading response failed", "path", path, "error", err)
				return nil, fmt.Errorf("%s %s: %w", method, path, ErrUnavailable)
			}
			return body, nil
		}

		if isThrottleStatus(resp.StatusCode) {
			remaining := resp.Header.Get("x-ratelimit-remaining")
			reset := parseEpochSeconds(resp.Header.Get("x-ratelimit-reset"))
			_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // Drain for connection reuse
			_ = resp.Body.Close()                 //nolint:errcheck // Nothing to do on close failure

			if !c.shouldRetry(method, path) {
				c.logger.Error("giving up after retry ceiling",
					"method", method,
					"path", path,
					"status", resp.StatusCode,
					"attempts", c.maxRetries,
					"rateLimitRemaining", remaining,
				)
				return nil, fmt.Errorf("%s %s: HTTP %d after %d attempts: %w",
					method, path, resp.StatusCode, c.maxRetries, ErrUnavailable)
			}

			wait := c.backoff(reset)
			c.logger.Debug("throttled, backing off",
				"method", method,
				"path", path,
				"status", resp.StatusCode,
				"wait", wait,
				"rateLimitRemaining", remaining,
			)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) //nolint:errcheck // Best-effort error body
		_ = resp.Body.Close()                                  //nolint:errcheck // Nothing to do on close failure
		c.logger.Debug("fetch failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", string(body),
		)
		return nil, fmt.Errorf("%s %s: HTTP %d: %w", method, path, resp.StatusCode, ErrUnavailable)
	}
}

// backoff merges a response's reset deadline with the shared throttle and
// returns how long this call must sleep before retrying.
//
// The later of the header deadline and the shared deadline wins. When that
// deadline is in the future it is published so concurrent calls observe it;
// when no usable deadline exists the fixed default wait applies without
// touching the shared state.
func (c *Client) backoff(reset time.Time) time.Duration {
	deadline := c.throttle.Until()
	if reset.After(deadline) {
		deadline = reset
	}

	now := c.now()
	if !deadline.After(now) {
		return c.defaultWait
	}

	deadline = c.throttle.Extend(deadline)
	return deadline.Sub(now)
}

// shouldRetry bumps the retry counter for the endpoint and reports whether
// the call is still under the ceiling.
func (c *Client) shouldRetry(method, path string) bool {
	key := method + ":" + path
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retries[key]++
	return c.retries[key] <= c.maxRetries
}

// newRequest builds an authenticated request. Reads negotiate JSON; writes
// send form-encoded bodies, matching the Automation API's expectations.
func (c *Client) newRequest(ctx context.Context, method, path string, form url.Values) (*http.Request, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", path, err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// isThrottleStatus reports whether the status code signals transient
// throttling that should be absorbed by backoff and retry.
func isThrottleStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}

// parseEpochSeconds parses an epoch-seconds header value. The zero time is
// returned for absent or malformed values.
func parseEpochSeconds(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(value, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}
