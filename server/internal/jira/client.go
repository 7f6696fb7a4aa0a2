package jira

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
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jiraquery/jiraquery/pkg/issue"
	"github.com/jiraquery/jiraquery/server/internal/config"
	"github.com/jiraquery/jiraquery/server/internal/metrics"
)

// Retry timing for 429 and 5xx responses.
const (
	backoffInitial = 300 * time.Millisecond
	backoffMax     = 10 * time.Second
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Field is one entry of /rest/api/3/field.
type Field struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	ClauseNames []string `json:"clauseNames"`
	Custom      bool     `json:"custom"`
}

// Client talks to one Jira site. It is safe for concurrent use.
type Client struct {
	baseURL    string
	http       *http.Client
	sem        *semaphore.Weighted
	pageSize   int
	maxRetries int
	backoff    time.Duration
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the auth-aware client built from config.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBackoff sets the first retry delay; later delays double.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithMetrics records upstream calls and fetched issues in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New returns a Client for cfg.
func New(cfg config.JiraConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		http:       buildHTTPClient(cfg),
		sem:        semaphore.NewWeighted(int64(max(cfg.Throughput, 1))),
		pageSize:   cfg.PageSize,
		maxRetries: cfg.MaxRetries,
		backoff:    backoffInitial,
	}
	if c.pageSize <= 0 {
		c.pageSize = config.DefaultPageSize
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.New()
	}
	return c
}

// BaseURL returns the site root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// searchPage is one page of /rest/api/3/search.
type searchPage struct {
	StartAt    int               `json:"startAt"`
	MaxResults int               `json:"maxResults"`
	Total      int               `json:"total"`
	Issues     []json.RawMessage `json:"issues"`
}

// Search runs jql and returns every matching issue object, following
// pagination until total is reached. expand and fields are passed through
// when non-empty.
func (c *Client) Search(ctx context.Context, jql, expand string, fields []string) ([]json.RawMessage, error) {
	var out []json.RawMessage
	start := 0
	for {
		q := url.Values{}
		q.Set("jql", jql)
		q.Set("startAt", strconv.Itoa(start))
		q.Set("maxResults", strconv.Itoa(c.pageSize))
		if expand != "" {
			q.Set("expand", expand)
		}
		if len(fields) > 0 {
			q.Set("fields", strings.Join(fields, ","))
		}

		var page searchPage
		if err := c.get(ctx, "search", "/rest/api/3/search", q, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Issues...)

		if page.MaxResults <= 0 || len(page.Issues) == 0 {
			break
		}
		start = page.StartAt + page.MaxResults
		if start >= page.Total {
			break
		}
	}
	c.metrics.IssuesFetched.Add(float64(len(out)))
	slog.Debug("jira: search complete", "jql", jql, "issues", len(out))
	return out, nil
}

// Issues runs jql and decodes the results for enrichment.
func (c *Client) Issues(ctx context.Context, jql string, fields []string) ([]issue.Raw, error) {
	msgs, err := c.Search(ctx, jql, "", fields)
	if err != nil {
		return nil, err
	}
	raws := make([]issue.Raw, len(msgs))
	for i, m := range msgs {
		if err := json.Unmarshal(m, &raws[i]); err != nil {
			return nil, fmt.Errorf("jira: decode issue %d: %w", i, err)
		}
	}
	return raws, nil
}

// Fields loads every system and custom field.
func (c *Client) Fields(ctx context.Context) ([]Field, error) {
	var fields []Field
	if err := c.get(ctx, "field", "/rest/api/3/field", nil, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Statuses loads every workflow status; Category is the status category name.
func (c *Client) Statuses(ctx context.Context) ([]issue.Status, error) {
	var raw []struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		StatusCategory struct {
			Key  string `json:"key"`
			Name string `json:"name"`
		} `json:"statusCategory"`
	}
	if err := c.get(ctx, "status", "/rest/api/3/status", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]issue.Status, len(raw))
	for i, s := range raw {
		out[i] = issue.Status{ID: s.ID, Name: s.Name, Category: s.StatusCategory.Name}
	}
	return out, nil
}

// get performs a throttled, retried GET and decodes a 2xx JSON body into out.
func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values, out any) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	wait := c.backoff
	for attempt := 0; ; attempt++ {
		resp, err := c.do(ctx, u)
		if err != nil {
			c.metrics.JiraRequests.WithLabelValues(endpoint, "error").Inc()
			return fmt.Errorf("jira: GET %s: %w", path, err)
		}
		c.metrics.JiraRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if retryable(resp.StatusCode) && attempt < c.maxRetries {
			d := retryAfter(resp, wait)
			drain(resp)
			slog.Warn("jira: retrying", "path", path, "status", resp.StatusCode, "attempt", attempt+1, "retry_in", d)
			if err := sleep(ctx, d); err != nil {
				return err
			}
			wait = min(wait*2, backoffMax)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			jerr := newError(resp.StatusCode, body)
			slog.Error("jira: request failed", "path", path, "status", resp.StatusCode, "err", jerr)
			return jerr
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("jira: decode %s: %w", path, err)
		}
		return nil
	}
}

func (c *Client) do(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// retryAfter honours a Retry-After header in seconds, else returns def.
func retryAfter(resp *http.Response, def time.Duration) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return min(time.Duration(n)*time.Second, backoffMax)
		}
	}
	return def
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
