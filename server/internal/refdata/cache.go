package refdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jiraquery/jiraquery/pkg/enrich"
	"github.com/jiraquery/jiraquery/pkg/issue"
	"github.com/jiraquery/jiraquery/server/internal/jira"
	"github.com/jiraquery/jiraquery/server/internal/metrics"
)

// Source loads reference data from Jira. *jira.Client satisfies it.
type Source interface {
	Fields(ctx context.Context) ([]jira.Field, error)
	Statuses(ctx context.Context) ([]issue.Status, error)
}

// Field is a Jira field with its display name sanitized.
type Field struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	ClauseNames []string `json:"clauseNames"`
}

// Stats summarises the cache for /health.
type Stats struct {
	Fields   int       `json:"fields"`
	Statuses int       `json:"statuses"`
	LoadedAt time.Time `json:"loaded_at"`
	Fresh    bool      `json:"fresh"`
}

// Cache holds fields and statuses and implements issue.FieldResolver.
// Reads never block on a refresh in progress.
type Cache struct {
	src     Source
	ttl     time.Duration
	now     func() time.Time // injectable for deterministic tests
	metrics *metrics.Metrics

	refreshMu sync.Mutex // serialises loads

	mu       sync.RWMutex
	fields   []Field
	byName   map[string]int // lowercased key, clause name, raw and sanitized name
	statuses map[string]issue.Status
	loadedAt time.Time
}

var _ issue.FieldResolver = (*Cache)(nil)

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMetrics publishes cache sizes and refresh times to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New returns an empty Cache that loads from src and treats data older than
// ttl as stale.
func New(src Source, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		src:      src,
		ttl:      ttl,
		now:      time.Now,
		byName:   map[string]int{},
		statuses: map[string]issue.Status{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.New()
	}
	return c
}

// Refresh reloads the cache when it has never loaded or is older than the TTL.
func (c *Cache) Refresh(ctx context.Context) error {
	if c.fresh() {
		return nil
	}
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if c.fresh() {
		return nil
	}
	return c.load(ctx)
}

// ForceRefresh reloads the cache regardless of its age.
func (c *Cache) ForceRefresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.load(ctx)
}

func (c *Cache) fresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.loadedAt.IsZero() && c.now().Sub(c.loadedAt) < c.ttl
}

// load replaces the cached data. The old data stays in place when Jira fails.
func (c *Cache) load(ctx context.Context) error {
	apiFields, err := c.src.Fields(ctx)
	if err != nil {
		return fmt.Errorf("refdata: load fields: %w", err)
	}
	statusList, err := c.src.Statuses(ctx)
	if err != nil {
		return fmt.Errorf("refdata: load statuses: %w", err)
	}

	fields := make([]Field, len(apiFields))
	byName := make(map[string]int, len(apiFields)*3)
	index := func(name string, i int) {
		name = strings.ToLower(name)
		if name == "" {
			return
		}
		if _, seen := byName[name]; !seen {
			byName[name] = i
		}
	}
	// Keys win over clause names, clause names over display names.
	for i, f := range apiFields {
		fields[i] = Field{Key: f.Key, Name: enrich.SanitizeName(f.Name), ClauseNames: f.ClauseNames}
		index(f.Key, i)
	}
	for i, f := range apiFields {
		for _, cn := range f.ClauseNames {
			index(cn, i)
		}
	}
	for i, f := range apiFields {
		index(f.Name, i)
		index(fields[i].Name, i)
	}

	statuses := make(map[string]issue.Status, len(statusList))
	for _, s := range statusList {
		statuses[s.ID] = s
	}

	now := c.now()
	c.mu.Lock()
	c.fields, c.byName, c.statuses, c.loadedAt = fields, byName, statuses, now
	c.mu.Unlock()

	c.metrics.RefdataFields.Set(float64(len(fields)))
	c.metrics.RefdataStatuses.Set(float64(len(statuses)))
	c.metrics.RefdataRefreshed.Set(float64(now.Unix()))
	slog.Info("refdata: refreshed", "fields", len(fields), "statuses", len(statuses))
	return nil
}

func (c *Cache) lookup(name string) (Field, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byName[strings.ToLower(name)]
	if !ok {
		return Field{}, false
	}
	return c.fields[i], true
}

// ResolveDisplayName maps a field key, clause name or name to the sanitized
// display name. Computed field names resolve to their canonical spelling.
// Anything else is returned unchanged.
func (c *Cache) ResolveDisplayName(key string) string {
	if f, ok := c.lookup(key); ok {
		return f.Name
	}
	if cf, ok := enrich.LookupComputed(key); ok {
		return cf.Name
	}
	return key
}

// ResolveFieldKey maps a name or alias to its API field key.
func (c *Cache) ResolveFieldKey(nameOrAlias string) (string, bool) {
	f, ok := c.lookup(nameOrAlias)
	return f.Key, ok
}

// StatusByID returns the status with id, or a placeholder.
func (c *Cache) StatusByID(id string) issue.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.statuses[id]; ok {
		return s
	}
	return issue.UnknownStatus(id)
}

// Fields returns a copy of the cached fields in Jira's order.
func (c *Cache) Fields() []Field {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// FieldKeysFor expands selected field names into the API field keys to
// request. A computed field contributes the keys of its dependencies; names
// that match nothing are dropped. Duplicates are dropped and first-seen order
// is kept. A nil result means "request every field".
func (c *Cache) FieldKeysFor(selectFields []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(k string) {
		if k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, name := range selectFields {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if key, ok := c.ResolveFieldKey(name); ok {
			add(key)
			continue
		}
		if cf, ok := enrich.LookupComputed(name); ok {
			for _, dep := range cf.DependsOn {
				if key, ok := c.ResolveFieldKey(dep); ok {
					add(key)
				}
			}
		}
	}
	return out
}

// Loaded reports whether reference data has been loaded at least once.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.loadedAt.IsZero()
}

// Stats returns the current cache sizes and freshness.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Fields:   len(c.fields),
		Statuses: len(c.statuses),
		LoadedAt: c.loadedAt,
		Fresh:    !c.loadedAt.IsZero() && c.now().Sub(c.loadedAt) < c.ttl,
	}
}
