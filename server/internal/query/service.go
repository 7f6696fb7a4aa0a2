package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jiraquery/jiraquery/pkg/aggregate"
	"github.com/jiraquery/jiraquery/pkg/enrich"
	"github.com/jiraquery/jiraquery/pkg/issue"
	"github.com/jiraquery/jiraquery/server/internal/config"
	"github.com/jiraquery/jiraquery/server/internal/metrics"
	"github.com/jiraquery/jiraquery/server/internal/refdata"
)

// Searcher runs JQL searches. *jira.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, jql, expand string, fields []string) ([]json.RawMessage, error)
	Issues(ctx context.Context, jql string, fields []string) ([]issue.Raw, error)
}

// Service answers issue, aggregation and comparison queries. It is safe for
// concurrent use; the mapping section can be swapped while it serves.
type Service struct {
	jira    Searcher
	refdata *refdata.Cache
	engine  *aggregate.Engine
	metrics *metrics.Metrics
	now     func() time.Time

	mapping atomic.Pointer[config.MappingConfig]
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records fetched issues, enrichment failures and aggregations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock sets the "now" used for ages and durations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service that searches through j and resolves fields through cache.
func New(j Searcher, cache *refdata.Cache, mapping config.MappingConfig, opts ...Option) *Service {
	s := &Service{
		jira:    j,
		refdata: cache,
		engine:  aggregate.New(cache),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	s.SetMapping(mapping)
	return s
}

// SetMapping replaces the enrichment settings used by later requests.
func (s *Service) SetMapping(m config.MappingConfig) {
	m.CycleTimeStatuses = append([]string(nil), m.CycleTimeStatuses...)
	s.mapping.Store(&m)
}

// Mapping returns the enrichment settings in effect.
func (s *Service) Mapping() config.MappingConfig {
	return *s.mapping.Load()
}

// FieldNames returns every known field with its sanitized display name.
func (s *Service) FieldNames(ctx context.Context) ([]refdata.Field, error) {
	if err := s.refdata.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.refdata.Fields(), nil
}

// Raw returns Jira's issue objects unmodified. selectFields may name fields
// by key, alias or name, and computed fields request their inputs.
func (s *Service) Raw(ctx context.Context, jql, expand string, selectFields []string) ([]json.RawMessage, error) {
	if err := s.refdata.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.jira.Search(ctx, jql, expand, s.refdata.FieldKeysFor(selectFields))
}

// Simplified returns enriched records for the issues matching jql.
func (s *Service) Simplified(ctx context.Context, jql string, selectFields []string) ([]issue.Record, error) {
	if err := s.refdata.Refresh(ctx); err != nil {
		return nil, err
	}
	raws, err := s.jira.Issues(ctx, jql, s.refdata.FieldKeysFor(selectFields))
	if err != nil {
		return nil, err
	}
	return s.enricher().EnrichAll(ctx, raws)
}

// Aggregate builds one pivot table. Only the three named fields and their
// inputs are fetched.
func (s *Service) Aggregate(ctx context.Context, req AggregateRequest) ([]issue.Row, error) {
	if req.Group.Field == "" {
		return nil, &aggregate.ConfigError{Reason: "group field is required"}
	}
	recs, err := s.Simplified(ctx, req.JQL, req.SelectFields())
	if err != nil {
		return nil, err
	}
	rows, err := s.engine.Aggregate(recs, req.Group, req.SubGroup, req.Value)
	if err != nil {
		return nil, err
	}
	op := req.Value.Operation
	if op == "" {
		op = issue.Count
	}
	s.metrics.Aggregations.WithLabelValues(string(op)).Inc()
	slog.Debug("query: aggregated", "jql", req.JQL, "issues", len(recs), "rows", len(rows))
	return rows, nil
}

// Compare builds the baseline and comparison tables concurrently and
// divides the comparison by the baseline.
func (s *Service) Compare(ctx context.Context, req ComparisonRequest) ([]issue.Row, error) {
	baseReq, compReq := req.Baseline(), req.Comparison()

	var base, comp []issue.Row
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		base, err = s.Aggregate(gctx, baseReq)
		if err != nil {
			return fmt.Errorf("baseline: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		comp, err = s.Aggregate(gctx, compReq)
		if err != nil {
			return fmt.Errorf("comparison: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.engine.Compare(base, comp, baseReq.Group.Field, compReq.Group.Field)
}

// enricher builds an Enricher for the current mapping settings.
func (s *Service) enricher() *enrich.Enricher {
	m := s.Mapping()
	return enrich.New(s.refdata, m.CycleTimeStatuses,
		enrich.WithClock(s.now),
		enrich.WithTimeInStatusField(m.TimeInStatusField),
		enrich.WithWorkers(m.EnrichWorkers),
		enrich.WithErrorHandler(func(raw issue.Raw, err error) error {
			s.metrics.EnrichFailures.Inc()
			if m.SkipMalformed {
				slog.Warn("query: skipping malformed issue", "key", raw.Key, "err", err)
				return nil
			}
			return err
		}),
	)
}
