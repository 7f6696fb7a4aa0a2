package enrich

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jiraquery/jiraquery/pkg/issue"
)

// Enricher builds enriched records from raw API records.
// An Enricher is immutable after New and safe for concurrent use.
type Enricher struct {
	resolver          issue.FieldResolver
	cycleTimeStatuses []string
	timeInStatusAlias string
	workers           int
	now               func() time.Time
	onError           func(raw issue.Raw, err error) error

	sprintKey       string
	hasSprint       bool
	timeInStatusKey string
	hasTimeInStatus bool
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithClock replaces time.Now as the source of "now".
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) { e.now = now }
}

// WithTimeInStatusField overrides the alias used to locate the packed
// time-in-status field.
func WithTimeInStatusField(alias string) Option {
	return func(e *Enricher) {
		if alias != "" {
			e.timeInStatusAlias = alias
		}
	}
}

// WithWorkers bounds the number of records EnrichAll processes at once.
func WithWorkers(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithErrorHandler installs the policy EnrichAll applies to a record that
// fails enrichment: returning nil drops the record, returning an error
// fails the batch. The default fails the batch.
func WithErrorHandler(fn func(raw issue.Raw, err error) error) Option {
	return func(e *Enricher) {
		if fn != nil {
			e.onError = fn
		}
	}
}

// New returns an Enricher reading reference data from resolver.
// The sprint and time-in-status field keys are resolved once, here.
func New(resolver issue.FieldResolver, cycleTimeStatuses []string, opts ...Option) *Enricher {
	e := &Enricher{
		resolver:          resolver,
		cycleTimeStatuses: append([]string(nil), cycleTimeStatuses...),
		timeInStatusAlias: TimeInStatusAlias,
		workers:           runtime.GOMAXPROCS(0),
		now:               time.Now,
		onError:           func(_ issue.Raw, err error) error { return err },
	}
	for _, o := range opts {
		o(e)
	}
	e.sprintKey, e.hasSprint = resolver.ResolveFieldKey(SprintAlias)
	e.timeInStatusKey, e.hasTimeInStatus = resolver.ResolveFieldKey(e.timeInStatusAlias)
	return e
}

// Enrich flattens raw into a Record and adds the computed fields.
// Computed fields whose inputs are missing are omitted. A malformed
// time-in-status value fails the record with a *FormatError.
func (e *Enricher) Enrich(raw issue.Raw) (issue.Record, error) {
	rec := issue.NewRecord(raw.Key)

	keys := make([]string, 0, len(raw.Fields))
	for k := range raw.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rec.Set(SanitizeName(e.resolver.ResolveDisplayName(k)), fieldValue(k, raw.Fields[k]))
	}

	now := e.now()
	created, hasCreated := fieldTime(raw.Fields, createdKey)
	resolved, isResolved := fieldTime(raw.Fields, resolutionDateKey)

	if u, ok := browseURL(raw.Self, raw.Key); ok {
		rec.Set(FieldURL, issue.String(u))
	}
	rec.Set(FieldStatusCategory, issue.String(statusCategory(raw.Fields[statusKey])))
	if hasCreated {
		rec.Set(FieldAge, hours(now.Sub(created)))
	}
	if changed, ok := fieldTime(raw.Fields, statusCategoryChangeDateKey); ok {
		rec.Set(FieldTimeSinceStatusCategoryChange, hours(now.Sub(changed)))
	}
	if isResolved && hasCreated {
		rec.Set(FieldLeadTime, hours(resolved.Sub(created)))
	}

	if packed, ok := e.packedTimeInStatus(raw.Fields); ok {
		entries, err := ParseTimeInStatus(packed, e.resolver.StatusByID)
		if err != nil {
			return issue.Record{}, fmt.Errorf("enrich %s: %w", raw.Key, err)
		}
		rec.Set(FieldTimeInStatus, issue.Map(byStatus(entries)))
		rec.Set(FieldTimeInCategory, issue.Map(byCategory(entries)))
		if isResolved {
			rec.Set(FieldCycleTime, hours(cycleTime(entries, e.cycleTimeStatuses)))
		}
	} else if err := e.checkPacked(raw); err != nil {
		return issue.Record{}, err
	}

	if sprints, ok := raw.Fields[e.sprintKey]; e.hasSprint && ok {
		at := now
		if isResolved {
			at = resolved
		}
		e.setSprintFields(&rec, parseSprints(sprints), at, isResolved)
	}
	return rec, nil
}

func (e *Enricher) packedTimeInStatus(fields map[string]any) (string, bool) {
	if !e.hasTimeInStatus {
		return "", false
	}
	s, ok := fields[e.timeInStatusKey].(string)
	return s, ok
}

// checkPacked rejects a time-in-status value that is present but not text.
func (e *Enricher) checkPacked(raw issue.Raw) error {
	if !e.hasTimeInStatus {
		return nil
	}
	v, ok := raw.Fields[e.timeInStatusKey]
	if !ok || v == nil {
		return nil
	}
	return fmt.Errorf("enrich %s: %w", raw.Key, &FormatError{
		Segment: fmt.Sprint(v),
		Reason:  fmt.Sprintf("value is %T, not text", v),
	})
}

func (e *Enricher) setSprintFields(rec *issue.Record, sprints []issue.Sprint, at time.Time, resolved bool) {
	carried := make([]string, 0, len(sprints))
	for _, s := range sprints {
		if !s.Contains(at) {
			carried = append(carried, s.Name)
		}
	}
	rec.Set(FieldCarriedOverSprint, issue.Strings(carried...))

	if !resolved {
		return
	}
	for _, s := range sprints {
		if s.Contains(at) {
			rec.Set(FieldCompletedSprint, issue.String(s.Name))
			rec.Set(FieldCompletedSprintStartDate, issue.Time(s.Start))
			rec.Set(FieldCompletedSprintEndDate, issue.Time(s.End))
			return
		}
	}
}

// EnrichAll enriches raws concurrently and returns the records in input
// order. Failed records go through the error handler (see WithErrorHandler).
func (e *Enricher) EnrichAll(ctx context.Context, raws []issue.Raw) ([]issue.Record, error) {
	results := make([]issue.Record, len(raws))
	keep := make([]bool, len(raws))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range raws {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := e.Enrich(raws[i])
			if err != nil {
				return e.onError(raws[i], err)
			}
			results[i], keep[i] = rec, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := results[:0]
	for i, rec := range results {
		if keep[i] {
			out = append(out, rec)
		}
	}
	return out, nil
}

func fieldTime(fields map[string]any, key string) (time.Time, bool) {
	s, ok := fields[key].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := issue.ParseTime(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func statusCategory(v any) string {
	status, _ := v.(map[string]any)
	cat, _ := status["statusCategory"].(map[string]any)
	name, _ := cat["name"].(string)
	return name
}

// browseURL rewrites "https://host/rest/api/3/issue/1" to "https://host/browse/KEY".
func browseURL(self, key string) (string, bool) {
	i := strings.Index(self, "/rest/")
	if i < 0 || key == "" {
		return "", false
	}
	return self[:i] + "/browse/" + key, true
}

func hours(d time.Duration) issue.Value {
	return issue.Number(d.Hours())
}
