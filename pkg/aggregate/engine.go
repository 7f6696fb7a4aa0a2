package aggregate

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jiraquery/jiraquery/pkg/issue"
)

// Engine aggregates and compares pivot tables. It holds no per-request state
// and is safe for concurrent use.
type Engine struct {
	resolver issue.FieldResolver
	workers  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds how many groups are reduced at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New returns an Engine that resolves field names through resolver.
func New(resolver issue.FieldResolver, opts ...Option) *Engine {
	e := &Engine{resolver: resolver, workers: runtime.GOMAXPROCS(0)}
	for _, o := range opts {
		o(e)
	}
	return e
}

// partition is the records sharing one bucket key, in first-seen order.
type partition struct {
	key     string
	records []issue.Record
}

// Aggregate groups issues by group, splits each group by subGroup and reduces
// value per cell. Every returned row carries the same sub-group keys plus
// issue.All, and rows are sorted by group value.
func (e *Engine) Aggregate(issues []issue.Record, group, subGroup issue.FieldGrouping, value issue.FieldAggregation) ([]issue.Row, error) {
	group.Field = e.resolver.ResolveDisplayName(group.Field)
	subGroup.Field = e.resolver.ResolveDisplayName(subGroup.Field)
	value.Field = e.resolver.ResolveDisplayName(value.Field)

	groupConv, err := converterFor(group)
	if err != nil {
		return nil, err
	}
	subConv, err := converterFor(subGroup)
	if err != nil {
		return nil, err
	}
	reduce, err := reducerFor(value.Operation)
	if err != nil {
		return nil, err
	}

	groups := split(issues, group.Field, groupConv, "")
	rows := make([]issue.Row, len(groups))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, p := range groups {
		i, p := i, p
		g.Go(func() error {
			rows[i] = aggregateGroup(group.Field, p, subGroup.Field, subConv, value.Field, reduce)
			return nil
		})
	}
	// Rows are only complete once every group has been reduced.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rectangularize(rows)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Group < rows[j].Group })
	return rows, nil
}

func aggregateGroup(groupField string, p partition, subField string, conv converter, valueField string, reduce reducer) issue.Row {
	subs := split(p.records, subField, conv, issue.Unset)
	row := issue.Row{
		GroupField: groupField,
		Group:      p.key,
		Values:     make(map[string]float64, len(subs)+1),
	}
	var union []issue.Record
	for _, s := range subs {
		row.Values[s.key] = reduce(s.records, p.records, valueField)
		union = append(union, s.records...)
	}
	row.Values[issue.All] = reduce(union, p.records, valueField)
	return row
}

// split partitions records by the converted value of field. A list value
// makes the record a member of one partition per element. When blank is
// non-empty, whitespace-only keys are replaced by it.
func split(recs []issue.Record, field string, conv converter, blank string) []partition {
	var parts []partition
	index := make(map[string]int)
	add := func(key string, r issue.Record) {
		if blank != "" && strings.TrimSpace(key) == "" {
			key = blank
		}
		i, ok := index[key]
		if !ok {
			i = len(parts)
			index[key] = i
			parts = append(parts, partition{key: key})
		}
		parts[i].records = append(parts[i].records, r)
	}
	for _, r := range recs {
		v := r.Get(field)
		if list, ok := v.List(); ok {
			for _, e := range list {
				add(conv(e), r)
			}
			continue
		}
		add(conv(v), r)
	}
	return parts
}

// rectangularize gives every row every sub-group key seen in any row.
func rectangularize(rows []issue.Row) {
	keys := make(map[string]struct{})
	for _, r := range rows {
		for k := range r.Values {
			keys[k] = struct{}{}
		}
	}
	for _, r := range rows {
		for k := range keys {
			if _, ok := r.Values[k]; !ok {
				r.Values[k] = 0
			}
		}
	}
}

// Compare divides each comparison cell by the matching baseline cell.
// Rows and columns come from the baseline only; a cell is 0 when the
// baseline is 0 or the comparison has no such row or column.
func (e *Engine) Compare(baseline, comparison []issue.Row, baselineGroupField, comparisonGroupField string) ([]issue.Row, error) {
	baseField := e.resolver.ResolveDisplayName(baselineGroupField)
	compField := e.resolver.ResolveDisplayName(comparisonGroupField)

	base, err := index(baseline, baseField)
	if err != nil {
		return nil, err
	}
	comp, err := index(comparison, compField)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(base))
	for k := range base {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]issue.Row, 0, len(keys))
	for _, k := range keys {
		b := base[k]
		other, hasOther := comp[k]
		row := issue.Row{
			GroupField: baseField,
			Group:      k,
			Values:     make(map[string]float64, len(b.Values)),
		}
		for col, bv := range b.Values {
			if col == baseField {
				continue
			}
			var ratio float64
			if cv, ok := other.Values[col]; hasOther && ok && bv > 0 {
				ratio = cv / bv
			}
			row.Values[col] = ratio
		}
		out = append(out, row)
	}
	return out, nil
}

func index(rows []issue.Row, field string) (map[string]issue.Row, error) {
	out := make(map[string]issue.Row, len(rows))
	for _, r := range rows {
		if r.GroupField != field {
			return nil, &ConfigError{Field: field, Reason: fmt.Sprintf("row grouped by %q", r.GroupField)}
		}
		if _, dup := out[r.Group]; dup {
			return nil, &ConfigError{Field: field, Reason: fmt.Sprintf("duplicate group value %q", r.Group)}
		}
		out[r.Group] = r
	}
	return out, nil
}
