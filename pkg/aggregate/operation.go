package aggregate

import (
	"fmt"

	"github.com/jiraquery/jiraquery/pkg/issue"
)

// reducer computes one cell from a partition and the whole group the
// partition was cut from.
type reducer func(part, group []issue.Record, field string) float64

var reducers = map[issue.Operation]reducer{
	issue.Count: func(part, _ []issue.Record, _ string) float64 {
		return float64(len(part))
	},
	issue.Sum: func(part, _ []issue.Record, field string) float64 {
		sum, _ := total(part, field)
		return sum
	},
	issue.Min: func(part, _ []issue.Record, field string) float64 {
		return fold(part, field, func(acc, v float64) float64 { return min(acc, v) })
	},
	issue.Max: func(part, _ []issue.Record, field string) float64 {
		return fold(part, field, func(acc, v float64) float64 { return max(acc, v) })
	},
	issue.Avg: func(part, _ []issue.Record, field string) float64 {
		sum, n := total(part, field)
		if n == 0 {
			return 0
		}
		return sum / float64(n)
	},
	issue.CountRatio: func(part, group []issue.Record, _ string) float64 {
		if len(group) == 0 {
			return 0
		}
		return float64(len(part)) / float64(len(group))
	},
	issue.SumRatio: func(part, group []issue.Record, field string) float64 {
		all, _ := total(group, field)
		if all == 0 {
			return 0
		}
		sum, _ := total(part, field)
		return sum / all
	},
}

func reducerFor(op issue.Operation) (reducer, error) {
	if op == "" {
		op = issue.Count
	}
	r, ok := reducers[op]
	if !ok {
		return nil, &ConfigError{Reason: fmt.Sprintf("unsupported operation %q", op)}
	}
	return r, nil
}

// total sums the numeric values of field and reports how many there were.
func total(recs []issue.Record, field string) (float64, int) {
	var sum float64
	var n int
	for _, r := range recs {
		if v, ok := r.Get(field).Number(); ok {
			sum += v
			n++
		}
	}
	return sum, n
}

// fold reduces the numeric values of field with fn; 0 when there are none.
func fold(recs []issue.Record, field string, fn func(acc, v float64) float64) float64 {
	var acc float64
	seen := false
	for _, r := range recs {
		v, ok := r.Get(field).Number()
		if !ok {
			continue
		}
		if !seen {
			acc, seen = v, true
			continue
		}
		acc = fn(acc, v)
	}
	return acc
}
