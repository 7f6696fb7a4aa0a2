package issue

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Reserved pivot column labels.
const (
	// Unset labels the sub-group of issues whose sub-group value is blank.
	Unset = "unset"
	// All labels the metric over every sub-group of a row.
	All = "all"
)

// GroupKind selects how a raw field value is turned into a bucket key.
type GroupKind string

const (
	Text GroupKind = "Text"
	Date GroupKind = "Date"
)

// FieldGrouping selects the group or sub-group field of an aggregation.
// Format is only consulted when Type is Date. An empty Type means Text.
type FieldGrouping struct {
	Field  string    `json:"field" yaml:"field"`
	Type   GroupKind `json:"type,omitempty" yaml:"type"`
	Format string    `json:"format,omitempty" yaml:"format"`
}

// Operation is a numeric reduction applied to the value field.
type Operation string

const (
	Count      Operation = "Count"
	Sum        Operation = "Sum"
	Min        Operation = "Min"
	Max        Operation = "Max"
	Avg        Operation = "Avg"
	CountRatio Operation = "CountRatio"
	SumRatio   Operation = "SumRatio"
)

// Operations lists every supported reduction.
var Operations = []Operation{Count, Sum, Min, Max, Avg, CountRatio, SumRatio}

// ParseOperation returns the operation spelled s, ignoring case. Unknown
// names are returned as is so the engine can reject them.
func ParseOperation(s string) Operation {
	for _, op := range Operations {
		if strings.EqualFold(string(op), s) {
			return op
		}
	}
	return Operation(s)
}

// ParseGroupKind returns the grouping kind spelled s, ignoring case.
// Unknown names are returned as is.
func ParseGroupKind(s string) GroupKind {
	for _, k := range []GroupKind{Text, Date} {
		if strings.EqualFold(string(k), s) {
			return k
		}
	}
	return GroupKind(s)
}

// FieldAggregation selects the value field and its reduction.
// An empty Operation means Count.
type FieldAggregation struct {
	Field     string    `json:"field" yaml:"field"`
	Operation Operation `json:"operation,omitempty" yaml:"operation"`
}

// Status is a workflow status as known to the issue tracker.
type Status struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// UnknownStatus is the placeholder returned for ids missing from reference data.
func UnknownStatus(id string) Status {
	return Status{ID: id, Name: fmt.Sprintf("Unknown (%s)", id), Category: "Unknown"}
}

// Sprint is a time-boxed iteration. End is the completion instant when the
// sprint was closed, otherwise its planned end.
type Sprint struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the sprint, bounds inclusive.
func (s Sprint) Contains(t time.Time) bool {
	return !t.Before(s.Start) && !t.After(s.End)
}

// FieldResolver is the read-only reference-data contract consumed by the core.
// Implementations must be safe for concurrent reads.
type FieldResolver interface {
	// ResolveDisplayName maps a field key, alias or name to its canonical
	// display name. Unknown inputs are returned unchanged.
	ResolveDisplayName(key string) string

	// ResolveFieldKey maps a name or alias to the API field key.
	// ok is false when no such field exists.
	ResolveFieldKey(nameOrAlias string) (key string, ok bool)

	// StatusByID never fails; unknown ids yield UnknownStatus(id).
	StatusByID(id string) Status
}

// Row is one row of a pivot table: the group value plus one metric per
// sub-group key, including the reserved All key.
type Row struct {
	GroupField string
	Group      string
	Values     map[string]float64
}

// Keys returns the metric keys of r in ascending order.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r.Values))
	for k := range r.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON encodes the row flat: {GroupField: Group, key: value, ...}.
func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Values)+1)
	for k, v := range r.Values {
		out[k] = v
	}
	out[r.GroupField] = r.Group
	return json.Marshal(out)
}
