package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/jiraquery/jiraquery/pkg/issue"
)

// identityResolver resolves every name to itself unless mapped.
type identityResolver map[string]string

func (r identityResolver) ResolveDisplayName(key string) string {
	if n, ok := r[key]; ok {
		return n
	}
	return key
}

func (r identityResolver) ResolveFieldKey(name string) (string, bool) { return name, true }

func (r identityResolver) StatusByID(id string) issue.Status { return issue.UnknownStatus(id) }

// rec builds a record from alternating field/value pairs.
func rec(key string, kv ...any) issue.Record {
	r := issue.NewRecord(key)
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i].(string), issue.FromAny(kv[i+1]))
	}
	return r
}

func text(field string) issue.FieldGrouping {
	return issue.FieldGrouping{Field: field, Type: issue.Text}
}

func row(group string, values map[string]float64) issue.Row {
	return issue.Row{GroupField: "grp", Group: group, Values: values}
}

var approx = cmpopts.EquateApprox(0, 1e-9)

func mustAggregate(t *testing.T, issues []issue.Record, group, sub issue.FieldGrouping, value issue.FieldAggregation) []issue.Row {
	t.Helper()
	rows, err := New(identityResolver{}).Aggregate(issues, group, sub, value)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	return rows
}

// --- Worked examples ---

func TestAggregate_CountBySubGroup(t *testing.T) {
	issues := []issue.Record{
		rec("T-1", "grp", "a", "sg", "Done"),
		rec("T-2", "grp", "a", "sg", "Done"),
		rec("T-3", "grp", "b", "sg", "Done"),
		rec("T-4", "grp", "b", "sg", "InProgress"),
		rec("T-5", "grp", "c", "sg", "ToDo"),
	}
	got := mustAggregate(t, issues, text("grp"), text("sg"), issue.FieldAggregation{Field: "sg", Operation: issue.Count})
	want := []issue.Row{
		row("a", map[string]float64{"Done": 2, "InProgress": 0, "ToDo": 0, "all": 2}),
		row("b", map[string]float64{"Done": 1, "InProgress": 1, "ToDo": 0, "all": 2}),
		row("c", map[string]float64{"Done": 0, "InProgress": 0, "ToDo": 1, "all": 1}),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestAggregate_Operations(t *testing.T) {
	issues := []issue.Record{
		rec("T-1", "grp", "x", "sg", "Done", "v", 1.0),
		rec("T-2", "grp", "x", "sg", "Done", "v", 2.0),
		rec("T-3", "grp", "x", "sg", "Done", "v", 3.0),
		rec("T-4", "grp", "x", "sg", "Todo", "v", 4.0),
		rec("T-5", "grp", "x", "sg", "Todo", "v", 5.0),
	}
	cases := []struct {
		op              issue.Operation
		done, todo, all float64
	}{
		{issue.Count, 3, 2, 5},
		{issue.CountRatio, 0.6, 0.4, 1},
		{issue.Avg, 2, 4.5, 3},
		{issue.Sum, 6, 9, 15},
		{issue.SumRatio, 0.4, 0.6, 1},
		{issue.Min, 1, 4, 1},
		{issue.Max, 3, 5, 5},
	}
	for _, c := range cases {
		t.Run(string(c.op), func(t *testing.T) {
			got := mustAggregate(t, issues, text("grp"), text("sg"), issue.FieldAggregation{Field: "v", Operation: c.op})
			want := []issue.Row{row("x", map[string]float64{"Done": c.done, "Todo": c.todo, "all": c.all})}
			if diff := cmp.Diff(want, got, approx); diff != "" {
				t.Errorf("rows (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAggregate_MissingSubGroupAndValue(t *testing.T) {
	issues := []issue.Record{rec("T-1", "grp", "a")}
	cases := []struct {
		op   issue.Operation
		want float64
	}{
		{issue.Count, 1},
		{issue.CountRatio, 1},
		{issue.Sum, 0},
		{issue.SumRatio, 0},
		{issue.Avg, 0},
		{issue.Min, 0},
		{issue.Max, 0},
	}
	for _, c := range cases {
		t.Run(string(c.op), func(t *testing.T) {
			got := mustAggregate(t, issues, text("grp"), text("sg"), issue.FieldAggregation{Field: "v", Operation: c.op})
			want := []issue.Row{row("a", map[string]float64{issue.Unset: c.want, issue.All: c.want})}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("rows (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAggregate_DefaultOperationIsCount(t *testing.T) {
	issues := []issue.Record{rec("T-1", "grp", "a"), rec("T-2", "grp", "a")}
	got := mustAggregate(t, issues, text("grp"), text("sg"), issue.FieldAggregation{Field: "v"})
	if got[0].Values[issue.All] != 2 {
		t.Errorf("all: got %v, want 2", got[0].Values[issue.All])
	}
}

// --- Dates ---

func TestAggregate_DateBucketsByMonth(t *testing.T) {
	issues := []issue.Record{
		rec("T-1", "Created", "2021-09-01T10:00:00.000+0000"),
		rec("T-2", "Created", "2021-09-27T11:54:36.347+0100"),
		rec("T-3", "Created", "2021-10-03T08:00:00.000+0000"),
	}
	month := issue.FieldGrouping{Field: "Created", Type: issue.Date, Format: "yyyy-MM"}
	got := mustAggregate(t, issues, month, text("sg"), issue.FieldAggregation{Field: "v", Operation: issue.Count})
	want := []issue.Row{
		{GroupField: "Created", Group: "2021-09", Values: map[string]float64{"unset": 2, "all": 2}},
		{GroupField: "Created", Group: "2021-10", Values: map[string]float64{"unset": 1, "all": 1}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestAggregate_DateSubGroupByDay(t *testing.T) {
	issues := []issue.Record{
		rec("T-1", "grp", "a", "Resolved", "2021-09-01T10:00:00.000+0000"),
		rec("T-2", "grp", "a", "Resolved", "2021-09-01T18:00:00.000+0000"),
		rec("T-3", "grp", "a", "Resolved", "garbage"),
	}
	day := issue.FieldGrouping{Field: "Resolved", Type: issue.Date, Format: "yyyy-MM-dd"}
	got := mustAggregate(t, issues, text("grp"), day, issue.FieldAggregation{Operation: issue.Count})
	want := []issue.Row{row("a", map[string]float64{"2021-09-01": 2, "unset": 1, "all": 3})}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

// --- Membership expansion ---

func TestAggregate_ListGroupExpandsMembership(t *testing.T) {
	issues := []issue.Record{
		rec("T-1", "Labels", []string{"api", "ui"}, "sg", "Done"),
		rec("T-2", "Labels", []string{"api"}, "sg", "Todo"),
		rec("T-3", "Labels", []string{}, "sg", "Todo"),
	}
	got := mustAggregate(t, issues, text("Labels"), text("sg"), issue.FieldAggregation{Operation: issue.Count})
	want := []issue.Row{
		{GroupField: "Labels", Group: "api", Values: map[string]float64{"Done": 1, "Todo": 1, "all": 2}},
		{GroupField: "Labels", Group: "ui", Values: map[string]float64{"Done": 1, "Todo": 0, "all": 1}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestAggregate_ListSubGroupCountsEachMembership(t *testing.T) {
	issues := []issue.Record{
		rec("T-1", "grp", "a", "Sprints", []string{"S1", "S2"}),
		rec("T-2", "grp", "a", "Sprints", []string{"S2"}),
	}
	got := mustAggregate(t, issues, text("grp"), text("Sprints"), issue.FieldAggregation{Operation: issue.CountRatio})
	// The union holds three memberships over a two-issue group.
	want := []issue.Row{row("a", map[string]float64{"S1": 0.5, "S2": 1, "all": 1.5})}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestAggregate_BlankSubGroupsMergeIntoUnset(t *testing.T) {
	issues := []issue.Record{
		rec("T-1", "grp", "a", "sg", ""),
		rec("T-2", "grp", "a", "sg", "   "),
		rec("T-3", "grp", "a"),
		rec("T-4", "grp", "a", "sg", "Done"),
	}
	got := mustAggregate(t, issues, text("grp"), text("sg"), issue.FieldAggregation{Operation: issue.Count})
	want := []issue.Row{row("a", map[string]float64{"unset": 3, "Done": 1, "all": 4})}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestAggregate_ResolvesFieldNames(t *testing.T) {
	res := identityResolver{"status": "Status", "customfield_10016": "StoryPoints"}
	issues := []issue.Record{
		rec("T-1", "Status", "Open", "StoryPoints", 3.0),
		rec("T-2", "Status", "Open", "StoryPoints", 5.0),
	}
	got, err := New(res).Aggregate(issues, text("status"), text("sg"), issue.FieldAggregation{Field: "customfield_10016", Operation: issue.Sum})
	if err != nil {
		t.Fatal(err)
	}
	want := []issue.Row{{GroupField: "Status", Group: "Open", Values: map[string]float64{"unset": 8, "all": 8}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestAggregate_Empty(t *testing.T) {
	got := mustAggregate(t, nil, text("grp"), text("sg"), issue.FieldAggregation{Operation: issue.Count})
	if len(got) != 0 {
		t.Errorf("rows: got %v, want none", got)
	}
}

// --- Properties over a larger table ---

func propertyIssues() []issue.Record {
	statuses := []string{"Done", "Todo", "", "Review"}
	teams := []string{"red", "blue", "green", "amber", "black"}
	var out []issue.Record
	for i := 0; i < 60; i++ {
		r := rec(fmt.Sprintf("T-%d", i),
			"Team", teams[(i*7)%len(teams)],
			"Status", statuses[(i*3)%len(statuses)],
		)
		if i%4 != 0 {
			r.Set("Points", issue.Number(float64(i%6)))
		}
		if i%5 == 0 {
			r.Set("Labels", issue.Strings("x", "y"))
		}
		out = append(out, r)
	}
	return out
}

func TestAggregate_RowsAreRectangularAndSorted(t *testing.T) {
	for _, op := range []issue.Operation{issue.Count, issue.Sum, issue.Avg, issue.CountRatio, issue.SumRatio, issue.Min, issue.Max} {
		rows := mustAggregate(t, propertyIssues(), text("Team"), text("Status"), issue.FieldAggregation{Field: "Points", Operation: op})
		if len(rows) == 0 {
			t.Fatalf("%s: no rows", op)
		}
		want := rows[0].Keys()
		for _, r := range rows {
			if diff := cmp.Diff(want, r.Keys()); diff != "" {
				t.Errorf("%s row %q keys (-want +got):\n%s", op, r.Group, diff)
			}
			if _, ok := r.Values[issue.All]; !ok {
				t.Errorf("%s row %q: missing %q", op, r.Group, issue.All)
			}
		}
		if !sort.SliceIsSorted(rows, func(i, j int) bool { return rows[i].Group < rows[j].Group }) {
			t.Errorf("%s: rows not sorted by group", op)
		}
	}
}

func TestAggregate_AllIsMetricOverUnion(t *testing.T) {
	issues := propertyIssues()
	rows := mustAggregate(t, issues, text("Team"), text("Labels"), issue.FieldAggregation{Field: "Points", Operation: issue.Sum})
	for _, r := range rows {
		// Rebuild the union of sub-group memberships for this team directly.
		var want float64
		for _, is := range issues {
			if is.Get("Team").String() != r.Group {
				continue
			}
			n, _ := is.Get("Points").Number()
			members := 1
			if list, ok := is.Get("Labels").List(); ok {
				members = len(list)
			}
			want += n * float64(members)
		}
		if got := r.Values[issue.All]; got != want {
			t.Errorf("team %s all: got %v, want %v", r.Group, got, want)
		}
	}
}

func TestAggregate_RatiosWithinUnitInterval(t *testing.T) {
	for _, op := range []issue.Operation{issue.CountRatio, issue.SumRatio} {
		rows := mustAggregate(t, propertyIssues(), text("Team"), text("Status"), issue.FieldAggregation{Field: "Points", Operation: op})
		for _, r := range rows {
			for k, v := range r.Values {
				if v < 0 || v > 1+1e-9 {
					t.Errorf("%s row %q %q: got %v, want within [0,1]", op, r.Group, k, v)
				}
			}
			if op == issue.CountRatio && r.Values[issue.All] != 1 {
				t.Errorf("%s row %q all: got %v, want 1", op, r.Group, r.Values[issue.All])
			}
		}
	}
}

// --- Configuration errors ---

func TestAggregate_ConfigErrors(t *testing.T) {
	issues := []issue.Record{rec("T-1", "grp", "a")}
	cases := map[string]struct {
		group, sub issue.FieldGrouping
		value      issue.FieldAggregation
	}{
		"group kind":   {issue.FieldGrouping{Field: "grp", Type: "Bucket"}, text("sg"), issue.FieldAggregation{}},
		"sub kind":     {text("grp"), issue.FieldGrouping{Field: "sg", Type: "Bucket"}, issue.FieldAggregation{}},
		"operation":    {text("grp"), text("sg"), issue.FieldAggregation{Field: "v", Operation: "Median"}},
		"date pattern": {issue.FieldGrouping{Field: "grp", Type: issue.Date, Format: "yyyy-MM-dd HH:mm:ss.fff"}, text("sg"), issue.FieldAggregation{}},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(identityResolver{}).Aggregate(issues, c.group, c.sub, c.value)
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("err: got %v, want *ConfigError", err)
			}
		})
	}
}
