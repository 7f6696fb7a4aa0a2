package query

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jiraquery/jiraquery/pkg/aggregate"
	"github.com/jiraquery/jiraquery/pkg/enrich"
	"github.com/jiraquery/jiraquery/pkg/issue"
	"github.com/jiraquery/jiraquery/server/internal/config"
	"github.com/jiraquery/jiraquery/server/internal/jira"
	"github.com/jiraquery/jiraquery/server/internal/refdata"
)

var baseTime = time.Date(2021, 10, 1, 12, 0, 0, 0, time.UTC)

type refSource struct{}

func (refSource) Fields(context.Context) ([]jira.Field, error) {
	return []jira.Field{
		{Key: "status", Name: "Status", ClauseNames: []string{"status"}},
		{Key: "created", Name: "Created", ClauseNames: []string{"created"}},
		{Key: "customfield_10001", Name: "Team", ClauseNames: []string{"cf[10001]", "Team"}},
		{Key: "customfield_10016", Name: "Story Points", ClauseNames: []string{"cf[10016]", "Story Points"}},
		{Key: "customfield_10100", Name: "[CHART] Time in Status", ClauseNames: []string{"cf[10100]"}},
	}, nil
}

func (refSource) Statuses(context.Context) ([]issue.Status, error) {
	return []issue.Status{
		{ID: "3", Name: "In Progress", Category: "In Progress"},
		{ID: "10014", Name: "Done", Category: "Done"},
	}, nil
}

// fakeJira answers searches from a fixed jql → issues table.
type fakeJira struct {
	mu     sync.Mutex
	issues map[string][]issue.Raw
	fields [][]string
	err    error
}

func (f *fakeJira) Issues(_ context.Context, jql string, fields []string) ([]issue.Raw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields = append(f.fields, fields)
	if f.err != nil {
		return nil, f.err
	}
	return f.issues[jql], nil
}

func (f *fakeJira) Search(ctx context.Context, jql, _ string, fields []string) ([]json.RawMessage, error) {
	raws, err := f.Issues(ctx, jql, fields)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, len(raws))
	for i, r := range raws {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func status(name, category string) map[string]any {
	return map[string]any{"name": name, "statusCategory": map[string]any{"name": category}}
}

func teamIssue(key, team, st string, points float64) issue.Raw {
	return issue.Raw{
		Key:  key,
		Self: "https://example.atlassian.net/rest/api/3/issue/" + key,
		Fields: map[string]any{
			"customfield_10001": map[string]any{"value": team},
			"status":            status(st, st),
			"customfield_10016": points,
			"created":           "2021-09-01T12:00:00.000+0000",
		},
	}
}

func newService(t *testing.T, j *fakeJira, m config.MappingConfig) *Service {
	t.Helper()
	cache := refdata.New(refSource{}, time.Hour)
	return New(j, cache, m, WithClock(func() time.Time { return baseTime }))
}

func sampleJira() *fakeJira {
	return &fakeJira{issues: map[string][]issue.Raw{
		"sprint = 1": {
			teamIssue("A-1", "Red", "Done", 3),
			teamIssue("A-2", "Red", "In Progress", 5),
			teamIssue("A-3", "Blue", "Done", 2),
		},
		"sprint = 2": {
			teamIssue("A-4", "Red", "Done", 1),
			teamIssue("A-5", "Blue", "Done", 8),
			teamIssue("A-6", "Blue", "Done", 2),
		},
	}}
}

func TestSimplified(t *testing.T) {
	j := sampleJira()
	s := newService(t, j, config.MappingConfig{})

	recs, err := s.Simplified(context.Background(), "sprint = 1", []string{"Team", "X-Age"})
	if err != nil {
		t.Fatalf("Simplified: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records: got %d, want 3", len(recs))
	}
	r := recs[0]
	if got := r.Get("Team").String(); got != "Red" {
		t.Errorf("Team: got %q, want Red", got)
	}
	if got := r.Get(enrich.FieldStatusCategory).String(); got != "Done" {
		t.Errorf("X-StatusCategory: got %q, want Done", got)
	}
	if got, _ := r.Get(enrich.FieldAge).Number(); got != 30*24 {
		t.Errorf("X-Age: got %v, want 720", got)
	}
	if got := r.Get(enrich.FieldURL).String(); got != "https://example.atlassian.net/browse/A-1" {
		t.Errorf("X-Url: got %q", got)
	}
	if diff := cmp.Diff([]string{"customfield_10001", "created"}, j.fields[0]); diff != "" {
		t.Errorf("requested fields (-want +got):\n%s", diff)
	}
}

func TestRaw(t *testing.T) {
	s := newService(t, sampleJira(), config.MappingConfig{})
	out, err := s.Raw(context.Background(), "sprint = 2", "", nil)
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("issues: got %d, want 3", len(out))
	}
	var first issue.Raw
	if err := json.Unmarshal(out[0], &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Key != "A-4" {
		t.Errorf("key: got %q, want A-4", first.Key)
	}
}

func TestFieldNames(t *testing.T) {
	s := newService(t, sampleJira(), config.MappingConfig{})
	fields, err := s.FieldNames(context.Background())
	if err != nil {
		t.Fatalf("FieldNames: %v", err)
	}
	if len(fields) != 5 {
		t.Fatalf("fields: got %d, want 5", len(fields))
	}
	if fields[3].Name != "StoryPoints" {
		t.Errorf("sanitized name: got %q, want StoryPoints", fields[3].Name)
	}
}

func TestAggregate(t *testing.T) {
	s := newService(t, sampleJira(), config.MappingConfig{})
	rows, err := s.Aggregate(context.Background(), AggregateRequest{
		JQL:      "sprint = 1",
		Group:    issue.FieldGrouping{Field: "team"},
		SubGroup: issue.FieldGrouping{Field: "status"},
		Value:    issue.FieldAggregation{Field: "Story Points", Operation: issue.Sum},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	want := []issue.Row{
		{GroupField: "Team", Group: "Blue", Values: map[string]float64{"Done": 2, "In Progress": 0, issue.All: 2}},
		{GroupField: "Team", Group: "Red", Values: map[string]float64{"Done": 3, "In Progress": 5, issue.All: 8}},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestAggregate_MissingGroup(t *testing.T) {
	s := newService(t, sampleJira(), config.MappingConfig{})
	_, err := s.Aggregate(context.Background(), AggregateRequest{JQL: "sprint = 1"})
	var cerr *aggregate.ConfigError
	if !errors.As(err, &cerr) {
		t.Errorf("error: got %v, want *aggregate.ConfigError", err)
	}
}

func TestAggregate_UpstreamError(t *testing.T) {
	j := sampleJira()
	j.err = &jira.Error{StatusCode: 400, Messages: []string{"bad jql"}}
	s := newService(t, j, config.MappingConfig{})
	_, err := s.Aggregate(context.Background(), AggregateRequest{JQL: "(", Group: issue.FieldGrouping{Field: "Team"}})
	var jerr *jira.Error
	if !errors.As(err, &jerr) {
		t.Errorf("error: got %v, want *jira.Error", err)
	}
}

func TestCompare(t *testing.T) {
	s := newService(t, sampleJira(), config.MappingConfig{})
	rows, err := s.Compare(context.Background(), ComparisonRequest{
		BaselineJQL: "sprint = 1",
		CompareJQL:  "sprint = 2",
		Group:       issue.FieldGrouping{Field: "Team"},
		SubGroup:    issue.FieldGrouping{Field: "Status"},
		Value:       issue.FieldAggregation{Field: "Story Points", Operation: issue.Sum},
	})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	// sprint 2: Blue Done 10 / All 10; Red Done 1 / All 1
	want := []issue.Row{
		{GroupField: "Team", Group: "Blue", Values: map[string]float64{"Done": 5, "In Progress": 0, issue.All: 5}},
		{GroupField: "Team", Group: "Red", Values: map[string]float64{"Done": 1.0 / 3, "In Progress": 0, issue.All: 1.0 / 8}},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestComparisonRequest_Defaults(t *testing.T) {
	other := issue.FieldGrouping{Field: "Assignee"}
	req := ComparisonRequest{
		BaselineJQL: "a",
		CompareJQL:  "b",
		Group:       issue.FieldGrouping{Field: "Team"},
		SubGroup:    issue.FieldGrouping{Field: "Status"},
	}
	if got := req.Comparison(); got.Group.Field != "Team" || got.SubGroup.Field != "Status" || got.JQL != "b" {
		t.Errorf("Comparison without overrides: got %+v", got)
	}
	req.CompareSubGroup = &other
	if got := req.Comparison(); got.SubGroup.Field != "Assignee" || got.Group.Field != "Team" {
		t.Errorf("Comparison with sub-group override: got %+v", got)
	}
	if got := req.Baseline(); got.SubGroup.Field != "Status" || got.JQL != "a" {
		t.Errorf("Baseline: got %+v", got)
	}
}

func TestSkipMalformed(t *testing.T) {
	bad := teamIssue("A-9", "Red", "Done", 1)
	bad.Fields["customfield_10100"] = "garbage"
	j := &fakeJira{issues: map[string][]issue.Raw{
		"q": {teamIssue("A-1", "Red", "Done", 3), bad},
	}}

	s := newService(t, j, config.MappingConfig{})
	_, err := s.Simplified(context.Background(), "q", nil)
	var ferr *enrich.FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("strict: got %v, want *enrich.FormatError", err)
	}

	s.SetMapping(config.MappingConfig{SkipMalformed: true})
	recs, err := s.Simplified(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if len(recs) != 1 || recs[0].Key != "A-1" {
		t.Errorf("skip: got %d records, want only A-1", len(recs))
	}
}

func TestSetMapping_Copies(t *testing.T) {
	statuses := []string{"In Progress"}
	s := newService(t, sampleJira(), config.MappingConfig{CycleTimeStatuses: statuses})
	statuses[0] = "Mutated"
	if got := s.Mapping().CycleTimeStatuses[0]; got != "In Progress" {
		t.Errorf("CycleTimeStatuses: got %q, want In Progress", got)
	}
}
