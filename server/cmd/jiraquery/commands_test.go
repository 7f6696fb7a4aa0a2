package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeJira serves two issues for any search.
func fakeJira(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/3/field", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"key":"status","name":"Status","clauseNames":["status"]},
			{"key":"customfield_10001","name":"Team","clauseNames":["cf[10001]","Team"]}
		]`))
	})
	mux.HandleFunc("/rest/api/3/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/rest/api/3/search", func(w http.ResponseWriter, r *http.Request) {
		team := "Red"
		if strings.Contains(r.URL.Query().Get("jql"), "blue") {
			team = "Blue"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"startAt": 0, "maxResults": 50, "total": 2,
			"issues": []map[string]any{
				{"key": "A-1", "fields": map[string]any{"customfield_10001": map[string]any{"value": team}, "status": map[string]any{"name": "Done"}}},
				{"key": "A-2", "fields": map[string]any{"customfield_10001": map[string]any{"value": team}, "status": map[string]any{"name": "To Do"}}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("jira:\n  base_url: "+baseURL+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFieldsCommand(t *testing.T) {
	cfg := writeConfig(t, fakeJira(t).URL)
	out, err := execute(t, "fields", "--config", cfg, "--env-file", "")
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	var fields []map[string]any
	if err := json.Unmarshal([]byte(out), &fields); err != nil {
		t.Fatalf("decode: %v (%s)", err, out)
	}
	if len(fields) != 2 || fields[1]["name"] != "Team" {
		t.Errorf("fields: got %v", fields)
	}
}

func TestIssuesCommand(t *testing.T) {
	cfg := writeConfig(t, fakeJira(t).URL)
	out, err := execute(t, "issues", "--config", cfg, "--env-file", "", "--jql", "project = A")
	if err != nil {
		t.Fatalf("issues: %v", err)
	}
	var recs []map[string]any
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("decode: %v (%s)", err, out)
	}
	if len(recs) != 2 || recs[0]["Team"] != "Red" || recs[1]["Status"] != "To Do" {
		t.Errorf("records: got %v", recs)
	}
}

func TestAggregateCommand(t *testing.T) {
	cfg := writeConfig(t, fakeJira(t).URL)
	out, err := execute(t, "aggregate", "--config", cfg, "--env-file", "",
		"--jql", "project = A", "--group", "Team", "--sub-group", "Status", "--operation", "countratio")
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode: %v (%s)", err, out)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: got %d, want 1", len(rows))
	}
	for k, want := range map[string]any{"Team": "Red", "Done": 0.5, "To Do": 0.5, "all": 1.0} {
		if rows[0][k] != want {
			t.Errorf("%s: got %v, want %v", k, rows[0][k], want)
		}
	}
}

func TestCompareCommand(t *testing.T) {
	cfg := writeConfig(t, fakeJira(t).URL)
	out, err := execute(t, "compare", "--config", cfg, "--env-file", "",
		"--baseline-jql", "team = red", "--compare-jql", "team = red again", "--group", "Team", "--sub-group", "Status")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode: %v (%s)", err, out)
	}
	if len(rows) != 1 || rows[0]["all"] != 1.0 || rows[0]["Done"] != 1.0 {
		t.Errorf("rows: got %v", rows)
	}
}

func TestAggregateCommand_Errors(t *testing.T) {
	cfg := writeConfig(t, fakeJira(t).URL)
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"missing group", []string{"aggregate", "--config", cfg, "--jql", "x"}, `required flag(s) "group" not set`},
		{"bad operation", []string{"aggregate", "--config", cfg, "--env-file", "", "--jql", "x", "--group", "Team", "--operation", "Median"}, "aggregate: "},
		{"missing config", []string{"fields", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "--env-file", ""}, "config: "},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := execute(t, c.args...)
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Errorf("error: got %v, want it to contain %q", err, c.want)
			}
		})
	}
}
