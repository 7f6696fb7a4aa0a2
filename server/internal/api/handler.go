package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jiraquery/jiraquery/pkg/issue"
	"github.com/jiraquery/jiraquery/server/internal/jira"
	"github.com/jiraquery/jiraquery/server/internal/metrics"
	"github.com/jiraquery/jiraquery/server/internal/query"
	"github.com/jiraquery/jiraquery/server/internal/refdata"
)

// Deps are the collaborators of the REST API.
type Deps struct {
	Query   *query.Service
	Refdata *refdata.Cache
	Metrics *metrics.Metrics

	// CertCheck reports the upstream certificate for /health; nil skips it.
	CertCheck func(ctx context.Context) *jira.CertStatus

	// CacheMaxAge is advertised on cacheable query responses; 0 disables it.
	CacheMaxAge time.Duration
}

// Handler is the HTTP handler for all /api/v1/* endpoints and /metrics.
type Handler struct {
	deps Deps
	mux  *http.ServeMux
	now  func() time.Time
}

// New creates a Handler wired to deps and registers all routes.
func New(deps Deps) http.Handler {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	h := &Handler{deps: deps, mux: http.NewServeMux(), now: time.Now}

	h.mux.HandleFunc("/api/v1/field-names", h.fieldNames)
	h.mux.HandleFunc("/api/v1/issues", h.issues)
	h.mux.HandleFunc("/api/v1/issues-simplified", h.issuesSimplified)
	h.mux.HandleFunc("/api/v1/aggregate", h.aggregate)
	h.mux.HandleFunc("/api/v1/compare-aggregates", h.compareAggregates)
	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.Handle("/metrics", deps.Metrics.Handler())

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// fieldNames returns GET /api/v1/field-names.
func (h *Handler) fieldNames(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	fields, err := h.deps.Query.FieldNames(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cacheable(w)
	jsonResp(w, http.StatusOK, fields)
}

// issues returns GET /api/v1/issues: Jira's issue objects unmodified.
func (h *Handler) issues(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	q := r.URL.Query()
	jql, ok := requireParam(w, q, "jql")
	if !ok {
		return
	}
	out, err := h.deps.Query.Raw(r.Context(), jql, q.Get("expand"), splitList(q.Get("select")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []json.RawMessage{}
	}
	jsonResp(w, http.StatusOK, out)
}

// issuesSimplified returns GET /api/v1/issues-simplified: enriched records.
func (h *Handler) issuesSimplified(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	q := r.URL.Query()
	jql, ok := requireParam(w, q, "jql")
	if !ok {
		return
	}
	recs, err := h.deps.Query.Simplified(r.Context(), jql, splitList(q.Get("select")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []issue.Record{}
	}
	h.cacheable(w)
	jsonResp(w, http.StatusOK, recs)
}

// aggregate returns GET /api/v1/aggregate: one pivot table.
func (h *Handler) aggregate(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	q := r.URL.Query()
	jql, ok := requireParam(w, q, "jql")
	if !ok {
		return
	}
	req := query.AggregateRequest{
		JQL:      jql,
		Group:    grouping(q, "group"),
		SubGroup: grouping(q, "subGroup"),
		Value:    valueParam(q),
	}
	rows, err := h.deps.Query.Aggregate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cacheable(w)
	jsonResp(w, http.StatusOK, nonNilRows(rows))
}

// compareAggregates returns GET /api/v1/compare-aggregates: the comparison
// table divided by the baseline table.
func (h *Handler) compareAggregates(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	q := r.URL.Query()
	baseline, ok := requireParam(w, q, "baselineJql")
	if !ok {
		return
	}
	compare, ok := requireParam(w, q, "compareJql")
	if !ok {
		return
	}
	req := query.ComparisonRequest{
		BaselineJQL: baseline,
		CompareJQL:  compare,
		Group:       grouping(q, "group"),
		SubGroup:    grouping(q, "subGroup"),
		Value:       valueParam(q),
	}
	if q.Get("compareGroup") != "" {
		g := grouping(q, "compareGroup")
		req.CompareGroup = &g
	}
	if q.Get("compareSubGroup") != "" {
		g := grouping(q, "compareSubGroup")
		req.CompareSubGroup = &g
	}
	rows, err := h.deps.Query.Compare(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cacheable(w)
	jsonResp(w, http.StatusOK, nonNilRows(rows))
}

// health returns GET /api/v1/health: reference data state and the upstream
// certificate.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	resp := HealthResponse{
		Status:      "ok",
		GeneratedAt: h.now().UTC().Format(time.RFC3339),
	}
	if h.deps.Refdata != nil {
		resp.Refdata = h.deps.Refdata.Stats()
		if resp.Refdata.LoadedAt.IsZero() {
			resp.Status = "starting"
		}
	}
	if h.deps.CertCheck != nil {
		resp.UpstreamCert = h.deps.CertCheck(r.Context())
		if c := resp.UpstreamCert; c != nil && (c.Status == "expired" || c.Status == "unreachable") {
			resp.Status = "degraded"
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) cacheable(w http.ResponseWriter) {
	if secs := int(h.deps.CacheMaxAge / time.Second); secs > 0 {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", secs))
	}
}

func requireGET(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func requireParam(w http.ResponseWriter, q url.Values, name string) (string, bool) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		jsonErr(w, http.StatusBadRequest, "missing query parameter "+name)
		return "", false
	}
	return v, true
}

// grouping reads <prefix>, <prefix>Type and <prefix>Format.
func grouping(q url.Values, prefix string) issue.FieldGrouping {
	return issue.FieldGrouping{
		Field:  q.Get(prefix),
		Type:   issue.ParseGroupKind(q.Get(prefix + "Type")),
		Format: q.Get(prefix + "Format"),
	}
}

func valueParam(q url.Values) issue.FieldAggregation {
	return issue.FieldAggregation{
		Field:     q.Get("value"),
		Operation: issue.ParseOperation(q.Get("operation")),
	}
}

// splitList splits a comma-separated parameter, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nonNilRows(rows []issue.Row) []issue.Row {
	if rows == nil {
		return []issue.Row{}
	}
	return rows
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
