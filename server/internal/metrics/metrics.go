package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jiraquery"

// Metrics is the set of series exported by the service. Each instance owns
// its own registry, so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	// HTTPRequests counts REST responses by route and status code.
	HTTPRequests *prometheus.CounterVec
	// JiraRequests counts upstream calls by endpoint and status code
	// ("error" for transport failures).
	JiraRequests *prometheus.CounterVec
	// IssuesFetched counts issues returned by upstream searches.
	IssuesFetched prometheus.Counter
	// EnrichFailures counts records that failed enrichment.
	EnrichFailures prometheus.Counter
	// Aggregations counts pivot tables built, by operation.
	Aggregations *prometheus.CounterVec

	RefdataFields    prometheus.Gauge
	RefdataStatuses  prometheus.Gauge
	RefdataRefreshed prometheus.Gauge
}

// New registers the service metrics in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "REST responses by route and status code.",
		}, []string{"route", "code"}),
		JiraRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "jira_requests_total",
			Help: "Jira API calls by endpoint and status code.",
		}, []string{"endpoint", "code"}),
		IssuesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "issues_fetched_total",
			Help: "Issues returned by Jira searches.",
		}),
		EnrichFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "enrich_failures_total",
			Help: "Records that failed enrichment.",
		}),
		Aggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "aggregations_total",
			Help: "Pivot tables built, by operation.",
		}, []string{"operation"}),
		RefdataFields: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "refdata_fields",
			Help: "Fields held in the reference data cache.",
		}),
		RefdataStatuses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "refdata_statuses",
			Help: "Statuses held in the reference data cache.",
		}),
		RefdataRefreshed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "refdata_last_refresh_timestamp_seconds",
			Help: "Unix time of the last reference data load.",
		}),
	}
	m.Registry.MustRegister(
		m.HTTPRequests,
		m.JiraRequests,
		m.IssuesFetched,
		m.EnrichFailures,
		m.Aggregations,
		m.RefdataFields,
		m.RefdataStatuses,
		m.RefdataRefreshed,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format. Only GET
// is allowed.
func (m *Metrics) Handler() http.Handler {
	h := promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, r)
	})
}
