package api

import (
	"github.com/jiraquery/jiraquery/server/internal/jira"
	"github.com/jiraquery/jiraquery/server/internal/refdata"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// Status is "ok", "starting" before reference data first loads, or
	// "degraded" when the upstream certificate is expired or unreachable.
	Status       string           `json:"status"`
	Refdata      refdata.Stats    `json:"refdata"`
	UpstreamCert *jira.CertStatus `json:"upstream_cert,omitempty"`
	GeneratedAt  string           `json:"generated_at"` // RFC3339
}

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
}
