// Package api implements the HTTP REST API for jiraquery-server.
//
// New(deps) returns an http.Handler that serves:
//
//	GET /api/v1/field-names          every field with its sanitized display name
//	GET /api/v1/issues               Jira's issue objects (jql, expand, select)
//	GET /api/v1/issues-simplified    enriched records (jql, select)
//	GET /api/v1/aggregate            one pivot table
//	GET /api/v1/compare-aggregates   comparison table / baseline table
//	GET /api/v1/health               reference data state and upstream certificate
//	GET /metrics                     Prometheus text exposition
//
// Groupings are read from <name>, <name>Type (Text|Date) and <name>Format,
// for name in group, subGroup, compareGroup and compareSubGroup; the value
// from value and operation. select is comma-separated.
//
// All endpoints:
//   - Respond with Content-Type: application/json (except /metrics)
//   - Return 405 for non-GET methods
//   - Report failures as {"error": "..."}: 400 for bad requests, Jira's own
//     4xx for rejected queries, 502 for upstream failures
//
// AccessLog wraps the handler with request ids, access logging and the
// request counter. No external HTTP framework is used.
package api
