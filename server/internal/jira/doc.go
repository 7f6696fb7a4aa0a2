// Package jira is a small client for the Jira Cloud REST API v3.
//
// Client.Search pages through /rest/api/3/search and returns the raw issue
// objects; Client.Issues decodes them for enrichment. Client.Fields and
// Client.Statuses load the reference data used to resolve field names and
// status ids.
//
// Every request goes through an auth round-tripper (none, basic, bearer,
// apikey, or propagate, which forwards the caller's Authorization header), a
// semaphore bounding concurrent upstream calls, and a retry loop for 429 and
// 5xx responses with exponential backoff. Other non-2xx responses become a
// *Error carrying Jira's error messages.
//
// CheckCert reports the state of the upstream TLS certificate for /health.
package jira
