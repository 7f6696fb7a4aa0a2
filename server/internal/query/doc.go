// Package query ties the Jira client, the reference data cache, the
// enricher and the aggregation engine together into the operations the
// REST API and CLI expose.
package query
