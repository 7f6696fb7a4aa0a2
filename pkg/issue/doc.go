// Package issue defines the shared data model used by the enrichment layer,
// the aggregation engine and the server.
//
// Top-level types:
//   - Value: tagged union for one dynamically-typed field value
//     (string | number | bool | time | duration | list | map | raw object)
//   - Raw: one decoded API record (key, self link, field key → JSON value)
//   - Record: an enriched issue, key plus field name → Value; absent values
//     are never stored
//   - FieldGrouping / FieldAggregation: group, sub-group and value selectors
//   - Row: one pivot table row, group value plus sub-group key → metric
//   - Status, Sprint: reference data used by derived metrics
//   - FieldResolver: the read-only lookup contract the core consumes
//
// ParseTime accepts the timestamp shapes Jira emits ("2022-02-14T17:19:37.302+0000"),
// RFC 3339, and plain "2006-01-02[ 15:04:05]" forms.
package issue
