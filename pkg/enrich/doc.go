// Package enrich turns raw search API records into enriched issue records.
//
// enricher.go holds the Enricher: field-name resolution, value flattening and
// the computed X- fields (age, lead and cycle time, time in status/category,
// sprint completion and carry-over, time since status category change).
// EnrichAll fans out over records with a bounded errgroup and keeps input
// order.
//
// timeinstatus.go decodes the packed "[CHART] Time in Status" value:
//
//	<statusId>_*:*_<count>_*:*_<millis>_*|<statusId>_*:*_...
//
// Malformed segments yield a *FormatError and fail that record.
//
// sprint.go reads sprint values in both the Cloud object form and the legacy
// Server string form ("...Sprint@1f[id=1,name=RT14,startDate=...]").
package enrich
