// Package refdata caches Jira's field and status lists and answers the
// field-name and status lookups the enricher and aggregation engine need.
//
// Cache.Refresh reloads lazily once the configured TTL has passed; Cache.Run
// also reloads on a cron schedule. Lookups are case-insensitive and match a
// field's key, any of its JQL clause names, or its name.
package refdata
