// Package aggregate builds pivot tables from enriched issue records.
//
// engine.go provides Engine.Aggregate, which partitions records by a group
// field and then by a sub-group field, reduces the value field per cell and
// adds an "all" column per row. Every row ends up with the same columns
// ("unset" stands in for blank sub-group values) and rows are sorted by group
// value. Engine.Compare divides a comparison table by a baseline table cell by
// cell; the baseline decides which rows and columns exist.
//
// convert.go holds the group key converters, one per issue.GroupKind. Date
// patterns are either strftime ("%Y-%m") or .NET style ("yyyy-MM").
//
// operation.go holds the reducers: Count, Sum, Min, Max, Avg, CountRatio,
// SumRatio. Ratios divide by the whole group and yield 0 on a zero divisor.
//
// Unknown grouping kinds, operations or date patterns are reported as a
// *ConfigError before any record is read.
package aggregate
