// Package metrics declares the service's Prometheus series and serves them
// on /metrics.
//
// Every Metrics value owns a private prometheus.Registry rather than the
// global default, so each server, CLI run or test gets an isolated set.
package metrics
