// Package health serves the grpc.health.v1 protocol for jiraquery-server so
// load balancers and orchestrators can probe it. The server reports SERVING
// once Jira reference data has been loaded.
package health
