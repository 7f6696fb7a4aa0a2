// Package config loads config.yaml for the jiraquery server and CLI.
//
// Sections:
//   - server: http_port (8080), grpc_port (50051), auth{mode,key_env,header},
//     cache_max_age (5m)
//   - jira: base_url, auth{mode: none|basic|bearer|apikey|propagate, ...},
//     tls{insecure_skip_verify}, page_size (50), throughput (4), timeout (30s),
//     max_retries (3)
//   - refdata: refresh cron spec ("@every 5m"), ttl (5m)
//   - mapping: cycle_time_statuses, time_in_status_field, skip_malformed,
//     enrich_workers
//   - log: level (info)
//
// Secrets are never stored in the file: *_env keys name environment
// variables, which the binaries may populate from a .env file.
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, fn) hot-reloads the file with fsnotify.
package config
