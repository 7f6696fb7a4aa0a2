package aggregate

import "fmt"

// ConfigError reports an aggregation request that cannot be served as asked:
// an unsupported grouping kind, operation or date pattern, or tables that
// cannot be compared. It is a client input error.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "aggregate: " + e.Reason
	}
	return fmt.Sprintf("aggregate: %s: %s", e.Field, e.Reason)
}
