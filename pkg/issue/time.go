package issue

import (
	"fmt"
	"strings"
	"time"
)

// timeLayouts are tried in order. Fractional seconds are accepted by every
// layout that carries a seconds field.
var timeLayouts = []string{
	"2006-01-02T15:04:05-0700", // Jira: 2022-02-14T17:19:37.302+0000
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a timestamp in any of the shapes the issue tracker emits.
// Values without an offset are interpreted as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("parse time: empty value")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time: unrecognised timestamp %q", s)
}
