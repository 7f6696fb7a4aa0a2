package enrich

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jiraquery/jiraquery/pkg/issue"
)

const padding = "_*"

// StatusDuration is one decoded time-in-status entry.
type StatusDuration struct {
	Status   issue.Status
	Duration time.Duration
}

// FormatError reports a malformed segment of a packed time-in-status value.
type FormatError struct {
	Segment string
	Reason  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("time in status: segment %q: %s", e.Segment, e.Reason)
}

// ParseTimeInStatus decodes a packed time-in-status value. Blank segments are
// skipped; any other malformed segment fails the whole value.
func ParseTimeInStatus(packed string, lookup func(id string) issue.Status) ([]StatusDuration, error) {
	var out []StatusDuration
	for _, seg := range strings.Split(packed, "|") {
		if strings.TrimSpace(seg) == "" {
			continue
		}
		tokens := strings.Split(seg, ":")
		if len(tokens) < 3 {
			return nil, &FormatError{Segment: seg, Reason: fmt.Sprintf("want at least 3 tokens, got %d", len(tokens))}
		}
		id := strings.Trim(tokens[0], padding)
		if id == "" {
			return nil, &FormatError{Segment: seg, Reason: "empty status id"}
		}
		ms, err := strconv.ParseInt(strings.Trim(tokens[2], padding), 10, 64)
		if err != nil {
			return nil, &FormatError{Segment: seg, Reason: "duration is not an integer"}
		}
		out = append(out, StatusDuration{
			Status:   lookup(id),
			Duration: time.Duration(ms) * time.Millisecond,
		})
	}
	return out, nil
}

// byStatus sums durations per status name.
func byStatus(entries []StatusDuration) map[string]issue.Value {
	sums := make(map[string]time.Duration, len(entries))
	for _, e := range entries {
		sums[e.Status.Name] += e.Duration
	}
	return durationMap(sums)
}

// byCategory sums durations per status category.
func byCategory(entries []StatusDuration) map[string]issue.Value {
	sums := make(map[string]time.Duration)
	for _, e := range entries {
		sums[e.Status.Category] += e.Duration
	}
	return durationMap(sums)
}

func durationMap(sums map[string]time.Duration) map[string]issue.Value {
	out := make(map[string]issue.Value, len(sums))
	for k, d := range sums {
		out[k] = issue.Duration(d)
	}
	return out
}

// cycleTime sums, for each configured status name in order, the first entry
// whose status name matches case-insensitively.
func cycleTime(entries []StatusDuration, statuses []string) time.Duration {
	var total time.Duration
	for _, name := range statuses {
		for _, e := range entries {
			if strings.EqualFold(e.Status.Name, name) {
				total += e.Duration
				break
			}
		}
	}
	return total
}
