package enrich

import (
	"strings"
	"time"

	"github.com/jiraquery/jiraquery/pkg/issue"
)

// parseSprints reads the sprint field value. Sprints lacking a start or an
// end bound are left out.
func parseSprints(v any) []issue.Sprint {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []issue.Sprint
	for _, e := range list {
		var attrs map[string]any
		switch x := e.(type) {
		case map[string]any:
			attrs = x
		case string:
			attrs = parseLegacySprint(x)
		}
		if s, ok := sprintFrom(attrs); ok {
			out = append(out, s)
		}
	}
	return out
}

func sprintFrom(attrs map[string]any) (issue.Sprint, bool) {
	if attrs == nil {
		return issue.Sprint{}, false
	}
	name, _ := attrs["name"].(string)
	start, ok := attrTime(attrs, "startDate")
	if !ok {
		return issue.Sprint{}, false
	}
	end, ok := attrTime(attrs, "completeDate")
	if !ok {
		if end, ok = attrTime(attrs, "endDate"); !ok {
			return issue.Sprint{}, false
		}
	}
	return issue.Sprint{Name: name, Start: start, End: end}, true
}

func attrTime(attrs map[string]any, key string) (time.Time, bool) {
	s, ok := attrs[key].(string)
	if !ok || s == "" || s == "<null>" {
		return time.Time{}, false
	}
	t, err := issue.ParseTime(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseLegacySprint reads the Jira Server form
// "com.atlassian.greenhopper.service.sprint.Sprint@1f[id=1,name=RT14,...]".
// Commas inside a value are kept with that value.
func parseLegacySprint(s string) map[string]any {
	open := strings.IndexByte(s, '[')
	closing := strings.LastIndexByte(s, ']')
	if open < 0 || closing <= open {
		return nil
	}
	attrs := make(map[string]any)
	var last string
	for _, part := range strings.Split(s[open+1:closing], ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok || !isAttrName(k) {
			if last != "" {
				attrs[last] = attrs[last].(string) + "," + part
			}
			continue
		}
		attrs[k] = v
		last = k
	}
	return attrs
}

func isAttrName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
