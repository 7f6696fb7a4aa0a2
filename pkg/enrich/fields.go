package enrich

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jiraquery/jiraquery/pkg/issue"
)

var nameCleaner = strings.NewReplacer("[", "", "]", "", "-", " ")

// SanitizeName turns a display name into a record field name: brackets are
// dropped, hyphens split words, and words separated by spaces or underscores
// are joined with their first letter upper-cased.
//
//	"[CHART] Time in Status"  → "CHARTTimeInStatus"
//	"customfield_10020"       → "Customfield10020"
//	"Story-Points"            → "StoryPoints"
func SanitizeName(name string) string {
	words := strings.FieldsFunc(nameCleaner.Replace(name), func(r rune) bool {
		return r == ' ' || r == '_'
	})
	// Casers are stateful; one per call keeps SanitizeName goroutine-safe.
	caser := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for _, w := range words {
		b.WriteString(caser.String(w))
	}
	return b.String()
}

// objectKeys are tried in order when flattening an object value.
var objectKeys = []string{"displayName", "name", "value"}

// fieldValue flattens one decoded API field value.
func fieldValue(key string, v any) issue.Value {
	switch x := v.(type) {
	case nil:
		return issue.Value{}
	case map[string]any:
		return objectValue(key, x)
	case []any:
		vs := make([]issue.Value, 0, len(x))
		for _, e := range x {
			if ev := fieldValue("", e); !ev.IsAbsent() {
				vs = append(vs, ev)
			}
		}
		return issue.List(vs...)
	default:
		return issue.FromAny(x)
	}
}

func objectValue(key string, obj map[string]any) issue.Value {
	if t, _ := obj["type"].(string); t == "doc" {
		return issue.Value{}
	}
	for _, k := range objectKeys {
		if s, ok := obj[k].(string); ok {
			return issue.String(s)
		}
	}
	if key == "votes" {
		if n, ok := obj["votes"].(float64); ok {
			return issue.Number(n)
		}
	}
	return issue.Object(obj)
}
