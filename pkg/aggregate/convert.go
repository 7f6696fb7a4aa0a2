package aggregate

import (
	"fmt"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/jiraquery/jiraquery/pkg/issue"
)

// converter turns one scalar field value into a bucket key.
type converter func(v issue.Value) string

// converters maps each grouping kind to the constructor of its converter.
// A new kind is one entry here plus its constructor.
var converters = map[issue.GroupKind]func(format string) (converter, error){
	issue.Text: textConverter,
	issue.Date: dateConverter,
}

func converterFor(g issue.FieldGrouping) (converter, error) {
	kind := g.Type
	if kind == "" {
		kind = issue.Text
	}
	build, ok := converters[kind]
	if !ok {
		return nil, &ConfigError{Field: g.Field, Reason: fmt.Sprintf("unsupported grouping type %q", g.Type)}
	}
	conv, err := build(g.Format)
	if err != nil {
		return nil, &ConfigError{Field: g.Field, Reason: err.Error()}
	}
	return conv, nil
}

func textConverter(string) (converter, error) {
	return func(v issue.Value) string { return v.String() }, nil
}

// dateConverter buckets timestamps by formatting them with the pattern.
// Missing or unparseable values land in the "" bucket.
func dateConverter(format string) (converter, error) {
	layout, err := datePattern(format)
	if err != nil {
		return nil, err
	}
	return func(v issue.Value) string {
		t, ok := v.Time()
		if !ok {
			return ""
		}
		return layout(t)
	}, nil
}

// datePattern compiles a date pattern into a formatting function.
//
//	""  or "o"      round-trip RFC 3339 with nanoseconds
//	"%Y-%m"         strftime, used as is
//	"yyyy-MM"       .NET style tokens, translated to strftime
func datePattern(format string) (func(time.Time) string, error) {
	switch {
	case format == "" || format == "o" || format == "O":
		return func(t time.Time) string { return t.Format(time.RFC3339Nano) }, nil
	case strings.Contains(format, "%"):
		return func(t time.Time) string { return strftime.Format(format, t) }, nil
	}
	sf, err := translatePattern(format)
	if err != nil {
		return nil, err
	}
	return func(t time.Time) string { return strftime.Format(sf, t) }, nil
}

// netTokens maps .NET custom date tokens to strftime. Entry i is the form for
// a run of i+1 letters; longer y, M and d runs use the last entry.
var netTokens = map[byte][]string{
	'y': {"%y", "%y", "%Y", "%Y"},
	'M': {"%m", "%m", "%b", "%B"},
	'd': {"%d", "%d", "%a", "%A"},
	'H': {"%H", "%H"},
	'h': {"%I", "%I"},
	'm': {"%M", "%M"},
	's': {"%S", "%S"},
	't': {"%p", "%p"},
}

// unsupportedTokens are .NET pattern letters with no strftime counterpart here.
const unsupportedTokens = "fFzKg"

// translatePattern converts a .NET custom date pattern to strftime. Quoted
// text and backslash escapes are literals; other characters pass through.
func translatePattern(p string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(p); {
		c := p[i]
		switch {
		case c == '\'' || c == '"':
			end := strings.IndexByte(p[i+1:], c)
			if end < 0 {
				return "", fmt.Errorf("date pattern %q: unterminated quote", p)
			}
			writeLiteral(&b, p[i+1:i+1+end])
			i += end + 2
		case c == '\\':
			if i+1 >= len(p) {
				return "", fmt.Errorf("date pattern %q: trailing escape", p)
			}
			writeLiteral(&b, p[i+1:i+2])
			i += 2
		case strings.IndexByte(unsupportedTokens, c) >= 0:
			return "", fmt.Errorf("date pattern %q: unsupported token %q", p, c)
		case netTokens[c] != nil:
			n := 1
			for i+n < len(p) && p[i+n] == c {
				n++
			}
			forms := netTokens[c]
			if c != 'y' && c != 'M' && c != 'd' && n > len(forms) {
				return "", fmt.Errorf("date pattern %q: token %q too long", p, p[i:i+n])
			}
			b.WriteString(forms[min(n, len(forms))-1])
			i += n
		default:
			writeLiteral(&b, p[i:i+1])
			i++
		}
	}
	return b.String(), nil
}

func writeLiteral(b *strings.Builder, s string) {
	b.WriteString(strings.ReplaceAll(s, "%", "%%"))
}
