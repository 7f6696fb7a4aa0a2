package issue

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindString
	KindNumber
	KindBool
	KindTime
	KindDuration
	KindList
	KindMap
	KindObject
)

// Value is one dynamically-typed field value. The zero Value is absent.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	t    time.Time
	d    time.Duration
	list []Value
	m    map[string]Value
	obj  any
}

func String(s string) Value { return Value{kind: KindString, str: s} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }
func Duration(d time.Duration) Value { return Value{kind: KindDuration, d: d} }
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }
func Object(v any) Value { return Value{kind: KindObject, obj: v} }
func List(vs ...Value) Value { return Value{kind: KindList, list: vs} }

// Strings returns a list Value of string elements.
func Strings(ss ...string) Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = String(s)
	}
	return List(vs...)
}

// FromAny converts a value decoded by encoding/json into a Value.
// Nested objects are kept as raw objects; null list elements are dropped.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{}
	case string:
		return String(x)
	case float64:
		return Number(x)
	case int:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return String(x.String())
		}
		return Number(f)
	case bool:
		return Bool(x)
	case time.Time:
		return Time(x)
	case time.Duration:
		return Duration(x)
	case []any:
		vs := make([]Value, 0, len(x))
		for _, e := range x {
			if ev := FromAny(e); !ev.IsAbsent() {
				vs = append(vs, ev)
			}
		}
		return List(vs...)
	case []string:
		return Strings(x...)
	case Value:
		return x
	default:
		return Object(x)
	}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// String returns the scalar string form used as a grouping key.
// Absent values yield "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	case KindDuration:
		return v.d.String()
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return strings.Join(parts, ",")
	case KindMap, KindObject:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}

// Number reports the numeric form of v. Durations count as hours.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindDuration:
		return v.d.Hours(), true
	default:
		return 0, false
	}
}

// Time reports the timestamp held by v, parsing string values.
func (v Value) Time() (time.Time, bool) {
	switch v.kind {
	case KindTime:
		return v.t, true
	case KindString:
		t, err := ParseTime(v.str)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// Duration reports the duration held by v.
func (v Value) Duration() (time.Duration, bool) {
	if v.kind != KindDuration {
		return 0, false
	}
	return v.d, true
}

// List reports the elements of a list value.
func (v Value) List() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// Map reports the entries of a map value.
func (v Value) Map() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// Interface returns v as a plain Go value suitable for encoding.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	case KindDuration:
		return v.d.String()
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.Interface()
		}
		return out
	case KindObject:
		return v.obj
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}
