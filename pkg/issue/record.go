package issue

import "encoding/json"

// KeyField is the field name under which a Record exposes its identifier.
const KeyField = "Key"

// Raw is one issue as returned by the search API, before enrichment.
// Fields maps API field keys (e.g. "created", "customfield_10020") to the
// values produced by encoding/json.
type Raw struct {
	Key    string         `json:"key"`
	Self   string         `json:"self"`
	Fields map[string]any `json:"fields"`
}

// Record is an enriched issue. Fields always carries KeyField; absent
// values are never stored.
type Record struct {
	Key    string
	Fields map[string]Value
}

// NewRecord returns a Record holding only its key.
func NewRecord(key string) Record {
	return Record{
		Key:    key,
		Fields: map[string]Value{KeyField: String(key)},
	}
}

// Get returns the named field, or an absent Value.
func (r Record) Get(field string) Value {
	return r.Fields[field]
}

// Set stores v under field. Absent values are dropped.
func (r *Record) Set(field string, v Value) {
	if v.IsAbsent() {
		return
	}
	if r.Fields == nil {
		r.Fields = make(map[string]Value)
	}
	r.Fields[field] = v
}

// Has reports whether field is present.
func (r Record) Has(field string) bool {
	_, ok := r.Fields[field]
	return ok
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]Value, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}
	out[KeyField] = String(r.Key)
	return json.Marshal(out)
}
