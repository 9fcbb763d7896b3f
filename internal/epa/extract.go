package epa

import (
	"strconv"
	"strings"
)

// Extractor pulls one candidate value for a field out of a raw ECHO record.
// ok is false when the candidate is absent.
type Extractor func(rec map[string]any) (v any, ok bool)

// Field is an output field and the candidates tried, in order, to fill it.
// ECHO renames properties between services and API versions; supporting a
// new spelling means appending an extractor.
type Field struct {
	Name       string
	Extractors []Extractor
}

// Key yields rec[name] when it is present.
func Key(name string) Extractor {
	return func(rec map[string]any) (any, bool) {
		v, ok := rec[name]
		if !ok || !present(v) {
			return nil, false
		}
		return v, true
	}
}

// Keys is shorthand for one Key extractor per name.
func Keys(names ...string) []Extractor {
	out := make([]Extractor, len(names))
	for i, n := range names {
		out[i] = Key(n)
	}
	return out
}

// Equals yields true when rec[name] is the string want and is absent
// otherwise, so the next candidate gets a chance.
func Equals(name, want string) Extractor {
	return func(rec map[string]any) (any, bool) {
		if s, ok := rec[name].(string); ok && s == want {
			return true, true
		}
		return nil, false
	}
}

// present treats nil, "", 0 and false as missing. ECHO uses all four for
// "no data".
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case float64:
		return x != 0
	case bool:
		return x
	default:
		return true
	}
}

// Record holds resolved field values by output name.
type Record map[string]any

// Extract resolves every field in table against rec.
func Extract(rec map[string]any, table []Field) Record {
	out := make(Record, len(table))
	for _, f := range table {
		for _, ex := range f.Extractors {
			if v, ok := ex(rec); ok {
				out[f.Name] = v
				break
			}
		}
	}
	return out
}

// String returns the field as text, or def when it was not resolved.
func (r Record) String(name, def string) string {
	v, ok := r[name]
	if !ok {
		return def
	}
	return toString(v)
}

// StringPtr returns nil for unresolved fields.
func (r Record) StringPtr(name string) *string {
	v, ok := r[name]
	if !ok {
		return nil
	}
	s := toString(v)
	return &s
}

// Float returns 0 for unresolved or unparseable fields.
func (r Record) Float(name string) float64 {
	if p := r.FloatPtr(name); p != nil {
		return *p
	}
	return 0
}

// FloatPtr returns nil for unresolved or unparseable fields.
func (r Record) FloatPtr(name string) *float64 {
	v, ok := r[name]
	if !ok {
		return nil
	}
	switch x := v.(type) {
	case float64:
		return &x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

// Int parses a leading integer the way ECHO counters are formatted
// ("3", "3.0", "12 qtrs"). Anything else is 0.
func (r Record) Int(name string) int {
	v, ok := r[name]
	if !ok {
		return 0
	}
	if f, ok := v.(float64); ok {
		return int(f)
	}
	s := strings.TrimSpace(toString(v))
	end := 0
	if end < len(s) && (s[0] == '-' || s[0] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// Bool reports whether the field resolved to a true-ish value.
func (r Record) Bool(name string) bool {
	v, ok := r[name]
	if !ok {
		return false
	}
	b, isBool := v.(bool)
	return isBool && b
}

// Codes normalizes a code list: arrays map to strings, a comma-delimited
// string splits into trimmed non-empty parts, anything else is empty.
func (r Record) Codes(name string) []string {
	out := []string{}
	switch x := r[name].(type) {
	case []any:
		for _, item := range x {
			out = append(out, toString(item))
		}
	case string:
		for _, part := range strings.Split(x, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}
