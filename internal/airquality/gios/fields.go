package gios

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
)

// object is a decoded JSON object with typed, defaulting accessors. Every
// parse function reads fields through these helpers so the coercion policy
// is the same for every entity:
//
//   - numbers are accepted as JSON numbers or as numeric strings;
//   - null, missing, wrongly typed or unparseable fields yield the default;
//   - nested objects that are missing or not objects read as empty objects.
type object map[string]any

// decode parses raw bytes into a generic JSON value. Numbers are kept as
// json.Number so one out-of-range value only affects its own field. ok is
// false when the bytes are not a single valid JSON value.
func decode(data []byte) (v any, ok bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return v, true
}

// asObject returns v as an object, or false if it is not a JSON object.
func asObject(v any) (object, bool) {
	m, ok := v.(map[string]any)
	return object(m), ok
}

// str returns the string at key, or "" when absent or not a string.
func (o object) str(key string) string {
	s, _ := o[key].(string)
	return s
}

// strOr returns the string at key, or def when absent or not a string.
func (o object) strOr(key, def string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return def
}

// integer returns the integer at key. Numbers and numeric strings are read
// the same way; fractions are truncated.
func (o object) integer(key string, def int) int {
	f, ok := o.floatOK(key)
	if !ok || f > math.MaxInt32 || f < math.MinInt32 {
		return def
	}
	return int(f)
}

// float returns the floating-point value at key. Coordinates arrive as
// strings and measurements as numbers; both are accepted.
func (o object) float(key string, def float64) float64 {
	f, ok := o.floatOK(key)
	if !ok {
		return def
	}
	return f
}

// floatOK is float without a default; ok is false if no finite number could be read.
func (o object) floatOK(key string) (float64, bool) {
	var raw string
	switch v := o[key].(type) {
	case json.Number:
		raw = v.String()
	case string:
		raw = strings.TrimSpace(v)
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// isNull reports whether key is missing or explicitly null.
func (o object) isNull(key string) bool {
	v, present := o[key]
	return !present || v == nil
}

// nested returns the object at key, or an empty object when absent or not an object.
func (o object) nested(key string) object {
	if m, ok := asObject(o[key]); ok {
		return m
	}
	return object{}
}

// nestedOK is nested that also reports whether key held an object.
func (o object) nestedOK(key string) (object, bool) {
	return asObject(o[key])
}

// array returns the array at key, or nil when absent or not an array.
func (o object) array(key string) []any {
	a, _ := o[key].([]any)
	return a
}
