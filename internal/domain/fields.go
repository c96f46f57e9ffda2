package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// maxInt64Float is 2^63, the smallest float64 that does not fit in an int64.
const maxInt64Float = float64(1 << 63)

// fields reads typed values out of a decoded JSON object and
// collects an Issue for every field that is missing or out of range.
type fields struct {
	raw    map[string]json.RawMessage
	issues []Issue
}

func (f *fields) fail(path, code, message string) {
	f.issues = append(f.issues, Issue{Path: path, Code: code, Message: message})
}

// value decodes the named field, recording an issue when it is absent or null.
func (f *fields) value(name string) (any, bool) {
	raw, ok := f.raw[name]
	if !ok {
		f.fail(name, IssueRequired, "Required")
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || v == nil {
		f.fail(name, IssueInvalidType, "Expected a value, received null")
		return nil, false
	}
	return v, true
}

func (f *fields) numeric(name string) (json.Number, bool) {
	v, ok := f.value(name)
	if !ok {
		return "", false
	}
	n, ok := v.(json.Number)
	if !ok {
		f.fail(name, IssueInvalidType, "Expected number, received "+jsonTypeName(v))
		return "", false
	}
	return n, true
}

// integer reads a whole number no smaller than min.
// Whole-valued floats such as 3.0 are accepted; values outside int64 are not.
func (f *fields) integer(name string, min int64) int64 {
	n, ok := f.numeric(name)
	if !ok {
		return 0
	}
	i, err := n.Int64()
	if err != nil {
		fl, ferr := n.Float64()
		switch {
		case ferr == nil && fl != math.Trunc(fl):
			f.fail(name, IssueInvalidType, "Expected integer, received float")
			return 0
		case fl >= maxInt64Float:
			f.fail(name, IssueTooBig, fmt.Sprintf("Number must be less than or equal to %d", int64(math.MaxInt64)))
			return 0
		case fl < -maxInt64Float:
			f.fail(name, IssueTooSmall, fmt.Sprintf("Number must be greater than or equal to %d", min))
			return 0
		case ferr != nil:
			f.fail(name, IssueInvalidType, "Expected number, received "+string(n))
			return 0
		}
		i = int64(fl)
	}
	if i < min {
		f.fail(name, IssueTooSmall, fmt.Sprintf("Number must be greater than or equal to %d", min))
	}
	return i
}

// atLeast reads a number no smaller than min.
func (f *fields) atLeast(name string, min float64) float64 {
	n, ok := f.numeric(name)
	if !ok {
		return 0
	}
	v, err := n.Float64()
	if err != nil {
		f.fail(name, IssueInvalidType, "Expected number, received "+string(n))
		return 0
	}
	if v < min {
		f.fail(name, IssueTooSmall, "Number must be greater than or equal to "+formatFloat(min))
	}
	return v
}

// between reads a number in the closed range [min, max].
func (f *fields) between(name string, min, max float64) float64 {
	n, ok := f.numeric(name)
	if !ok {
		return 0
	}
	v, err := n.Float64()
	if err != nil {
		f.fail(name, IssueInvalidType, "Expected number, received "+string(n))
		return 0
	}
	switch {
	case v < min:
		f.fail(name, IssueTooSmall, "Number must be greater than or equal to "+formatFloat(min))
	case v > max:
		f.fail(name, IssueTooBig, "Number must be less than or equal to "+formatFloat(max))
	}
	return v
}

// flag reads a number that must be exactly 0 or 1.
func (f *fields) flag(name string) int {
	n, ok := f.numeric(name)
	if !ok {
		return 0
	}
	v, err := n.Float64()
	if err == nil {
		switch v {
		case 0:
			return 0
		case 1:
			return 1
		}
	}
	f.fail(name, IssueInvalidValue, "Invalid literal value, expected 0 or 1")
	return 0
}

func (f *fields) str(name string) (string, bool) {
	v, ok := f.value(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		f.fail(name, IssueInvalidType, "Expected string, received "+jsonTypeName(v))
		return "", false
	}
	return s, true
}

// timestamp reads a string that parses as a date-time.
func (f *fields) timestamp(name string) string {
	s, ok := f.str(name)
	if !ok {
		return ""
	}
	if _, ok := parseTimestamp(s); !ok {
		f.fail(name, IssueInvalidDate, "Invalid date format")
	}
	return s
}

// enum reads a string restricted to allowed.
func (f *fields) enum(name string, allowed ...string) string {
	s, ok := f.str(name)
	if !ok {
		return ""
	}
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	f.fail(name, IssueInvalidEnum, fmt.Sprintf("Invalid enum value. Expected '%s', received '%s'",
		strings.Join(allowed, "' | '"), s))
	return s
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case json.Number:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
