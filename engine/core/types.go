package core

import "strconv"

// Row is one parsed CSV line: column name -> raw value. Values are the
// loosely typed JSON scalars produced by the parser (strings on input,
// but operations may thread numbers, booleans, arrays and nulls through).
type Row map[string]any

// Record is one transformed output object: target field -> value. Its
// shape is whatever fields the applied matrix populated.
type Record map[string]any

// Get returns the value for a column, or nil when absent.
func (r Row) Get(column string) any {
	if r == nil {
		return nil
	}
	return r[column]
}

// AsString returns a scalar value rendered as a string. Non-scalar values
// (arrays, objects, nil) report ok=false.
func AsString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		if s {
			return "true", true
		}
		return "false", true
	case int:
		return strconv.FormatInt(int64(s), 10), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	default:
		return "", false
	}
}

// IsEmptyValue reports whether a value counts as "empty" for default and
// required-field handling: nil, blank-after-trim string, empty array or
// empty object. Numbers and booleans are never empty.
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return isBlank(t)
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case Row:
		return len(t) == 0
	case Record:
		return len(t) == 0
	default:
		return false
	}
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
