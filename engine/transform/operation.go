package transform

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/allfeat/massload/engine/core"
)

// OpType identifies an operation variant.
type OpType string

const (
	OpTrim         OpType = "trim"
	OpUppercase    OpType = "uppercase"
	OpLowercase    OpType = "lowercase"
	OpReplace      OpType = "replace"
	OpPadStart     OpType = "pad_start"
	OpPadEnd       OpType = "pad_end"
	OpExtractYear  OpType = "extract_year"
	OpEnsurePrefix OpType = "ensure_prefix"
	OpEnsureSuffix OpType = "ensure_suffix"
	OpMap          OpType = "map"
	OpSplit        OpType = "split"
	OpToBoolean    OpType = "to_boolean"
	OpToNumber     OpType = "to_number"
	OpSubstring    OpType = "substring"
	OpAlphanumeric OpType = "alphanumeric"
	OpDigitsOnly   OpType = "digits_only"
)

var yearPattern = regexp.MustCompile(`\d{4}`)

// Operation is a pure, total, atomic value transform. The variant is tagged
// by Type; only the parameters belonging to that variant are populated on
// the wire. Apply never fails: invalid input degrades to a null or empty
// result instead of raising.
type Operation struct {
	Type OpType `json:"type"`

	// replace
	Pattern string `json:"pattern,omitempty"`
	// replace replacement, ensure_prefix / ensure_suffix value
	Value string `json:"value,omitempty"`

	// pad_start / pad_end target length; substring slice length
	Length *int `json:"length,omitempty"`
	// pad character, first rune used (default "0")
	Char string `json:"char,omitempty"`

	// map
	Mapping         map[string]string `json:"mapping,omitempty"`
	CaseInsensitive bool              `json:"case_insensitive,omitempty"`
	DefaultUnmapped *string           `json:"default_unmapped,omitempty"`

	// split
	Separator string `json:"separator,omitempty"`

	// to_boolean
	TrueValues []string `json:"true_values,omitempty"`

	// substring
	Start int `json:"start,omitempty"`
}

func defaultTrueValues() []string {
	return []string{"true", "1", "yes", "oui", "o", "y"}
}

// Apply runs the operation on a value. Non-scalar input (arrays, objects,
// nulls) passes through unchanged unless the variant states otherwise.
func (o *Operation) Apply(value any) any {
	switch o.Type {
	case OpTrim:
		return o.applyTrim(value)
	case OpUppercase:
		return o.applyUppercase(value)
	case OpLowercase:
		return o.applyLowercase(value)
	case OpReplace:
		return o.applyReplace(value)
	case OpPadStart:
		return o.applyPad(value, true)
	case OpPadEnd:
		return o.applyPad(value, false)
	case OpExtractYear:
		return o.applyExtractYear(value)
	case OpEnsurePrefix:
		return o.applyEnsurePrefix(value)
	case OpEnsureSuffix:
		return o.applyEnsureSuffix(value)
	case OpMap:
		return o.applyMap(value)
	case OpSplit:
		return o.applySplit(value)
	case OpToBoolean:
		return o.applyToBoolean(value)
	case OpToNumber:
		return o.applyToNumber(value)
	case OpSubstring:
		return o.applySubstring(value)
	case OpAlphanumeric:
		return o.applyFilter(value, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) })
	case OpDigitsOnly:
		return o.applyFilter(value, func(r rune) bool { return r >= '0' && r <= '9' })
	default:
		return value
	}
}

func (o *Operation) applyTrim(value any) any {
	s, ok := core.AsString(value)
	if !ok {
		return value
	}
	return strings.TrimSpace(s)
}

func (o *Operation) applyUppercase(value any) any {
	s, ok := core.AsString(value)
	if !ok {
		return value
	}
	return strings.ToUpper(s)
}

func (o *Operation) applyLowercase(value any) any {
	s, ok := core.AsString(value)
	if !ok {
		return value
	}
	return strings.ToLower(s)
}

// applyReplace runs a regex replace-all. An invalid pattern is a no-op.
func (o *Operation) applyReplace(value any) any {
	s, ok := core.AsString(value)
	if !ok {
		return value
	}
	re, err := regexp.Compile(o.Pattern)
	if err != nil {
		return value
	}
	return re.ReplaceAllString(s, o.Value)
}

func (o *Operation) applyPad(value any, atStart bool) any {
	s, ok := core.AsString(value)
	if !ok {
		return value
	}
	length := 0
	if o.Length != nil {
		length = *o.Length
	}
	if len(s) >= length {
		return s
	}
	pad := '0'
	for _, r := range o.Char {
		pad = r
		break
	}
	padding := strings.Repeat(string(pad), length-len(s))
	if atStart {
		return padding + s
	}
	return s + padding
}

// applyExtractYear finds the first run of 4 consecutive digits and parses
// it as an integer. No match yields null.
func (o *Operation) applyExtractYear(value any) any {
	s, ok := core.AsString(value)
	if !ok {
		return value
	}
	match := yearPattern.FindString(s)
	if match == "" {
		return nil
	}
	year, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		return nil
	}
	return year
}

func (o *Operation) applyEnsurePrefix(value any) any {
	s, ok := core.AsString(value)
	if !ok {
		return value
	}
	if strings.HasPrefix(s, o.Value) {
		return s
	}
	return o.Value + s
}

func (o *Operation) applyEnsureSuffix(value any) any {
	s, ok := core.AsString(value)
	if !ok {
		return value
	}
	if strings.HasSuffix(s, o.Value) {
		return s
	}
	return s + o.Value
}

// applyMap looks the value up in the configured table. Unmapped input
// yields DefaultUnmapped when set, otherwise an empty string so the field
// falls through to default/required handling.
func (o *Operation) applyMap(value any) any {
	s, ok := core.AsString(value)
	if !ok {
		return value
	}
	if o.CaseInsensitive {
		lower := strings.ToLower(s)
		for k, v := range o.Mapping {
			if strings.ToLower(k) == lower {
				return v
			}
		}
	} else if v, found := o.Mapping[s]; found {
		return v
	}
	if o.DefaultUnmapped != nil {
		return *o.DefaultUnmapped
	}
	return ""
}

func (o *Operation) applySplit(value any) any {
	s, ok := core.AsString(value)
	if !ok {
		return value
	}
	sep := o.Separator
	if sep == "" {
		sep = ","
	}
	parts := strings.Split(s, sep)
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func (o *Operation) applyToBoolean(value any) any {
	if b, isBool := value.(bool); isBool {
		return b
	}
	s, ok := core.AsString(value)
	if !ok {
		return false
	}
	truthy := o.TrueValues
	if len(truthy) == 0 {
		truthy = defaultTrueValues()
	}
	lower := strings.ToLower(s)
	for _, tv := range truthy {
		if strings.ToLower(tv) == lower {
			return true
		}
	}
	return false
}

// applyToNumber strips everything but digits, preserving a leading sign,
// and parses the result as an integer. No digits yields null.
func (o *Operation) applyToNumber(value any) any {
	switch value.(type) {
	case int, int64, float64:
		return value
	}
	s, ok := core.AsString(value)
	if !ok {
		return nil
	}
	negative := strings.HasPrefix(strings.TrimSpace(s), "-")
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return nil
	}
	numStr := digits.String()
	if negative {
		numStr = "-" + numStr
	}
	n, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return nil
	}
	return n
}

// applySubstring slices by characters, not bytes; out-of-range clamps to empty.
func (o *Operation) applySubstring(value any) any {
	s, ok := core.AsString(value)
	if !ok {
		return value
	}
	runes := []rune(s)
	start := o.Start
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		return ""
	}
	end := len(runes)
	if o.Length != nil {
		end = min(start+*o.Length, len(runes))
	}
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}

// OperationsHelp describes every operation variant and its parameters,
// for CLI help output.
func OperationsHelp() string {
	return `Available transformation operations:

| Operation | Description | Parameters |
|-----------|-------------|------------|
| trim | Remove leading/trailing whitespace | - |
| uppercase | Convert to uppercase | - |
| lowercase | Convert to lowercase | - |
| replace | Regex pattern replacement | pattern: regex, value: replacement |
| pad_start | Pad string at start | length: target length, char: pad character (default "0") |
| pad_end | Pad string at end | length: target length, char: pad character (default "0") |
| extract_year | Extract 4-digit year from date | - |
| ensure_prefix | Add prefix if not present | value: prefix string |
| ensure_suffix | Add suffix if not present | value: suffix string |
| map | Map values using lookup table | mapping: {source: target}, case_insensitive: bool, default_unmapped: fallback |
| split | Split into array | separator: split char (default ",") |
| to_boolean | Convert to boolean | true_values: list of truthy strings |
| to_number | Convert to integer | - |
| substring | Extract substring | start: start index, length: optional length |
| alphanumeric | Keep only alphanumeric chars | - |
| digits_only | Keep only digits | - |

Example operations in JSON:
[
  {"type": "trim"},
  {"type": "replace", "pattern": "[-. ]", "value": ""},
  {"type": "map", "mapping": {"CA": "Composer", "A": "Author"}, "case_insensitive": true},
  {"type": "to_number"},
  {"type": "ensure_prefix", "value": "T"}
]`
}

func (o *Operation) applyFilter(value any, keep func(rune) bool) any {
	s, ok := core.AsString(value)
	if !ok {
		return value
	}
	var b strings.Builder
	for _, r := range s {
		if keep(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
