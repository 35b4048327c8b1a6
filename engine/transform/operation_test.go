package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(i int) *int { return &i }

func TestOperation_Strings(t *testing.T) {
	t.Run("Should trim surrounding whitespace", func(t *testing.T) {
		op := Operation{Type: OpTrim}
		assert.Equal(t, "hello", op.Apply("  hello \t"))
	})

	t.Run("Should convert case", func(t *testing.T) {
		upper := Operation{Type: OpUppercase}
		lower := Operation{Type: OpLowercase}
		assert.Equal(t, "CHANSON", upper.Apply("chanson"))
		assert.Equal(t, "chanson", lower.Apply("CHANSON"))
	})

	t.Run("Should regex-replace all matches", func(t *testing.T) {
		op := Operation{Type: OpReplace, Pattern: "[-. ]", Value: ""}
		assert.Equal(t, "T1234567890", op.Apply("T-123.456.789-0"))
	})

	t.Run("Should no-op on an invalid pattern", func(t *testing.T) {
		op := Operation{Type: OpReplace, Pattern: "[unclosed", Value: "x"}
		assert.Equal(t, "input", op.Apply("input"))
	})

	t.Run("Should pad to the target byte length", func(t *testing.T) {
		start := Operation{Type: OpPadStart, Length: intPtr(5)}
		end := Operation{Type: OpPadEnd, Length: intPtr(5), Char: "x"}
		assert.Equal(t, "00042", start.Apply("42"))
		assert.Equal(t, "42xxx", end.Apply("42"))
		assert.Equal(t, "123456", start.Apply("123456"))
	})

	t.Run("Should enforce prefix and suffix idempotently", func(t *testing.T) {
		prefix := Operation{Type: OpEnsurePrefix, Value: "T"}
		suffix := Operation{Type: OpEnsureSuffix, Value: ".mp3"}
		assert.Equal(t, "T1234567890", prefix.Apply("1234567890"))
		assert.Equal(t, "T1234567890", prefix.Apply("T1234567890"))
		assert.Equal(t, "song.mp3", suffix.Apply("song"))
		assert.Equal(t, "song.mp3", suffix.Apply("song.mp3"))
	})

	t.Run("Should slice substring by characters with clamping", func(t *testing.T) {
		op := Operation{Type: OpSubstring, Start: 2, Length: intPtr(3)}
		assert.Equal(t, "cde", op.Apply("abcdef"))
		assert.Equal(t, "cd", op.Apply("abcd"))
		assert.Equal(t, "", op.Apply("a"))

		open := Operation{Type: OpSubstring, Start: 2}
		assert.Equal(t, "cdef", open.Apply("abcdef"))
	})

	t.Run("Should treat out-of-range substring bounds as clamps, never panic", func(t *testing.T) {
		negStart := Operation{Type: OpSubstring, Start: -1}
		assert.Equal(t, "hello", negStart.Apply("hello"))

		negStartLen := Operation{Type: OpSubstring, Start: -3, Length: intPtr(2)}
		assert.Equal(t, "he", negStartLen.Apply("hello"))

		negLen := Operation{Type: OpSubstring, Start: 1, Length: intPtr(-2)}
		assert.Equal(t, "", negLen.Apply("hello"))
	})

	t.Run("Should filter characters", func(t *testing.T) {
		alnum := Operation{Type: OpAlphanumeric}
		digits := Operation{Type: OpDigitsOnly}
		assert.Equal(t, "abc123", alnum.Apply("a-b c/1.2,3!"))
		assert.Equal(t, "123", digits.Apply("a-b c/1.2,3!"))
	})
}

func TestOperation_Coercions(t *testing.T) {
	t.Run("Should extract the first four-digit year", func(t *testing.T) {
		op := Operation{Type: OpExtractYear}
		assert.Equal(t, int64(2024), op.Apply("15/03/2024"))
		assert.Nil(t, op.Apply("no date"))
	})

	t.Run("Should strip non-digits when coercing to number", func(t *testing.T) {
		op := Operation{Type: OpToNumber}
		assert.Equal(t, int64(123456789), op.Apply("123-456-789"))
		assert.Equal(t, int64(-42), op.Apply("-4 2"))
		assert.Nil(t, op.Apply(""))
		assert.Nil(t, op.Apply("abc"))
	})

	t.Run("Should pass numbers through to_number unchanged", func(t *testing.T) {
		op := Operation{Type: OpToNumber}
		assert.Equal(t, int64(7), op.Apply(int64(7)))
		assert.Equal(t, 3.5, op.Apply(3.5))
	})

	t.Run("Should coerce truthy strings to booleans", func(t *testing.T) {
		op := Operation{Type: OpToBoolean}
		assert.Equal(t, true, op.Apply("oui"))
		assert.Equal(t, true, op.Apply("YES"))
		assert.Equal(t, false, op.Apply("non"))
		assert.Equal(t, true, op.Apply(true))
	})

	t.Run("Should honor custom true values", func(t *testing.T) {
		op := Operation{Type: OpToBoolean, TrueValues: []string{"x"}}
		assert.Equal(t, true, op.Apply("x"))
		assert.Equal(t, false, op.Apply("oui"))
	})

	t.Run("Should split into trimmed parts", func(t *testing.T) {
		op := Operation{Type: OpSplit}
		assert.Equal(t, []any{"a", "b", "c"}, op.Apply("a, b ,c"))

		pipe := Operation{Type: OpSplit, Separator: "|"}
		assert.Equal(t, []any{"a", "b"}, pipe.Apply("a | b"))
	})
}

func TestOperation_Mapping(t *testing.T) {
	mapping := map[string]string{"CA": "Composer", "A": "Author"}

	t.Run("Should map known values", func(t *testing.T) {
		op := Operation{Type: OpMap, Mapping: mapping}
		assert.Equal(t, "Composer", op.Apply("CA"))
	})

	t.Run("Should match case-insensitively when configured", func(t *testing.T) {
		op := Operation{Type: OpMap, Mapping: mapping, CaseInsensitive: true}
		assert.Equal(t, "Author", op.Apply("a"))
	})

	t.Run("Should fall back for unmapped values", func(t *testing.T) {
		fallback := "Unknown"
		withDefault := Operation{Type: OpMap, Mapping: mapping, DefaultUnmapped: &fallback}
		withoutDefault := Operation{Type: OpMap, Mapping: mapping}
		assert.Equal(t, "Unknown", withDefault.Apply("ZZ"))
		assert.Equal(t, "", withoutDefault.Apply("ZZ"))
	})
}

func TestOperation_NonScalars(t *testing.T) {
	t.Run("Should pass arrays and objects through string operations", func(t *testing.T) {
		arr := []any{"a", "b"}
		obj := map[string]any{"k": "v"}
		for _, op := range []Operation{
			{Type: OpTrim},
			{Type: OpUppercase},
			{Type: OpReplace, Pattern: "a", Value: "b"},
			{Type: OpSubstring, Start: 1},
			{Type: OpAlphanumeric},
		} {
			assert.Equal(t, arr, op.Apply(arr), "op %s on array", op.Type)
			assert.Equal(t, obj, op.Apply(obj), "op %s on object", op.Type)
		}
	})

	t.Run("Should render numeric input as text for string operations", func(t *testing.T) {
		op := Operation{Type: OpPadStart, Length: intPtr(4)}
		assert.Equal(t, "0042", op.Apply(int64(42)))
	})
}

func TestOperationsHelp(t *testing.T) {
	t.Run("Should document every operation variant", func(t *testing.T) {
		help := OperationsHelp()
		for _, op := range []OpType{
			OpTrim, OpUppercase, OpLowercase, OpReplace, OpPadStart, OpPadEnd,
			OpExtractYear, OpEnsurePrefix, OpEnsureSuffix, OpMap, OpSplit,
			OpToBoolean, OpToNumber, OpSubstring, OpAlphanumeric, OpDigitsOnly,
		} {
			assert.Contains(t, help, string(op))
		}
	})
}
