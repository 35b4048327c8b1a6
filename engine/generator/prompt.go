package generator

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/allfeat/massload/engine/core"
)

//go:embed schemas/transformation-matrix-schema.json
var matrixSchemaJSON string

// Columns whose every unique value must reach the model so it can build
// complete mapping tables.
var mappingColumnHints = []string{"role", "genre", "type", "instrumental", "language", "société"}

const (
	highCardinalityLimit = 30
	sampleSize           = 15
)

// systemPrompt instructs the model to emit a matrix matching the embedded
// wire schema, with the field rules of the flat MIDDS format.
func systemPrompt() string {
	return fmt.Sprintf(`You are a data transformation expert. Your task is to analyze CSV data and generate a transformation matrix that converts raw CSV columns into standardized MIDDS (Music Industry Data Description Standard) format.

## Your Mission

Given:
1. A preview of CSV data (as JSON objects)
2. The MIDDS flat schema (target format)
3. The transformation matrix JSON schema (your output format)

You must return a valid JSON transformation matrix that maps CSV columns to MIDDS fields.

## CRITICAL: Output Format

You MUST return ONLY valid JSON matching this schema EXACTLY:

`+"```json\n%s\n```"+`

## MIDDS Field Requirements

### Required fields (must be mapped):
- `+"`iswc`"+`: International Standard Musical Work Code. Format: T + 10 digits (e.g., "T1234567890")
- `+"`title`"+`: Title of the work (string, max 256 chars)
- `+"`creatorIpi`"+`: IPI code (integer, 9-11 digits)
- `+"`creatorRole`"+`: Must be one of: "Author", "Composer", "Arranger", "Adapter", "Publisher"

### Optional fields:
- `+"`creationYear`"+`: 4-digit year (integer)
- `+"`instrumental`"+`: boolean
- `+"`language`"+`: Must be one of: "English", "French", "Spanish", "German", "Italian", "Portuguese", "Russian", "Chinese", "Japanese", "Korean", "Arabic", "Hindi", "Dutch", "Swedish", "Norwegian", "Finnish", "Polish", "Turkish", "Hebrew", "Greek", "Latin", "Esperanto"
- `+"`bpm`"+`: beats per minute (integer)
- `+"`key`"+`: Musical key (e.g., "Am", "C", "Fs", "Bb", "Dm", etc.)
- `+"`workType`"+`: Type of work - MUST be "Original" or null. Map any column containing work type info.
- `+"`creatorIsni`"+`: 16-character ISNI code (format: 16 digits/X)
- `+"`opus`, `catalogNumber`, `numberOfVoices`"+`: For classical works

## Work Type Mapping

If the CSV has a column for work type (e.g., "Work Type", "Type", "Type d'oeuvre"), map it to `+"`workType`"+`:
- "Original", "Orig", "O", "original" → "Original"
- "Medley", "Mashup", "Adaptation", or any other value → null (not supported in flat format)
- Empty or missing → null

## Role Code Mapping

Common role codes to map:
- CA, C+A → Both Composer and Author (map to "Composer" for now)
- C, Comp, Komponist → "Composer"
- A, Autor, Textdichter, Lyricist → "Author"
- AR, Arr, Arrangeur → "Arranger"
- AD, Adapt → "Adapter"
- E, Ed, Pub, Publisher, Verlag, Editeur → "Publisher"

## Rules

1. Use ONLY operations defined in the schema: trim, uppercase, lowercase, replace, pad_start, pad_end, extract_year, ensure_prefix, ensure_suffix, map, split, to_boolean, to_number, substring, alphanumeric, digits_only
2. Do NOT invent new operations
3. Use exact CSV column names from the preview (case-sensitive)
4. Always use trim for text fields
5. Always use to_number for IPI codes
6. Use map operation for role codes, language translations, and workType
7. For ISWC: remove punctuation with replace, ensure "T" prefix with ensure_prefix
8. For workType: use map to convert CSV values to "Original" (only valid value) or omit invalid types
9. MAP ALL COLUMNS that correspond to MIDDS fields - do not skip any mappable columns!
10. Return ONLY the JSON object, no explanations or markdown`, matrixSchemaJSON)
}

// userPrompt combines the row preview, per-column unique values from the
// whole file, and the target flat schema.
func userPrompt(preview, allRows []core.Row, flatSchema []byte) string {
	previewJSON, _ := json.MarshalIndent(preview, "", "  ")
	return fmt.Sprintf(`## CSV Data Preview (%d rows shown, %d total)

`+"```json\n%s\n```"+`

## ALL Unique Values per Column (from %d rows - IMPORTANT for mapping)

%s

## Target MIDDS Flat Schema

`+"```json\n%s\n```"+`

## Task

Analyze the CSV columns and generate a transformation matrix.
Map ALL unique values you see above (especially for Role column - map ALL role codes!).

Return ONLY the JSON object matching the transformation matrix schema. No explanations.`,
		len(preview), len(allRows), previewJSON, len(allRows), extractUniqueValues(allRows), flatSchema)
}

// extractUniqueValues summarizes every column's distinct string values.
// Columns that look like mapping tables (role, genre, language...) list
// every value; other high-cardinality columns show a sample.
func extractUniqueValues(rows []core.Row) string {
	columnValues := make(map[string]map[string]struct{})
	for _, row := range rows {
		for col, v := range row {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if columnValues[col] == nil {
				columnValues[col] = make(map[string]struct{})
			}
			columnValues[col][s] = struct{}{}
		}
	}

	columns := make([]string, 0, len(columnValues))
	for col := range columnValues {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var b strings.Builder
	for _, col := range columns {
		values := make([]string, 0, len(columnValues[col]))
		for v := range columnValues[col] {
			values = append(values, v)
		}
		sort.Strings(values)

		var display string
		switch {
		case isMappingColumn(col) || len(values) <= highCardinalityLimit:
			display = strings.Join(values, ", ")
			if len(values) > 50 {
				display = fmt.Sprintf("%s (%d unique values)", display, len(values))
			}
		default:
			display = fmt.Sprintf("%s, ... (%d unique - high cardinality, sample shown)",
				strings.Join(values[:sampleSize], ", "), len(values))
		}
		fmt.Fprintf(&b, "- **%s**: %s\n", col, display)
	}
	return b.String()
}

func isMappingColumn(col string) bool {
	lower := strings.ToLower(col)
	for _, hint := range mappingColumnHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// extractJSON pulls the matrix JSON out of a model response that may wrap
// it in markdown fences or prose.
func extractJSON(text string) string {
	if start := strings.Index(text, "```json"); start >= 0 {
		rest := text[start+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if start := strings.Index(text, "```"); start >= 0 {
		rest := text[start+3:]
		if nl := strings.Index(rest, "\n"); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			return text[start : end+1]
		}
	}
	return text
}
