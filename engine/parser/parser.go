// Package parser converts raw CSV bytes into rows, auto-detecting the
// file encoding and column delimiter. No domain logic lives here.
package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/allfeat/massload/engine/core"
)

// CsvError reports a parse failure with line context.
type CsvError struct {
	Line    int
	Column  string
	Value   string
	Message string
}

func (e *CsvError) Error() string {
	switch {
	case e.Column != "" && e.Value != "":
		return fmt.Sprintf("line %d, column %q (value %q): %s", e.Line, e.Column, e.Value, e.Message)
	case e.Column != "":
		return fmt.Sprintf("line %d, column %q: %s", e.Line, e.Column, e.Message)
	default:
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
}

// Result carries the parsed rows plus the detected format metadata.
type Result struct {
	Rows      []core.Row
	Encoding  string
	Delimiter string
	Headers   []string
}

// Parse decodes CSV bytes with auto-detected encoding and delimiter.
func Parse(data []byte) (*Result, error) {
	encoding := DetectEncoding(data)
	content := decode(data, encoding)
	delimiter := DetectDelimiter(content)
	return parseContent(content, delimiter, encoding)
}

// ParseWithDelimiter decodes CSV bytes with an explicit delimiter.
func ParseWithDelimiter(data []byte, delimiter string) (*Result, error) {
	encoding := DetectEncoding(data)
	return parseContent(decode(data, encoding), delimiter, encoding)
}

// DetectEncoding classifies raw bytes as utf-8 or windows-1252. French
// rights-society exports are routinely Windows-1252; anything that is not
// valid UTF-8 is treated as such.
func DetectEncoding(data []byte) string {
	if utf8.Valid(data) {
		return "utf-8"
	}
	return "windows-1252"
}

func decode(data []byte, encoding string) string {
	if encoding == "windows-1252" {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err == nil {
			return string(decoded)
		}
	}
	return string(data)
}

// DetectDelimiter counts candidate separators in the first line and picks
// the most frequent one. Semicolon is the default when nothing stands out.
func DetectDelimiter(content string) string {
	firstLine, _, _ := strings.Cut(content, "\n")
	best := ";"
	bestCount := 0
	for _, sep := range []string{";", ",", "\t", "|"} {
		if count := strings.Count(firstLine, sep); count > bestCount {
			bestCount = count
			best = sep
		}
	}
	return best
}

// parseContent splits lines on the delimiter. Values and headers are
// trimmed and stripped of surrounding quotes; blank lines are skipped;
// short rows pad missing cells with "" and extra cells are ignored.
func parseContent(content, delimiter, encoding string) (*Result, error) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, &CsvError{Line: 1, Message: "empty CSV file"}
	}

	rawHeaders := strings.Split(lines[0], delimiter)
	headers := make([]string, 0, len(rawHeaders))
	for _, h := range rawHeaders {
		headers = append(headers, cleanCell(h))
	}

	var rows []core.Row
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		values := strings.Split(line, delimiter)
		row := make(core.Row, len(headers))
		for i, header := range headers {
			if i < len(values) {
				row[header] = cleanCell(values[i])
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}

	return &Result{
		Rows:      rows,
		Encoding:  encoding,
		Delimiter: delimiter,
		Headers:   headers,
	}, nil
}

func cleanCell(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}
