package transform

import (
	"encoding/json"
	"sort"

	"github.com/allfeat/massload/engine/core"
)

const (
	defaultVersion         = "1.0"
	defaultConcatSeparator = " "
	defaultRoleSeparator   = "+"
)

// ExpandType tags the row-expansion variant.
type ExpandType string

const (
	ExpandSplitRole       ExpandType = "split_role"
	ExpandMultipleColumns ExpandType = "multiple_columns"
)

// TransformationMatrix maps target fields to their transformation rules,
// with optional row expansion. Immutable once constructed; one instance is
// applied to an entire batch of rows.
type TransformationMatrix struct {
	Version      string                    `json:"version"`
	Description  string                    `json:"description,omitempty"`
	SourceFormat *SourceFormat             `json:"source_format,omitempty"`
	Transforms   map[string]FieldTransform `json:"transforms"`
	Expand       *ExpandConfig             `json:"expand,omitempty"`
}

// SourceFormat records metadata about the CSV the matrix was built for.
type SourceFormat struct {
	Delimiter  string `json:"delimiter,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	HeaderRows int    `json:"header_rows,omitempty"`
}

// ExpandConfig describes how one row fans out into several records. The
// variant is tagged by Type: split_role splits a combined-role column,
// multiple_columns emits one record per matching column group.
type ExpandConfig struct {
	Type ExpandType `json:"type"`

	// split_role
	Source    string            `json:"source,omitempty"`
	Separator string            `json:"separator,omitempty"`
	Mapping   map[string]string `json:"mapping,omitempty"`

	// multiple_columns
	Variants []ColumnVariant `json:"variants,omitempty"`
}

// ColumnVariant is one group in a multiple_columns expansion. The variant
// emits a record only when its condition column is non-blank (or when no
// condition is set).
type ColumnVariant struct {
	ConditionColumn string                    `json:"condition_column,omitempty"`
	Overrides       map[string]FieldTransform `json:"overrides,omitempty"`
}

// FieldTransform produces one output field. Exactly one value source
// applies, by precedence: single source column, then concatenated source
// columns, then constant. Operations run in order; default fills in when
// the resolved value is empty.
type FieldTransform struct {
	Source          string      `json:"source,omitempty"`
	Sources         []string    `json:"sources,omitempty"`
	ConcatSeparator string      `json:"concat_separator,omitempty"`
	Constant        any         `json:"constant,omitempty"`
	Operations      []Operation `json:"operations,omitempty"`
	Default         any         `json:"default,omitempty"`
	Required        bool        `json:"required,omitempty"`
}

// NewMatrix returns an empty matrix at the current format version.
func NewMatrix() *TransformationMatrix {
	return &TransformationMatrix{
		Version:    defaultVersion,
		Transforms: make(map[string]FieldTransform),
	}
}

// ExampleMatrix returns a small matrix covering the common field shapes
// of a French rights-society export. Shown by the CLI as a starting
// point for hand-written matrices.
func ExampleMatrix() *TransformationMatrix {
	m := NewMatrix()
	m.Description = "Example: rights-society export to MIDDS flat records"
	m.Transforms["iswc"] = FieldTransform{
		Source: "Code ISWC",
		Operations: []Operation{
			{Type: OpTrim},
			{Type: OpReplace, Pattern: "[-. ]", Value: ""},
			{Type: OpEnsurePrefix, Value: "T"},
		},
		Required: true,
	}
	m.Transforms["title"] = FieldTransform{
		Source:     "Titre",
		Operations: []Operation{{Type: OpTrim}},
		Required:   true,
	}
	m.Transforms["creatorRole"] = FieldTransform{
		Source: "Role",
		Operations: []Operation{
			{Type: OpTrim},
			{Type: OpUppercase},
			{
				Type:            OpMap,
				Mapping:         map[string]string{"CA": "Composer", "A": "Author", "AR": "Arranger"},
				CaseInsensitive: true,
			},
		},
		Default:  "Composer",
		Required: true,
	}
	m.Transforms["creatorIpi"] = FieldTransform{
		Source:     "IPI",
		Operations: []Operation{{Type: OpDigitsOnly}, {Type: OpToNumber}},
		Required:   true,
	}
	m.Transforms["instrumental"] = FieldTransform{
		Source:     "Instrumental",
		Operations: []Operation{{Type: OpToBoolean}},
	}
	return m
}

// MatrixFromJSON parses a matrix from its wire form.
func MatrixFromJSON(data []byte) (*TransformationMatrix, error) {
	var m TransformationMatrix
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, core.NewError(err, "MATRIX_PARSE_ERROR", nil)
	}
	if m.Version == "" {
		m.Version = defaultVersion
	}
	return &m, nil
}

// ToJSON renders the matrix in its wire form.
func (m *TransformationMatrix) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, core.NewError(err, "MATRIX_ENCODE_ERROR", nil)
	}
	return data, nil
}

// SourceColumns lists every CSV column the matrix reads, including those
// referenced by the expansion config, sorted and deduplicated.
func (m *TransformationMatrix) SourceColumns() []string {
	var columns []string
	for _, t := range m.Transforms {
		columns = append(columns, t.SourceColumnsOf()...)
	}
	if m.Expand != nil {
		switch m.Expand.Type {
		case ExpandSplitRole:
			if m.Expand.Source != "" {
				columns = append(columns, m.Expand.Source)
			}
		case ExpandMultipleColumns:
			for _, v := range m.Expand.Variants {
				if v.ConditionColumn != "" {
					columns = append(columns, v.ConditionColumn)
				}
				for _, t := range v.Overrides {
					columns = append(columns, t.SourceColumnsOf()...)
				}
			}
		}
	}
	sort.Strings(columns)
	deduped := columns[:0]
	for i, c := range columns {
		if i == 0 || columns[i-1] != c {
			deduped = append(deduped, c)
		}
	}
	return deduped
}

// TargetFields lists the output fields the matrix populates.
func (m *TransformationMatrix) TargetFields() []string {
	fields := make([]string, 0, len(m.Transforms))
	for k := range m.Transforms {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// ValidateHeaders returns the source columns missing from the given CSV
// headers. An empty result means every referenced column is present.
func (m *TransformationMatrix) ValidateHeaders(headers []string) []string {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}
	var missing []string
	for _, col := range m.SourceColumns() {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// SourceColumnsOf lists the CSV columns this single transform reads.
func (t *FieldTransform) SourceColumnsOf() []string {
	var result []string
	if t.Source != "" {
		result = append(result, t.Source)
	}
	result = append(result, t.Sources...)
	return result
}

func (t *FieldTransform) concatSeparator() string {
	if t.ConcatSeparator == "" {
		return defaultConcatSeparator
	}
	return t.ConcatSeparator
}

func (e *ExpandConfig) roleSeparator() string {
	if e.Separator == "" {
		return defaultRoleSeparator
	}
	return e.Separator
}
