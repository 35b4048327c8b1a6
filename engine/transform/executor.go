package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/allfeat/massload/engine/core"
)

// Skip reason codes reported alongside successful output.
const (
	SkipReasonMissingRequired = "missing_required"
	SkipReasonEmptyRecord     = "empty_record"
)

// Target field overridden when a combined-role column is split.
const roleTargetField = "creatorRole"

// Result of applying a matrix to a batch of rows. Partial success is the
// normal case: records, errors and skips are all collected.
type Result struct {
	Records []core.Record `json:"records"`
	Errors  []RowError    `json:"errors"`
	Skipped []SkippedRow  `json:"skipped"`
}

// RowError reports a per-field failure during transformation.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SkippedRow reports a row that produced no record, with a stable reason
// code and, for missing_required, the list of absent fields.
type SkippedRow struct {
	Row           int      `json:"row"`
	Reason        string   `json:"reason"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// OK reports whether the batch completed without per-field errors.
func (r *Result) OK() bool {
	return len(r.Errors) == 0
}

// Summary renders batch statistics for logs.
func (r *Result) Summary() string {
	return fmt.Sprintf("transformed %d records, %d errors, %d skipped",
		len(r.Records), len(r.Errors), len(r.Skipped))
}

// Execute applies a matrix to a batch of rows: each row is first expanded
// according to the matrix's expand config, then every expanded row is
// resolved field by field. Rows are never mutated.
func Execute(rows []core.Row, matrix *TransformationMatrix) *Result {
	result := &Result{Records: []core.Record{}}
	for rowIdx, row := range rows {
		for _, exp := range expandRow(row, matrix) {
			record, skip := resolveRow(exp.row, matrix, rowIdx, exp.overrides)
			if skip != nil {
				result.Skipped = append(result.Skipped, *skip)
				continue
			}
			result.Records = append(result.Records, record)
		}
	}
	return result
}

type expandedRow struct {
	row       core.Row
	overrides map[string]FieldTransform
}

func expandRow(row core.Row, matrix *TransformationMatrix) []expandedRow {
	if matrix.Expand == nil {
		return []expandedRow{{row: row}}
	}
	switch matrix.Expand.Type {
	case ExpandSplitRole:
		return expandSplitRole(row, matrix.Expand)
	case ExpandMultipleColumns:
		return expandMultipleColumns(row, matrix.Expand)
	default:
		return []expandedRow{{row: row}}
	}
}

// expandSplitRole fans a combined-role value ("C+A") out into one row per
// token. Each token is mapped through the configured table (unmapped
// tokens pass verbatim), written back to the source column, and pinned as
// a constant on the role target field.
func expandSplitRole(row core.Row, cfg *ExpandConfig) []expandedRow {
	raw, _ := row.Get(cfg.Source).(string)
	sep := cfg.roleSeparator()
	if raw == "" || sep == "" {
		return []expandedRow{{row: row}}
	}
	parts := strings.Split(raw, sep)
	roles := make([]string, 0, len(parts))
	for _, p := range parts {
		roles = append(roles, strings.TrimSpace(p))
	}
	if len(roles) <= 1 {
		return []expandedRow{{row: row}}
	}
	expanded := make([]expandedRow, 0, len(roles))
	for _, role := range roles {
		mapped, ok := cfg.Mapping[role]
		if !ok {
			mapped = role
		}
		clone, err := core.DeepCopyRow(row)
		if err != nil {
			clone = row
		}
		clone[cfg.Source] = mapped
		expanded = append(expanded, expandedRow{
			row: clone,
			overrides: map[string]FieldTransform{
				roleTargetField: {Constant: mapped},
			},
		})
	}
	return expanded
}

// expandMultipleColumns emits one row per variant whose condition column
// is non-blank (a variant without a condition always matches). When no
// variant matches the row passes through once, unmodified.
func expandMultipleColumns(row core.Row, cfg *ExpandConfig) []expandedRow {
	var expanded []expandedRow
	for _, variant := range cfg.Variants {
		if variant.ConditionColumn != "" {
			cond, _ := row.Get(variant.ConditionColumn).(string)
			if strings.TrimSpace(cond) == "" {
				continue
			}
		}
		expanded = append(expanded, expandedRow{row: row, overrides: variant.Overrides})
	}
	if len(expanded) == 0 {
		return []expandedRow{{row: row}}
	}
	return expanded
}

// resolveRow builds one record from one expanded row. A field is emitted
// only when its resolved value is non-empty; otherwise required fields
// accumulate into a skip and defaulted fields fall back. A record that
// ends up with no fields at all is reported as skipped, not dropped.
func resolveRow(
	row core.Row,
	matrix *TransformationMatrix,
	rowIdx int,
	overrides map[string]FieldTransform,
) (core.Record, *SkippedRow) {
	output := core.Record{}
	var missing []string

	for target, fieldTransform := range matrix.Transforms {
		effective := fieldTransform
		if o, ok := overrides[target]; ok {
			effective = o
		}
		value := effective.Resolve(row)
		switch {
		case value != nil && !core.IsEmptyValue(value):
			output[target] = value
		case effective.Required:
			missing = append(missing, target)
		case effective.Default != nil:
			output[target] = effective.Default
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &SkippedRow{Row: rowIdx, Reason: SkipReasonMissingRequired, MissingFields: missing}
	}
	if len(output) == 0 {
		return nil, &SkippedRow{Row: rowIdx, Reason: SkipReasonEmptyRecord}
	}
	return output, nil
}

// Resolve produces this transform's value for one row: pick the source by
// precedence, fill from default when empty, run the operation chain, and
// fall back to default once more if the chain emptied the value.
func (t *FieldTransform) Resolve(row core.Row) any {
	var value any
	switch {
	case t.Source != "":
		value = row.Get(t.Source)
	case len(t.Sources) > 0:
		value = t.concatSources(row)
	default:
		value = t.Constant
	}

	if value == nil || core.IsEmptyValue(value) {
		if t.Default != nil {
			value = t.Default
		}
	}
	if value == nil {
		return nil
	}

	for i := range t.Operations {
		value = t.Operations[i].Apply(value)
	}
	if core.IsEmptyValue(value) {
		if t.Default != nil {
			return t.Default
		}
		return nil
	}
	return value
}

// concatSources joins the non-empty trimmed string parts of the source
// columns. All parts empty yields nil so default handling kicks in.
func (t *FieldTransform) concatSources(row core.Row) any {
	var parts []string
	for _, source := range t.Sources {
		s, ok := row.Get(source).(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return strings.Join(parts, t.concatSeparator())
}
