// Package validator checks transformed records against the embedded MIDDS
// JSON schemas (draft 7), in both flat and grouped form.
package validator

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/kaptinlin/jsonschema"

	"github.com/allfeat/massload/engine/core"
)

//go:embed schemas/midds-musical-work-flat.json
var flatSchemaJSON []byte

//go:embed schemas/midds-musical-work-grouped.json
var groupedSchemaJSON []byte

// FlatSchemaJSON exposes the raw flat schema for callers that embed it
// into prompts.
func FlatSchemaJSON() []byte {
	return flatSchemaJSON
}

// Validator holds the compiled flat and grouped schemas. Compile once,
// validate many.
type Validator struct {
	flat    *jsonschema.Schema
	grouped *jsonschema.Schema
}

func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	flat, err := compiler.Compile(flatSchemaJSON)
	if err != nil {
		return nil, core.NewError(err, "SCHEMA_COMPILE_ERROR", map[string]any{"schema": "flat"})
	}
	grouped, err := compiler.Compile(groupedSchemaJSON)
	if err != nil {
		return nil, core.NewError(err, "SCHEMA_COMPILE_ERROR", map[string]any{"schema": "grouped"})
	}
	return &Validator{flat: flat, grouped: grouped}, nil
}

// ValidateFlat checks one flat record. An empty result means valid.
func (v *Validator) ValidateFlat(record core.Record) []string {
	return evaluate(v.flat, map[string]any(record))
}

// ValidateGrouped checks one grouped work. An empty result means valid.
func (v *Validator) ValidateGrouped(work core.Record) []string {
	return evaluate(v.grouped, map[string]any(work))
}

// IsValidFlat is the boolean shortcut for ValidateFlat.
func (v *Validator) IsValidFlat(record core.Record) bool {
	return len(v.ValidateFlat(record)) == 0
}

// IsValidGrouped is the boolean shortcut for ValidateGrouped.
func (v *Validator) IsValidGrouped(work core.Record) bool {
	return len(v.ValidateGrouped(work)) == 0
}

func evaluate(schema *jsonschema.Schema, value any) []string {
	result := schema.Validate(value)
	if result.Valid {
		return nil
	}
	keywords := make([]string, 0, len(result.Errors))
	for keyword := range result.Errors {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)
	errs := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		errs = append(errs, fmt.Sprintf("%s: %s", keyword, result.Errors[keyword].Error()))
	}
	return errs
}
