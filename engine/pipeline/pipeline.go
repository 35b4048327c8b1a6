// Package pipeline composes parsing, template lookup, generation,
// transformation, validation and grouping into the end-to-end CSV to
// MIDDS procedure.
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/allfeat/massload/engine/core"
	"github.com/allfeat/massload/engine/generator"
	"github.com/allfeat/massload/engine/grouper"
	"github.com/allfeat/massload/engine/parser"
	"github.com/allfeat/massload/engine/registry"
	"github.com/allfeat/massload/engine/transform"
	"github.com/allfeat/massload/engine/validator"
	"github.com/allfeat/massload/pkg/logger"
)

// At most this many flat validation failures are carried in the result.
const maxValidationErrors = 10

// Options tune a single pipeline run.
type Options struct {
	// MatrixPath uses an explicit matrix file, bypassing templates and
	// generation entirely.
	MatrixPath string
	// PreviewRows is how many rows the generator sees verbatim.
	PreviewRows int
	// SkipValidation counts every record as valid.
	SkipValidation bool
	// NoCache skips the template registry lookup.
	NoCache bool
	// NoSave keeps a generated matrix out of the registry.
	NoSave bool
}

func DefaultOptions() Options {
	return Options{PreviewRows: 10}
}

// ValidationError pairs a flat record index with its schema errors.
type ValidationError struct {
	Record int      `json:"record"`
	Errors []string `json:"errors"`
}

// CsvInfo reports what the parser detected.
type CsvInfo struct {
	Encoding  string   `json:"encoding"`
	Delimiter string   `json:"delimiter"`
	Headers   []string `json:"headers"`
	RowCount  int      `json:"row_count"`
}

// Result is the complete pipeline output.
type Result struct {
	Flat             []core.Record                   `json:"flat"`
	Grouped          []core.Record                   `json:"grouped"`
	Skipped          []transform.SkippedRow          `json:"skipped"`
	ValidCount       int                             `json:"valid_count"`
	InvalidCount     int                             `json:"invalid_count"`
	ValidationErrors []ValidationError               `json:"validation_errors"`
	Matrix           *transform.TransformationMatrix `json:"matrix"`
	TemplateID       string                          `json:"template_id,omitempty"`
	CsvInfo          CsvInfo                         `json:"csv_info"`
}

// Service wires the pipeline's collaborators together.
type Service struct {
	registry  *registry.Registry
	generator generator.Generator
	validator *validator.Validator
}

func New(reg *registry.Registry, gen generator.Generator, val *validator.Validator) *Service {
	return &Service{registry: reg, generator: gen, validator: val}
}

// TransformFile runs the pipeline on a CSV file. The file stem names the
// template when a generated matrix is saved.
func (s *Service) TransformFile(ctx context.Context, path string, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewError(err, "CSV_READ_ERROR", map[string]any{"path": path})
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return s.TransformBytes(ctx, data, stem, opts)
}

// TransformBytes runs the pipeline on raw CSV bytes. name labels a saved
// template; empty falls back to "auto-generated".
func (s *Service) TransformBytes(ctx context.Context, data []byte, name string, opts Options) (*Result, error) {
	parsed, err := parser.Parse(data)
	if err != nil {
		return nil, core.NewError(err, "CSV_PARSE_ERROR", nil)
	}
	return s.transformParsed(ctx, parsed, name, opts)
}

func (s *Service) transformParsed(ctx context.Context, parsed *parser.Result, name string, opts Options) (*Result, error) {
	log := logger.FromContext(ctx)
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = DefaultOptions().PreviewRows
	}
	if len(parsed.Rows) == 0 {
		return nil, core.NewError(errors.New("CSV file has no data rows"), "EMPTY_CSV", nil)
	}
	log.Info("parsed CSV",
		"encoding", parsed.Encoding,
		"delimiter", parsed.Delimiter,
		"columns", len(parsed.Headers),
		"rows", len(parsed.Rows))

	trial, err := s.selectAndExecute(ctx, parsed, name, opts)
	if err != nil {
		return nil, err
	}
	log.Info(trial.exec.Summary())

	grouped := grouper.Group(trial.exec.Records)
	log.Info("grouped records", "works", len(grouped))
	if !opts.SkipValidation {
		s.checkGrouped(ctx, grouped)
	}

	return &Result{
		Flat:             trial.exec.Records,
		Grouped:          grouped,
		Skipped:          trial.exec.Skipped,
		ValidCount:       trial.valid,
		InvalidCount:     trial.invalid,
		ValidationErrors: trial.validationErrors,
		Matrix:           trial.matrix,
		TemplateID:       trial.templateID,
		CsvInfo: CsvInfo{
			Encoding:  parsed.Encoding,
			Delimiter: parsed.Delimiter,
			Headers:   parsed.Headers,
			RowCount:  len(parsed.Rows),
		},
	}, nil
}

type trialResult struct {
	matrix           *transform.TransformationMatrix
	templateID       string
	exec             *transform.Result
	valid            int
	invalid          int
	validationErrors []ValidationError
}

// selectAndExecute picks the matrix and runs the batch through it. An
// explicit matrix file is exclusive; otherwise ranked compatible
// templates are tried until one yields a valid record, and generation is
// the last resort.
func (s *Service) selectAndExecute(ctx context.Context, parsed *parser.Result, name string, opts Options) (*trialResult, error) {
	log := logger.FromContext(ctx)

	if opts.MatrixPath != "" {
		log.Info("using explicit matrix file", "path", opts.MatrixPath)
		data, err := os.ReadFile(opts.MatrixPath)
		if err != nil {
			return nil, core.NewError(err, "MATRIX_READ_ERROR", map[string]any{"path": opts.MatrixPath})
		}
		matrix, err := transform.MatrixFromJSON(data)
		if err != nil {
			return nil, err
		}
		if missing := matrix.ValidateHeaders(parsed.Headers); len(missing) > 0 {
			log.Warn("matrix references columns absent from the CSV", "missing", missing)
		}
		return s.try(parsed.Rows, matrix, "", opts), nil
	}

	if !opts.NoCache {
		if trial := s.tryCachedTemplates(ctx, parsed, opts); trial != nil {
			return trial, nil
		}
	}

	return s.generateAndExecute(ctx, parsed, name, opts)
}

// tryCachedTemplates runs ranked candidates until one produces at least
// one valid record. Every trial feeds the template's stats.
func (s *Service) tryCachedTemplates(ctx context.Context, parsed *parser.Result, opts Options) *trialResult {
	log := logger.FromContext(ctx)
	candidates := s.registry.FindCompatible(parsed.Headers)
	if len(candidates) == 0 {
		log.Info("no compatible cached templates")
		return nil
	}
	log.Info("found compatible templates", "count", len(candidates))
	for i, candidate := range candidates {
		stored := candidate.Stored
		log.Info("trying cached template",
			"template", stored.Name,
			"rank", i+1,
			"score", candidate.Score,
			"success_rate", stored.SuccessRate)
		trial := s.try(parsed.Rows, stored.Matrix, stored.ID, opts)
		success := trial.valid > 0
		s.registry.UpdateStats(ctx, stored.ID, success)
		if success {
			log.Info("cached template succeeded", "template", stored.Name)
			return trial
		}
		log.Warn("cached template produced no valid records", "template", stored.Name)
	}
	log.Warn("all cached templates failed", "count", len(candidates))
	return nil
}

// generateAndExecute asks the generator for a fresh matrix, optionally
// saves it, and runs the batch. The run is terminal: its result is
// returned even when nothing validated, with stats recorded.
func (s *Service) generateAndExecute(ctx context.Context, parsed *parser.Result, name string, opts Options) (*trialResult, error) {
	log := logger.FromContext(ctx)
	previewCount := min(opts.PreviewRows, len(parsed.Rows))
	log.Info("generating matrix", "preview_rows", previewCount, "total_rows", len(parsed.Rows))

	matrix, err := s.generator.Generate(ctx, parsed.Rows[:previewCount], parsed.Rows)
	if err != nil {
		return nil, err
	}
	log.Info("matrix generated", "fields", matrix.TargetFields())

	templateID := ""
	if !opts.NoSave {
		if name == "" {
			name = "auto-generated"
		}
		id, saveErr := s.registry.Save(matrix, name, parsed.Headers)
		if saveErr != nil {
			log.Warn("failed to save generated template", "error", saveErr)
		} else {
			templateID = id
			log.Info("saved generated template", "id", id)
		}
	}

	trial := s.try(parsed.Rows, matrix, templateID, opts)
	if templateID != "" {
		s.registry.UpdateStats(ctx, templateID, trial.valid > 0)
	}
	return trial, nil
}

// try executes a matrix over the batch and validates the flat output.
func (s *Service) try(rows []core.Row, matrix *transform.TransformationMatrix, templateID string, opts Options) *trialResult {
	exec := transform.Execute(rows, matrix)
	trial := &trialResult{matrix: matrix, templateID: templateID, exec: exec}
	if opts.SkipValidation {
		trial.valid = len(exec.Records)
		return trial
	}
	for i, record := range exec.Records {
		errs := s.validator.ValidateFlat(record)
		if len(errs) == 0 {
			trial.valid++
			continue
		}
		trial.invalid++
		if len(trial.validationErrors) < maxValidationErrors {
			trial.validationErrors = append(trial.validationErrors, ValidationError{Record: i, Errors: errs})
		}
	}
	return trial
}

// checkGrouped validates the grouped works and logs failures; grouped
// validation never fails the batch.
func (s *Service) checkGrouped(ctx context.Context, works []core.Record) {
	log := logger.FromContext(ctx)
	failures := 0
	for i, work := range works {
		if errs := s.validator.ValidateGrouped(work); len(errs) > 0 {
			failures++
			if failures <= 3 {
				log.Error("grouped work failed validation", "work", i, "errors", strings.Join(errs, "; "))
			}
		}
	}
	if failures > 0 {
		log.Warn("works failed grouped validation", "count", failures)
	} else {
		log.Debug("all grouped works valid")
	}
}
