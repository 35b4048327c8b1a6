package server

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/allfeat/massload/engine/core"
	"github.com/allfeat/massload/engine/pipeline"
)

// Cost estimate quoted per submitted work.
const costPerWorkAFT = 0.05

// UploadResponse is returned after a CSV upload. MusicalWorks carries
// the grouped MIDDS records, ready for submission by the frontend SDK.
type UploadResponse struct {
	JobID        string           `json:"jobId"`
	Status       string           `json:"status"`
	MusicalWorks []core.Record    `json:"musicalWorks"`
	Metadata     ResponseMetadata `json:"metadata"`
}

type ResponseMetadata struct {
	TotalWorks    int             `json:"totalWorks"`
	EstimatedCost string          `json:"estimatedCost"`
	MatrixID      string          `json:"matrixId,omitempty"`
	Cached        bool            `json:"cached"`
	CsvInfo       CsvMetadata     `json:"csvInfo"`
	Validation    ValidationStats `json:"validation"`
	Skipped       []SkippedRow    `json:"skipped,omitempty"`
}

type CsvMetadata struct {
	Encoding  string   `json:"encoding"`
	Delimiter string   `json:"delimiter"`
	RowCount  int      `json:"rowCount"`
	Columns   []string `json:"columns"`
}

type ValidationStats struct {
	Valid   int               `json:"valid"`
	Invalid int               `json:"invalid"`
	Errors  []ValidationError `json:"errors"`
}

type ValidationError struct {
	RecordIndex int      `json:"recordIndex"`
	Errors      []string `json:"errors"`
}

type SkippedRow struct {
	Row           int      `json:"row"`
	Reason        string   `json:"reason"`
	MissingFields []string `json:"missingFields,omitempty"`
}

// TemplateSummary is the list representation of a stored template.
type TemplateSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	CsvColumns  []string `json:"csvColumns"`
	CreatedAt   string   `json:"createdAt"`
	LastUsed    string   `json:"lastUsed,omitempty"`
	SuccessRate float64  `json:"successRate"`
	UseCount    int      `json:"useCount"`
}

func newUploadResponse(result *pipeline.Result) UploadResponse {
	status := "ready"
	switch {
	case result.ValidCount == 0:
		status = "failed"
	case result.InvalidCount > 0:
		status = "warning"
	}

	verrs := make([]ValidationError, 0, len(result.ValidationErrors))
	for _, ve := range result.ValidationErrors {
		verrs = append(verrs, ValidationError{RecordIndex: ve.Record, Errors: ve.Errors})
	}
	skipped := make([]SkippedRow, 0, len(result.Skipped))
	for _, s := range result.Skipped {
		skipped = append(skipped, SkippedRow{Row: s.Row, Reason: s.Reason, MissingFields: s.MissingFields})
	}

	return UploadResponse{
		JobID:        uuid.NewString(),
		Status:       status,
		MusicalWorks: result.Grouped,
		Metadata: ResponseMetadata{
			TotalWorks:    len(result.Grouped),
			EstimatedCost: fmt.Sprintf("%.2f AFT", float64(len(result.Grouped))*costPerWorkAFT),
			MatrixID:      result.TemplateID,
			Cached:        result.TemplateID != "",
			CsvInfo: CsvMetadata{
				Encoding:  result.CsvInfo.Encoding,
				Delimiter: result.CsvInfo.Delimiter,
				RowCount:  result.CsvInfo.RowCount,
				Columns:   result.CsvInfo.Headers,
			},
			Validation: ValidationStats{
				Valid:   result.ValidCount,
				Invalid: result.InvalidCount,
				Errors:  verrs,
			},
			Skipped: skipped,
		},
	}
}
