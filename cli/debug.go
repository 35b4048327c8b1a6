package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/allfeat/massload/engine/core"
	"github.com/allfeat/massload/engine/grouper"
	"github.com/allfeat/massload/engine/parser"
	"github.com/allfeat/massload/engine/transform"
	"github.com/allfeat/massload/engine/validator"
	"github.com/allfeat/massload/pkg/logger"
)

// ParseCmd parses a CSV file and prints its rows as JSON, without any
// transformation. Useful to inspect what the detection pass sees.
func ParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file.csv>",
		Short: "Parse a CSV file and output its rows as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.FromContext(cmd.Context())
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read CSV file: %w", err)
			}

			delimiter, _ := cmd.Flags().GetString("delimiter")
			var result *parser.Result
			if delimiter != "" {
				result, err = parser.ParseWithDelimiter(data, delimiter)
			} else {
				result, err = parser.Parse(data)
			}
			if err != nil {
				return err
			}

			log.Info("parsed CSV",
				"encoding", result.Encoding,
				"delimiter", result.Delimiter,
				"columns", result.Headers,
				"rows", len(result.Rows))

			out, err := json.MarshalIndent(result.Rows, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode rows: %w", err)
			}
			output, _ := cmd.Flags().GetString("output")
			return writeOutput(cmd, out, output)
		},
	}
	cmd.Flags().StringP("delimiter", "d", "", "CSV delimiter (auto-detect if not specified)")
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	return cmd
}

// ValidateCmd checks a JSON array of flat records against the MIDDS flat
// schema and reports per-record errors.
func ValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <records.json>",
		Short: "Validate JSON records against the MIDDS flat schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.FromContext(cmd.Context())
			records, err := readRecords(args[0])
			if err != nil {
				return err
			}
			val, err := validator.New()
			if err != nil {
				return err
			}

			valid, invalid := 0, 0
			for i, record := range records {
				errs := val.ValidateFlat(record)
				if len(errs) == 0 {
					valid++
					continue
				}
				invalid++
				if invalid <= 5 {
					shown := errs
					if len(shown) > 3 {
						shown = shown[:3]
					}
					log.Warn("invalid record", "index", i, "errors", shown)
				}
			}

			log.Info("validation complete", "valid", valid, "invalid", invalid)
			if invalid > 0 {
				return fmt.Errorf("%d of %d records failed validation", invalid, len(records))
			}
			return nil
		},
	}
}

// GroupCmd merges a JSON array of flat records into grouped works.
func GroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group <records.json>",
		Short: "Group flat records into musical works by ISWC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.FromContext(cmd.Context())
			records, err := readRecords(args[0])
			if err != nil {
				return err
			}

			works := grouper.Group(records)
			log.Info("grouped records", "flat", len(records), "works", len(works))

			out, err := json.MarshalIndent(works, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode works: %w", err)
			}
			output, _ := cmd.Flags().GetString("output")
			return writeOutput(cmd, out, output)
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	return cmd
}

// ExampleMatrixCmd prints a documented starter matrix.
func ExampleMatrixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example-matrix",
		Short: "Show an example transformation matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := transform.ExampleMatrix().ToJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

// OperationsCmd lists the transformation DSL's operations.
func OperationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "Show available transformation operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), transform.OperationsHelp())
			return nil
		},
	}
}

func readRecords(path string) ([]core.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records file: %w", err)
	}
	var records []core.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse records file: %w", err)
	}
	return records, nil
}

func writeOutput(cmd *cobra.Command, data []byte, path string) error {
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	logger.FromContext(cmd.Context()).Info("output written", "path", path)
	return nil
}
