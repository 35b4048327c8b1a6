package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/allfeat/massload/engine/pipeline"
	"github.com/allfeat/massload/pkg/logger"
)

func TransformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform <file.csv>",
		Short: "Transform a CSV file into MIDDS musical works",
		Args:  cobra.ExactArgs(1),
		RunE:  runTransform,
	}

	cmd.Flags().StringP("matrix", "m", "", "Use this transformation matrix file instead of the registry or AI")
	cmd.Flags().StringP("output", "o", "", "Write the grouped works to this file instead of stdout")
	cmd.Flags().Int("preview-rows", 0, "Number of rows sent to the AI for matrix generation (0 = config default)")
	cmd.Flags().Bool("skip-validation", false, "Skip MIDDS schema validation")
	cmd.Flags().Bool("no-cache", false, "Ignore cached templates and always generate")
	cmd.Flags().Bool("no-save", false, "Do not save the generated matrix as a template")

	return cmd
}

func runTransform(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)

	application, err := newApp(ctx)
	if err != nil {
		return err
	}

	opts := pipeline.DefaultOptions()
	opts.PreviewRows = application.cfg.AI.PreviewRows
	opts.MatrixPath, _ = cmd.Flags().GetString("matrix")
	opts.SkipValidation, _ = cmd.Flags().GetBool("skip-validation")
	opts.NoCache, _ = cmd.Flags().GetBool("no-cache")
	opts.NoSave, _ = cmd.Flags().GetBool("no-save")
	if preview, _ := cmd.Flags().GetInt("preview-rows"); preview > 0 {
		opts.PreviewRows = preview
	}

	result, err := application.pipeline.TransformFile(ctx, args[0], opts)
	if err != nil {
		return err
	}

	log.Info("transformation complete",
		"works", len(result.Grouped),
		"valid", result.ValidCount,
		"invalid", result.InvalidCount,
		"skipped", len(result.Skipped),
		"encoding", result.CsvInfo.Encoding,
		"delimiter", result.CsvInfo.Delimiter,
	)
	for _, ve := range result.ValidationErrors {
		log.Warn("invalid record", "index", ve.Record, "errors", ve.Errors)
	}
	if result.ValidCount == 0 && !opts.SkipValidation {
		log.Error("no record passed validation", "invalid", result.InvalidCount)
	}

	data, err := json.MarshalIndent(result.Grouped, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	output, _ := cmd.Flags().GetString("output")
	return writeOutput(cmd, data, output)
}
