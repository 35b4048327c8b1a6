// Package cli implements the massload command line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/allfeat/massload/engine/generator"
	"github.com/allfeat/massload/engine/pipeline"
	"github.com/allfeat/massload/engine/registry"
	"github.com/allfeat/massload/engine/validator"
	"github.com/allfeat/massload/pkg/config"
	"github.com/allfeat/massload/pkg/logger"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "massload",
		Short: "Transform industry CSV exports into MIDDS musical works",
		Long: "massload reads CSV catalogs from collecting societies and publishers,\n" +
			"applies an AI-generated transformation matrix, and emits MIDDS musical\n" +
			"work records ready for registration on the Allfeat chain.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
			if err != nil {
				return err
			}
			logger.SetupLogger(logLevel, logJSON, logSource)
			return nil
		},
	}

	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")
	root.PersistentFlags().Bool("log-source", false, "Include source location in logs")

	root.AddCommand(
		TransformCmd(),
		TemplatesCmd(),
		ServeCmd(),
		ParseCmd(),
		ValidateCmd(),
		GroupCmd(),
		ExampleMatrixCmd(),
		OperationsCmd(),
	)

	return root
}

// app bundles the services every command needs.
type app struct {
	cfg      *config.Config
	registry *registry.Registry
	pipeline *pipeline.Service
}

// newApp loads configuration and wires the pipeline dependencies.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.NewService().Load(ctx)
	if err != nil {
		return nil, err
	}
	reg := registry.New(ctx, cfg.Registry.Dir)
	gen, err := generator.New(&cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	val, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("failed to compile schemas: %w", err)
	}
	return &app{
		cfg:      cfg,
		registry: reg,
		pipeline: pipeline.New(reg, gen, val),
	}, nil
}
