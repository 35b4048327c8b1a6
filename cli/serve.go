package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/allfeat/massload/pkg/logger"
	"github.com/allfeat/massload/server"
)

func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the massload HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().String("host", "", "Bind address (overrides SERVER_HOST)")
	cmd.Flags().Int("port", 0, "Bind port (overrides SERVER_PORT)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithLogger(ctx, logger.GetDefault())

	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		application.cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		application.cfg.Server.Port = port
	}

	srv := server.New(ctx, &application.cfg.Server, application.pipeline, application.registry)
	return srv.Run(ctx)
}
