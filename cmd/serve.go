package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mbw0x/autofill-agent/internal/observability"
	"github.com/mbw0x/autofill-agent/internal/server"
)

// newServeCmd creates the `serve` command: the reasoning backend that accepts
// CV uploads and answers action-generation requests.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the reasoning backend HTTP API",
		Long: `Starts the backend that indexes uploaded CVs and generates fill
actions for submitted page snapshots. The page-driving side talks to it over
HTTP; it never touches a browser itself.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			logger := observability.GetLogger()

			stack, err := buildReasoningStack(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer stack.Close()

			srv := server.New(server.Config{
				Addr:           cfg.Server.ListenAddr,
				RequestTimeout: cfg.Server.RequestTimeout,
				MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
			}, stack.planner, stack.pipeline, logger)

			logger.Info("Reasoning backend ready",
				zap.String("address", cfg.Server.ListenAddr),
				zap.Duration("request_timeout", cfg.Server.RequestTimeout))
			return srv.Run(ctx)
		},
	}
	return serveCmd
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
