package cmd

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mbw0x/autofill-agent/internal/observability"
)

// newIngestCmd creates the `ingest` command: index a CV document directly,
// without going through the HTTP upload endpoint.
func newIngestCmd() *cobra.Command {
	ingestCmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Index a CV document (markdown or plain text) for this machine's identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			logger := observability.GetLogger()
			path := args[0]

			userID, err := loadIdentity(cfg, logger)
			if err != nil {
				return err
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			stack, err := buildReasoningStack(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer stack.Close()

			chunks, err := stack.pipeline.Ingest(ctx, userID, filepath.Base(path), content)
			if err != nil {
				return err
			}

			cmd.Printf("Indexed %q: %d chunks stored.\n", filepath.Base(path), chunks)
			return nil
		},
	}
	return ingestCmd
}

func init() {
	rootCmd.AddCommand(newIngestCmd())
}
