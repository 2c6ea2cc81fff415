package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mbw0x/autofill-agent/api/schemas"
	"github.com/mbw0x/autofill-agent/internal/browser"
	"github.com/mbw0x/autofill-agent/internal/config"
	"github.com/mbw0x/autofill-agent/internal/executor"
	"github.com/mbw0x/autofill-agent/internal/identity"
	"github.com/mbw0x/autofill-agent/internal/observability"
	"github.com/mbw0x/autofill-agent/internal/orchestrator"
)

// newFillCmd creates the `fill` command: one snapshot/plan/apply pass over a
// job application page.
func newFillCmd() *cobra.Command {
	var (
		dryRun     bool
		backend    string
		backendURL string
	)

	fillCmd := &cobra.Command{
		Use:   "fill <url>",
		Short: "Fill the application form at the given URL from your CV",
		Long: `Opens the page, snapshots its form, asks the reasoning layer which
fields your CV can answer and applies the resulting actions. With --dry-run
the page is fetched over plain HTTP and the actions are applied to an
offline copy instead of a live browser.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			logger := observability.GetLogger()
			url := args[0]

			// Flags override the configured reasoning backend.
			if backend != "" {
				cfg.Agent.Backend = backend
			}
			if backendURL != "" {
				cfg.Agent.BackendURL = backendURL
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			userID, err := loadIdentity(cfg, logger)
			if err != nil {
				return err
			}

			planner, cleanup, err := buildPlanner(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			session, closeSession, err := openSession(ctx, cfg, url, dryRun, logger)
			if err != nil {
				return err
			}
			defer closeSession()

			o, err := orchestrator.New(session, planner, logger)
			if err != nil {
				return err
			}
			report, err := o.Fill(ctx, url, userID)
			if err != nil {
				return err
			}

			cmd.Println(report.Message)
			return nil
		},
	}

	fillCmd.Flags().BoolVar(&dryRun, "dry-run", false, "apply actions to an offline copy of the page")
	fillCmd.Flags().StringVar(&backend, "backend", "", `reasoning backend: "local" or "remote" (overrides config)`)
	fillCmd.Flags().StringVar(&backendURL, "backend-url", "", "remote backend base URL (overrides config)")
	return fillCmd
}

// loadIdentity resolves and loads the persisted tenant id.
func loadIdentity(cfg *config.Config, logger *zap.Logger) (string, error) {
	path := cfg.Identity.Path
	if path == "" {
		var err error
		path, err = identity.DefaultPath()
		if err != nil {
			return "", err
		}
	}
	return identity.Load(path, logger)
}

// buildPlanner returns the reasoning boundary per configuration: the remote
// HTTP client, or the full in-process stack.
func buildPlanner(ctx context.Context, cfg *config.Config, logger *zap.Logger) (schemas.ActionPlanner, func(), error) {
	if cfg.Agent.Backend == config.BackendRemote {
		client, err := orchestrator.NewReasoningClient(cfg.Agent.BackendURL, nil)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using remote reasoning backend", zap.String("url", cfg.Agent.BackendURL))
		return client, func() {}, nil
	}

	stack, err := buildReasoningStack(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return stack.planner, stack.Close, nil
}

// openSession returns a live browser session for the URL, or an offline copy
// of the fetched page when dry-running.
func openSession(ctx context.Context, cfg *config.Config, url string, dryRun bool, logger *zap.Logger) (schemas.PageSession, func(), error) {
	if dryRun {
		html, err := fetchPage(ctx, url)
		if err != nil {
			return nil, nil, err
		}
		session, err := executor.NewStaticSession(html)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse fetched page: %w", err)
		}
		logger.Info("Dry run: actions will be applied to an offline copy", zap.String("url", url))
		return session, func() {}, nil
	}

	session, err := browser.NewSession(ctx, browser.Config{
		Headless:          cfg.Browser.Headless,
		DisableGPU:        cfg.Browser.DisableGPU,
		Args:              cfg.Browser.Args,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		PostLoadWait:      cfg.Browser.PostLoadWait,
		ScriptTimeout:     cfg.Browser.ScriptTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := session.Navigate(ctx, url); err != nil {
		_ = session.Close()
		return nil, nil, err
	}
	return session, func() { _ = session.Close() }, nil
}

func fetchPage(ctx context.Context, url string) (string, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s returned status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func init() {
	rootCmd.AddCommand(newFillCmd())
}
