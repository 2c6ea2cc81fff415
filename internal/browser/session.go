// Package browser drives a real Chrome instance over the DevTools protocol
// and exposes it as a schemas.PageSession. Snapshot and Apply each run as a
// single synchronous script evaluation inside the page, so the document can
// never re-render between two actions of the same batch.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mbw0x/autofill-agent/api/schemas"
	"github.com/mbw0x/autofill-agent/internal/executor"
)

// Config carries the browser launch and timing settings.
type Config struct {
	Headless   bool
	DisableGPU bool
	// Args are extra Chrome flags, either "name" or "name=value" form.
	Args []string

	NavigationTimeout time.Duration
	// PostLoadWait is the settle period after navigation, giving client-side
	// form frameworks a beat to finish their first render.
	PostLoadWait  time.Duration
	ScriptTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 90 * time.Second
	}
	if c.PostLoadWait <= 0 {
		c.PostLoadWait = 1500 * time.Millisecond
	}
	if c.ScriptTimeout <= 0 {
		c.ScriptTimeout = 20 * time.Second
	}
}

// Session is a live Chrome tab. All page exchanges are serialized through an
// internal mutex; the document only ever changes under one caller at a time.
type Session struct {
	cfg    Config
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu sync.Mutex
}

var _ schemas.PageSession = (*Session)(nil)

// NewSession launches the browser process and opens a tab. Close releases
// both.
func NewSession(parent context.Context, cfg Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		cfg: cfg,
		log: logger.Named("browser"),
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}

	// Starting the browser eagerly surfaces a missing Chrome binary here
	// instead of on the first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		s.cancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	s.log.Info("Browser session started", zap.Bool("headless", cfg.Headless))
	return s, nil
}

// Navigate loads the URL and waits out the settle period.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	navCtx, cancel := context.WithTimeout(s.ctx, s.cfg.NavigationTimeout)
	defer cancel()

	s.log.Info("Navigating", zap.String("url", url))
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(s.cfg.PostLoadWait),
	)
	if err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation to %s timed out after %v: %w", url, s.cfg.NavigationTimeout, navCtx.Err())
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Snapshot serializes the current document body.
func (s *Session) Snapshot(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var html string
	if err := s.evaluate(ctx, executor.SnapshotScript, &html); err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}
	return html, nil
}

// Apply runs the batch inside the page in one evaluation and decodes the
// result the in-page pass reports.
func (s *Session) Apply(ctx context.Context, batch []schemas.FillAction) (schemas.ExecutionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	script, err := executor.BuildApplyScript(batch)
	if err != nil {
		return schemas.ExecutionResult{}, err
	}

	var result schemas.ExecutionResult
	if err := s.evaluate(ctx, script, &result); err != nil {
		return schemas.ExecutionResult{}, fmt.Errorf("failed to apply actions: %w", err)
	}
	s.log.Info("Batch applied",
		zap.Int("actions", len(batch)),
		zap.Int("applied", result.Count))
	return result, nil
}

// evaluate runs one script on the page under the script timeout. The caller's
// ctx only gates the wait; the evaluation itself rides the tab context so a
// caller timeout cannot orphan a half-applied batch.
func (s *Session) evaluate(ctx context.Context, script string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(s.ctx, s.cfg.ScriptTimeout)
	defer cancel()

	err := chromedp.Run(opCtx,
		chromedp.Evaluate(script, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		}),
	)
	if err != nil {
		if opCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("script evaluation timed out after %v: %w", s.cfg.ScriptTimeout, opCtx.Err())
		}
		return err
	}
	return nil
}

// Close tears down the tab and the browser process.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.log.Info("Browser session closed")
	}
	return nil
}
