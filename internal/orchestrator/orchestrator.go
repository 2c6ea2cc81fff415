// Package orchestrator sequences one fill pass over a live page: snapshot the
// document, ask the reasoning side for an action batch, apply it, report
// progress. It is injected with its components via interfaces and never
// touches the browser or the LLM directly.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mbw0x/autofill-agent/api/schemas"
)

// Report summarizes one fill pass for the human driving it.
type Report struct {
	// Planned is the number of actions the reasoning side issued.
	Planned int
	// Applied is the number of actions whose selector resolved on the live
	// page. Lookup misses are only visible through this count.
	Applied int
	Message string
}

// Orchestrator runs the fill workflow against a single page session.
type Orchestrator struct {
	session schemas.PageSession
	planner schemas.ActionPlanner
	logger  *zap.Logger
}

// New wires an orchestrator. All dependencies are required.
func New(session schemas.PageSession, planner schemas.ActionPlanner, logger *zap.Logger) (*Orchestrator, error) {
	if session == nil || planner == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		session: session,
		planner: planner,
		logger:  logger.Named("orchestrator"),
	}, nil
}

// Fill executes one snapshot/plan/apply pass. Apply is never attempted before
// a successful snapshot, and an empty plan ends the pass as a no-op rather
// than an error. A planning failure is terminal for the pass; there is no
// retry loop to re-ask the model.
func (o *Orchestrator) Fill(ctx context.Context, url, userID string) (Report, error) {
	if strings.TrimSpace(userID) == "" {
		return Report{}, fmt.Errorf("a user id is required")
	}

	html, err := o.session.Snapshot(ctx)
	if err != nil {
		o.logger.Error("Snapshot failed", zap.String("url", url), zap.Error(err))
		return Report{}, fmt.Errorf("could not read the page, try refreshing: %w", err)
	}
	if strings.TrimSpace(html) == "" {
		return Report{}, fmt.Errorf("could not read the page, try refreshing: the document is empty")
	}

	batch, err := o.planner.PlanActions(ctx, schemas.GenerateActionsRequest{
		URL:    url,
		HTML:   html,
		UserID: userID,
	})
	if err != nil {
		o.logger.Error("Planning failed", zap.String("url", url), zap.Error(err))
		return Report{}, fmt.Errorf("the agent hit an error and stopped: %w", err)
	}
	if len(batch) == 0 {
		o.logger.Info("Nothing to fill", zap.String("url", url))
		return Report{Message: "No fillable fields found on this page."}, nil
	}

	result, err := o.session.Apply(ctx, batch)
	if err != nil {
		o.logger.Error("Apply failed", zap.String("url", url), zap.Error(err))
		return Report{Planned: len(batch)}, fmt.Errorf("could not fill the page, try refreshing: %w", err)
	}

	report := Report{
		Planned: len(batch),
		Applied: result.Count,
		Message: fmt.Sprintf("Filled %d of %d fields.", result.Count, len(batch)),
	}
	o.logger.Info("Fill pass complete",
		zap.String("url", url),
		zap.String("user_id", userID),
		zap.Int("planned", report.Planned),
		zap.Int("applied", report.Applied))
	return report, nil
}
