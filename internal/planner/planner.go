// Package planner is the reasoning step: it analyzes a page snapshot,
// retrieves CV facts per field, asks the LLM for each field's value and
// assembles the ordered FillAction batch the page executor will apply.
package planner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mbw0x/autofill-agent/api/schemas"
	"github.com/mbw0x/autofill-agent/internal/formscan"
)

// Options tunes the planner's fan-out.
type Options struct {
	// TopK is the number of CV chunks retrieved per field.
	TopK int
	// Concurrency bounds how many fields are resolved at once.
	Concurrency int
	// RequestsPerSecond throttles LLM calls across the whole batch.
	// Zero means unthrottled.
	RequestsPerSecond float64
}

// Planner implements schemas.ActionPlanner over a retriever and an LLM.
type Planner struct {
	retriever schemas.Retriever
	llm       schemas.LLMClient
	opts      Options
	limiter   *rate.Limiter
	log       *zap.Logger
}

var _ schemas.ActionPlanner = (*Planner)(nil)

// New wires a planner. Zero option values fall back to sensible defaults.
func New(retriever schemas.Retriever, llm schemas.LLMClient, opts Options, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Planner{
		retriever: retriever,
		llm:       llm,
		opts:      opts,
		limiter:   limiter,
		log:       logger.Named("planner"),
	}
}

// PlanActions analyzes the snapshot and produces the ordered batch. A page
// without fillable fields, or a CV with nothing to say about any of them,
// yields an empty batch, never an error.
func (p *Planner) PlanActions(ctx context.Context, req schemas.GenerateActionsRequest) ([]schemas.FillAction, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("a user id is required to plan actions")
	}

	fields, err := formscan.Analyze(req.HTML)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze page structure: %w", err)
	}
	p.log.Info("Page analyzed",
		zap.String("user_id", req.UserID),
		zap.String("url", req.URL),
		zap.Int("fields", len(fields)))
	if len(fields) == 0 {
		return nil, nil
	}

	// Fields resolve concurrently but land in their document slot, so the
	// batch order the executor sees is the document order.
	planned := make([]*schemas.FillAction, len(fields))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, field := range fields {
		g.Go(func() error {
			action, err := p.planField(gctx, req.UserID, field)
			if err != nil {
				return err
			}
			planned[i] = action
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var batch []schemas.FillAction
	for _, a := range planned {
		if a != nil {
			batch = append(batch, *a)
		}
	}
	p.log.Info("Plan complete",
		zap.String("user_id", req.UserID),
		zap.Int("actions", len(batch)),
		zap.Int("skipped", len(fields)-len(batch)))
	return batch, nil
}

// planField resolves one field to an action, or nil when the CV has nothing
// for it.
func (p *Planner) planField(ctx context.Context, userID string, field formscan.Field) (*schemas.FillAction, error) {
	chunks, err := p.retriever.Retrieve(ctx, userID, retrievalQuery(field), p.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed for field %q: %w", field.Selector, err)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	answer, err := p.llm.Generate(ctx, systemPrompt, fieldPrompt(field, chunks))
	if err != nil {
		return nil, fmt.Errorf("generation failed for field %q: %w", field.Selector, err)
	}

	value := strings.TrimSpace(answer)
	if value == "" || strings.EqualFold(value, skipToken) {
		p.log.Debug("Field skipped", zap.String("selector", field.Selector))
		return nil, nil
	}

	action := &schemas.FillAction{
		Selector: field.Selector,
		Type:     controlKind(field.Type),
		Value:    value,
	}
	if action.Type == schemas.ControlCheckbox || action.Type == schemas.ControlRadio {
		// Boolean answers are matched literally downstream.
		action.Value = strings.ToLower(value)
	}
	return action, nil
}

// controlKind maps a scanned field type onto the protocol's dispatch kinds.
// Everything that is not a checkbox or radio rides the generic text path,
// selects and textareas included.
func controlKind(fieldType string) schemas.ControlKind {
	switch fieldType {
	case "checkbox":
		return schemas.ControlCheckbox
	case "radio":
		return schemas.ControlRadio
	default:
		return schemas.ControlText
	}
}
