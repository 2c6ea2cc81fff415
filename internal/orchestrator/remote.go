package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/mbw0x/autofill-agent/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReasoningClient implements schemas.ActionPlanner against a remote backend:
// the same JSON contract the in-process planner serves, over HTTP. The agent
// can run fully local or point at a hosted backend without the orchestrator
// noticing the difference.
type ReasoningClient struct {
	baseURL string
	client  *http.Client
}

var _ schemas.ActionPlanner = (*ReasoningClient)(nil)

// NewReasoningClient builds a client for the backend at baseURL. A nil
// httpClient falls back to a default with a generous timeout; planning fans
// out one LLM call per form field.
func NewReasoningClient(baseURL string, httpClient *http.Client) (*ReasoningClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("a backend URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &ReasoningClient{baseURL: baseURL, client: httpClient}, nil
}

// PlanActions posts the snapshot to the backend and decodes the batch.
func (c *ReasoningClient) PlanActions(ctx context.Context, req schemas.GenerateActionsRequest) ([]schemas.FillAction, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reasoning request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/actions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("reasoning backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr schemas.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("reasoning backend rejected the request: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("reasoning backend returned status %d", resp.StatusCode)
	}

	var out schemas.GenerateActionsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode backend response: %w", err)
	}
	return out.Actions, nil
}
