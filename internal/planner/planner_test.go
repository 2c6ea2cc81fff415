package planner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbw0x/autofill-agent/api/schemas"
)

const planFixture = `<html><body><form>
  <label for="fname">First name</label>
  <input type="text" id="fname" name="first_name">
  <label for="consent">Privacy consent</label>
  <input type="checkbox" id="consent" name="consent">
  <label for="remote">Open to remote work</label>
  <input type="radio" id="remote" name="remote" value="yes">
  <label for="salary">Expected salary</label>
  <input type="text" id="salary" name="salary">
</form></body></html>`

// scriptedLLM answers by field name sniffed out of the prompt.
type scriptedLLM struct {
	mu      sync.Mutex
	answers map[string]string
	prompts []string
	err     error
}

func (s *scriptedLLM) Generate(ctx context.Context, system, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	for name, answer := range s.answers {
		if strings.Contains(prompt, "Field Name: "+name+"\n") {
			return answer, nil
		}
	}
	return skipToken, nil
}

func (s *scriptedLLM) Close() error { return nil }

type staticRetriever struct {
	mu      sync.Mutex
	queries []string
	chunks  []schemas.Chunk
	err     error
}

func (r *staticRetriever) Retrieve(ctx context.Context, userID, query string, k int) ([]schemas.Chunk, error) {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.mu.Unlock()
	return r.chunks, r.err
}

func planRequest() schemas.GenerateActionsRequest {
	return schemas.GenerateActionsRequest{
		URL:    "https://jobs.example.com/apply",
		HTML:   planFixture,
		UserID: "tenant-1",
	}
}

func TestPlanActionsMapsFieldsToActions(t *testing.T) {
	t.Parallel()

	llm := &scriptedLLM{answers: map[string]string{
		"first_name": "Jane",
		"consent":    "True",
		"remote":     "TRUE",
		"salary":     "SKIP",
	}}
	retriever := &staticRetriever{chunks: []schemas.Chunk{{Content: "Jane Doe, Berlin"}}}

	p := New(retriever, llm, Options{}, nil)
	batch, err := p.PlanActions(context.Background(), planRequest())
	require.NoError(t, err)

	// The skipped salary field is dropped; the rest keep document order.
	require.Len(t, batch, 3)
	assert.Equal(t, schemas.FillAction{Selector: "#fname", Type: schemas.ControlText, Value: "Jane"}, batch[0])
	assert.Equal(t, schemas.FillAction{Selector: "#consent", Type: schemas.ControlCheckbox, Value: "true"}, batch[1])
	assert.Equal(t, schemas.FillAction{Selector: "#remote", Type: schemas.ControlRadio, Value: "true"}, batch[2])
}

func TestPlanActionsRetrievalQueries(t *testing.T) {
	t.Parallel()

	retriever := &staticRetriever{}
	p := New(retriever, &scriptedLLM{}, Options{Concurrency: 1}, nil)
	_, err := p.PlanActions(context.Background(), planRequest())
	require.NoError(t, err)

	assert.Contains(t, retriever.queries, "What is the First name?")
	assert.Contains(t, retriever.queries, "Should I check the box for Privacy consent?")
	assert.Contains(t, retriever.queries, "Should I check the box for Open to remote work?")
}

func TestPlanActionsPromptCarriesContext(t *testing.T) {
	t.Parallel()

	llm := &scriptedLLM{answers: map[string]string{"first_name": "Jane"}}
	retriever := &staticRetriever{chunks: []schemas.Chunk{
		{Content: "Jane Doe"},
		{Content: "Berlin, Germany"},
	}}
	p := New(retriever, llm, Options{Concurrency: 1}, nil)

	_, err := p.PlanActions(context.Background(), planRequest())
	require.NoError(t, err)

	require.NotEmpty(t, llm.prompts)
	first := llm.prompts[0]
	assert.Contains(t, first, "CV Context:\nJane Doe\nBerlin, Germany")
	assert.Contains(t, first, "Field Type: text")
}

func TestPlanActionsEmptyPage(t *testing.T) {
	t.Parallel()

	p := New(&staticRetriever{}, &scriptedLLM{}, Options{}, nil)
	batch, err := p.PlanActions(context.Background(), schemas.GenerateActionsRequest{
		URL:    "https://example.com",
		HTML:   "<html><body><p>No form here.</p></body></html>",
		UserID: "tenant-1",
	})
	require.NoError(t, err)
	assert.Empty(t, batch, "a page without fields is a no-op, not an error")
}

func TestPlanActionsAllFieldsSkipped(t *testing.T) {
	t.Parallel()

	p := New(&staticRetriever{}, &scriptedLLM{}, Options{}, nil)
	batch, err := p.PlanActions(context.Background(), planRequest())
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestPlanActionsRequiresUserID(t *testing.T) {
	t.Parallel()

	p := New(&staticRetriever{}, &scriptedLLM{}, Options{}, nil)
	req := planRequest()
	req.UserID = ""
	_, err := p.PlanActions(context.Background(), req)
	require.Error(t, err)
}

func TestPlanActionsPropagatesUpstreamFailure(t *testing.T) {
	t.Parallel()

	t.Run("retriever failure", func(t *testing.T) {
		t.Parallel()
		p := New(&staticRetriever{err: fmt.Errorf("vector store down")}, &scriptedLLM{}, Options{}, nil)
		_, err := p.PlanActions(context.Background(), planRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retrieval failed")
	})

	t.Run("llm failure", func(t *testing.T) {
		t.Parallel()
		p := New(&staticRetriever{}, &scriptedLLM{err: fmt.Errorf("model overloaded")}, Options{}, nil)
		_, err := p.PlanActions(context.Background(), planRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "generation failed")
	})
}

func TestControlKindMapping(t *testing.T) {
	t.Parallel()

	assert.Equal(t, schemas.ControlCheckbox, controlKind("checkbox"))
	assert.Equal(t, schemas.ControlRadio, controlKind("radio"))
	for _, typ := range []string{"text", "email", "select-one", "textarea", "number", ""} {
		assert.Equal(t, schemas.ControlText, controlKind(typ), typ)
	}
}

func TestPlanActionsConcurrentOrderStable(t *testing.T) {
	t.Parallel()

	llm := &scriptedLLM{answers: map[string]string{
		"first_name": "Jane",
		"consent":    "true",
		"remote":     "true",
		"salary":     "90000",
	}}
	p := New(&staticRetriever{}, llm, Options{Concurrency: 4}, nil)

	for range 5 {
		batch, err := p.PlanActions(context.Background(), planRequest())
		require.NoError(t, err)
		require.Len(t, batch, 4)
		assert.Equal(t, "#fname", batch[0].Selector)
		assert.Equal(t, "#consent", batch[1].Selector)
		assert.Equal(t, "#remote", batch[2].Selector)
		assert.Equal(t, "#salary", batch[3].Selector)
	}
}
