package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mbw0x/autofill-agent/api/schemas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSession struct {
	html        string
	snapshotErr error
	result      schemas.ExecutionResult
	applyErr    error

	snapshots int
	applied   [][]schemas.FillAction
}

func (f *fakeSession) Snapshot(ctx context.Context) (string, error) {
	f.snapshots++
	return f.html, f.snapshotErr
}

func (f *fakeSession) Apply(ctx context.Context, batch []schemas.FillAction) (schemas.ExecutionResult, error) {
	f.applied = append(f.applied, batch)
	return f.result, f.applyErr
}

type fakePlanner struct {
	batch []schemas.FillAction
	err   error
	last  schemas.GenerateActionsRequest
	calls int
}

func (f *fakePlanner) PlanActions(ctx context.Context, req schemas.GenerateActionsRequest) ([]schemas.FillAction, error) {
	f.calls++
	f.last = req
	return f.batch, f.err
}

func sampleBatch() []schemas.FillAction {
	return []schemas.FillAction{
		{Selector: "#fname", Type: schemas.ControlText, Value: "Jane"},
		{Selector: "#consent", Type: schemas.ControlCheckbox, Value: "true"},
	}
}

func TestFill(t *testing.T) {
	t.Parallel()

	session := &fakeSession{html: "<body><form></form></body>", result: schemas.Done(2)}
	planner := &fakePlanner{batch: sampleBatch()}
	o, err := New(session, planner, nil)
	require.NoError(t, err)

	report, err := o.Fill(context.Background(), "https://jobs.example.com/apply", "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Planned)
	assert.Equal(t, 2, report.Applied)
	assert.Equal(t, "Filled 2 of 2 fields.", report.Message)

	// The planner sees exactly what the snapshot returned.
	assert.Equal(t, "<body><form></form></body>", planner.last.HTML)
	assert.Equal(t, "tenant-1", planner.last.UserID)
	require.Len(t, session.applied, 1)
	assert.Equal(t, planner.batch, session.applied[0])
}

func TestFillReportsLookupMissesThroughCount(t *testing.T) {
	t.Parallel()

	// Two actions planned, one selector resolved on the live page.
	session := &fakeSession{html: "<body></body>", result: schemas.Done(1)}
	o, err := New(session, &fakePlanner{batch: sampleBatch()}, nil)
	require.NoError(t, err)

	report, err := o.Fill(context.Background(), "https://example.com", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Planned)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, "Filled 1 of 2 fields.", report.Message)
}

func TestFillEmptyPlanIsTerminalNoOp(t *testing.T) {
	t.Parallel()

	session := &fakeSession{html: "<body><p>hi</p></body>"}
	o, err := New(session, &fakePlanner{}, nil)
	require.NoError(t, err)

	report, err := o.Fill(context.Background(), "https://example.com", "tenant-1")
	require.NoError(t, err)
	assert.Zero(t, report.Planned)
	assert.Contains(t, report.Message, "No fillable fields")
	assert.Empty(t, session.applied, "an empty plan must never reach Apply")
}

func TestFillSnapshotFailure(t *testing.T) {
	t.Parallel()

	session := &fakeSession{snapshotErr: fmt.Errorf("target crashed")}
	planner := &fakePlanner{batch: sampleBatch()}
	o, err := New(session, planner, nil)
	require.NoError(t, err)

	_, err = o.Fill(context.Background(), "https://example.com", "tenant-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not read the page")
	assert.Zero(t, planner.calls, "planning must not run without a snapshot")
	assert.Empty(t, session.applied)
}

func TestFillEmptySnapshotFailsBeforePlanning(t *testing.T) {
	t.Parallel()

	session := &fakeSession{html: "   "}
	planner := &fakePlanner{}
	o, err := New(session, planner, nil)
	require.NoError(t, err)

	_, err = o.Fill(context.Background(), "https://example.com", "tenant-1")
	require.Error(t, err)
	assert.Zero(t, planner.calls)
}

func TestFillPlannerFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	session := &fakeSession{html: "<body></body>"}
	planner := &fakePlanner{err: fmt.Errorf("backend down")}
	o, err := New(session, planner, nil)
	require.NoError(t, err)

	_, err = o.Fill(context.Background(), "https://example.com", "tenant-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the agent hit an error")
	assert.Equal(t, 1, planner.calls)
	assert.Empty(t, session.applied)
}

func TestFillApplyFailure(t *testing.T) {
	t.Parallel()

	session := &fakeSession{html: "<body></body>", applyErr: fmt.Errorf("tab closed")}
	o, err := New(session, &fakePlanner{batch: sampleBatch()}, nil)
	require.NoError(t, err)

	_, err = o.Fill(context.Background(), "https://example.com", "tenant-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "try refreshing")
}

func TestFillRequiresUserID(t *testing.T) {
	t.Parallel()

	session := &fakeSession{html: "<body></body>"}
	o, err := New(session, &fakePlanner{}, nil)
	require.NoError(t, err)

	_, err = o.Fill(context.Background(), "https://example.com", "  ")
	require.Error(t, err)
	assert.Zero(t, session.snapshots)
}

func TestNewRejectsNilDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(nil, &fakePlanner{}, nil)
	require.Error(t, err)
	_, err = New(&fakeSession{}, nil, nil)
	require.Error(t, err)
}

func TestReasoningClient(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/actions", r.URL.Path)

			var req schemas.GenerateActionsRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "tenant-1", req.UserID)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(schemas.GenerateActionsResponse{Actions: sampleBatch()})
		}))
		defer backend.Close()

		client, err := NewReasoningClient(backend.URL+"/", nil)
		require.NoError(t, err)
		defer client.client.CloseIdleConnections()

		batch, err := client.PlanActions(context.Background(), schemas.GenerateActionsRequest{
			URL: "https://example.com", HTML: "<body></body>", UserID: "tenant-1",
		})
		require.NoError(t, err)
		assert.Equal(t, sampleBatch(), batch)
	})

	t.Run("backend error surfaces message", func(t *testing.T) {
		t.Parallel()
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(schemas.ErrorResponse{Error: "failed to generate actions"})
		}))
		defer backend.Close()

		client, err := NewReasoningClient(backend.URL, nil)
		require.NoError(t, err)
		defer client.client.CloseIdleConnections()

		_, err = client.PlanActions(context.Background(), schemas.GenerateActionsRequest{UserID: "tenant-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to generate actions")
	})

	t.Run("unreachable backend", func(t *testing.T) {
		t.Parallel()
		client, err := NewReasoningClient("http://127.0.0.1:1", nil)
		require.NoError(t, err)

		_, err = client.PlanActions(context.Background(), schemas.GenerateActionsRequest{UserID: "tenant-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unreachable")
	})

	t.Run("requires base URL", func(t *testing.T) {
		t.Parallel()
		_, err := NewReasoningClient("  ", nil)
		require.Error(t, err)
	})
}
