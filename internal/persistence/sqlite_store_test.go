package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/petrijr/gantry/pkg/api"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteSnapshotStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteSnapshotStore(openTestDB(t))
	if err != nil {
		t.Fatalf("NewSQLiteSnapshotStore failed: %v", err)
	}

	started := time.Now().Add(-time.Minute).Round(0)
	w := &api.Workflow{
		ID:     "wf-1",
		Name:   "deploy",
		Status: api.StatusRunning,
		Steps: []api.Step{
			{
				ID:        "build",
				Type:      "shell",
				Status:    api.StepCompleted,
				StartedAt: &started,
				Config:    map[string]any{"cmd": "make", "env": map[string]any{"CI": "1"}},
				Result:    map[string]any{"artifact": "app.tar.gz"},
			},
			{ID: "deploy", Type: "shell", DependsOn: []string{"build"}, Status: api.StepPending},
		},
		Data: map[string]any{"version": "1.4.2", "hosts": []any{"a", "b"}},
		History: []api.HistoryEntry{
			{WorkflowID: "wf-1", From: api.StatusCreated, To: api.StatusRunning, At: time.Now().Round(0)},
		},
		CreatedAt: time.Now().Round(0),
	}

	if err := store.SaveSnapshot(ctx, w); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	got, err := store.GetSnapshot(ctx, "wf-1")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if got.Name != "deploy" || got.Status != api.StatusRunning {
		t.Fatalf("got %s/%s, want deploy/RUNNING", got.Name, got.Status)
	}
	if len(got.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(got.Steps))
	}
	if got.Steps[0].Result["artifact"] != "app.tar.gz" {
		t.Fatalf("step result lost in round trip: %v", got.Steps[0].Result)
	}
	env, ok := got.Steps[0].Config["env"].(map[string]any)
	if !ok || env["CI"] != "1" {
		t.Fatalf("nested config lost in round trip: %v", got.Steps[0].Config)
	}
	if got.Steps[0].StartedAt == nil || !got.Steps[0].StartedAt.Equal(started) {
		t.Fatalf("StartedAt lost in round trip: %v", got.Steps[0].StartedAt)
	}
	hosts, ok := got.Data["hosts"].([]any)
	if !ok || len(hosts) != 2 {
		t.Fatalf("data slice lost in round trip: %v", got.Data["hosts"])
	}
	if len(got.History) != 1 || got.History[0].To != api.StatusRunning {
		t.Fatalf("history lost in round trip: %v", got.History)
	}
}

func TestSQLiteSnapshotStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteSnapshotStore(openTestDB(t))
	if err != nil {
		t.Fatalf("NewSQLiteSnapshotStore failed: %v", err)
	}

	w := sampleWorkflow("wf-1", api.StatusRunning)
	if err := store.SaveSnapshot(ctx, w); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	w.Status = api.StatusCompleted
	w.Steps[1].Status = api.StepCompleted
	if err := store.SaveSnapshot(ctx, w); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := store.GetSnapshot(ctx, "wf-1")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if got.Status != api.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got.Status)
	}
	if got.Steps[1].Status != api.StepCompleted {
		t.Fatalf("step status = %s, want COMPLETED", got.Steps[1].Status)
	}
}

func TestSQLiteSnapshotStore_MissingAndDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteSnapshotStore(openTestDB(t))
	if err != nil {
		t.Fatalf("NewSQLiteSnapshotStore failed: %v", err)
	}

	if _, err := store.GetSnapshot(ctx, "ghost"); err != ErrSnapshotNotFound {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}

	_ = store.SaveSnapshot(ctx, sampleWorkflow("wf-1", api.StatusRunning))
	if err := store.DeleteSnapshot(ctx, "wf-1"); err != nil {
		t.Fatalf("DeleteSnapshot failed: %v", err)
	}
	if _, err := store.GetSnapshot(ctx, "wf-1"); err != ErrSnapshotNotFound {
		t.Fatalf("expected ErrSnapshotNotFound after delete, got %v", err)
	}
}

func TestSQLiteSnapshotStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteSnapshotStore(openTestDB(t))
	if err != nil {
		t.Fatalf("NewSQLiteSnapshotStore failed: %v", err)
	}

	base := time.Now()
	for i, st := range []api.Status{api.StatusRunning, api.StatusCompleted, api.StatusRunning} {
		w := sampleWorkflow("wf-"+string(rune('1'+i)), st)
		w.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := store.SaveSnapshot(ctx, w); err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}
	}

	running, err := store.ListSnapshots(ctx, SnapshotFilter{Status: api.StatusRunning})
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(running) != 2 || running[0].ID != "wf-1" || running[1].ID != "wf-3" {
		t.Fatalf("running = %v, want [wf-1 wf-3] ordered by creation", ids(running))
	}

	named, err := store.ListSnapshots(ctx, SnapshotFilter{Name: "deploy", Status: api.StatusCompleted})
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(named) != 1 || named[0].ID != "wf-2" {
		t.Fatalf("named = %v, want [wf-2]", ids(named))
	}
}

func TestSQLiteEventStore_AppendAndList(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store, err := NewSQLiteEventStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteEventStore failed: %v", err)
	}

	events := []api.Event{
		{WorkflowID: "wf-1", WorkflowName: "deploy", Type: api.EventWorkflowCreated},
		{WorkflowID: "wf-1", WorkflowName: "deploy", Type: api.EventWorkflowStateChanged, From: api.StatusCreated, To: api.StatusRunning},
		{WorkflowID: "wf-1", WorkflowName: "deploy", Type: api.EventStepStarted, Step: "build"},
		{WorkflowID: "wf-1", WorkflowName: "deploy", Type: api.EventStepRetry, Step: "build", Attempt: 1, Detail: "exit status 1"},
		{WorkflowID: "wf-1", WorkflowName: "deploy", Type: api.EventStepCompleted, Step: "build", Duration: 250 * time.Millisecond},
	}
	for _, ev := range events {
		if err := store.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}
	_ = store.AppendEvent(ctx, api.Event{WorkflowID: "other", Type: api.EventWorkflowCreated})

	got, err := store.ListEvents(ctx, "wf-1")
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(got))
	}
	for i, want := range events {
		if got[i].Type != want.Type || got[i].Step != want.Step {
			t.Fatalf("event %d = %s/%s, want %s/%s", i, got[i].Type, got[i].Step, want.Type, want.Step)
		}
	}
	if got[1].From != api.StatusCreated || got[1].To != api.StatusRunning {
		t.Fatalf("transition lost: %s -> %s", got[1].From, got[1].To)
	}
	if got[3].Attempt != 1 || got[3].Detail != "exit status 1" {
		t.Fatalf("retry detail lost: attempt=%d detail=%q", got[3].Attempt, got[3].Detail)
	}
	if got[4].Duration != 250*time.Millisecond {
		t.Fatalf("duration lost: %v", got[4].Duration)
	}
	if got[0].At.IsZero() {
		t.Fatal("expected a default timestamp for zero At")
	}
}

func TestObserver_SwallowsStoreErrors(t *testing.T) {
	// A failing event store must never surface to the caller.
	obs := NewObserver(failingEventStore{}, nil)
	obs.OnStepCompleted(context.Background(), api.Event{WorkflowID: "wf-1", Type: api.EventStepCompleted})
}

func TestObserver_AppendsAllCallbacks(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	obs := NewObserver(mem, nil)

	obs.OnWorkflowCreated(ctx, api.Event{WorkflowID: "wf-1", Type: api.EventWorkflowCreated})
	obs.OnStateChanged(ctx, api.Event{WorkflowID: "wf-1", Type: api.EventWorkflowStateChanged})
	obs.OnStepStarted(ctx, api.Event{WorkflowID: "wf-1", Type: api.EventStepStarted})
	obs.OnStepCompleted(ctx, api.Event{WorkflowID: "wf-1", Type: api.EventStepCompleted})
	obs.OnStepFailed(ctx, api.Event{WorkflowID: "wf-1", Type: api.EventStepFailed})
	obs.OnStepRetry(ctx, api.Event{WorkflowID: "wf-1", Type: api.EventStepRetry})
	obs.OnCheckpointCreated(ctx, api.Event{WorkflowID: "wf-1", Type: api.EventCheckpointCreated})
	obs.OnRollback(ctx, api.Event{WorkflowID: "wf-1", Type: api.EventWorkflowRollback})

	got, _ := mem.ListEvents(ctx, "wf-1")
	if len(got) != 8 {
		t.Fatalf("expected 8 events, got %d", len(got))
	}
}

type failingEventStore struct{}

func (failingEventStore) AppendEvent(ctx context.Context, ev api.Event) error {
	return context.DeadlineExceeded
}
func (failingEventStore) ListEvents(ctx context.Context, workflowID string) ([]api.Event, error) {
	return nil, nil
}
