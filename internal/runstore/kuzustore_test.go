//go:build cgo

package runstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/courseforge/internal/orchestrator"
)

// newTestStore creates a fresh in-memory KuzuStore with an initialized schema.
// It registers a cleanup function to close the store when the test finishes.
func newTestStore(t *testing.T) *KuzuStore {
	t.Helper()
	s, err := NewKuzuStore()
	require.NoError(t, err, "NewKuzuStore should not fail")
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.InitSchema(context.Background()), "InitSchema should not fail")
	return s
}

func TestKuzuStore_InitSchema_Idempotent(t *testing.T) {
	s, err := NewKuzuStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.InitSchema(ctx))
	require.NoError(t, s.InitSchema(ctx))
}

func TestKuzuStore_RunRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := sampleState("run-1")
	require.NoError(t, s.SaveRun(ctx, state))

	got, err := s.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, state.Scope, got.Scope)
	assert.Equal(t, state.Status, got.Status)
	assert.Equal(t, state.UnitsTotal, got.UnitsTotal)
	assert.Equal(t, state.UnitsCompleted, got.UnitsCompleted)
	assert.Equal(t, state.Order, got.Order)
	assert.Equal(t, state.Content, got.Content)
	assert.Equal(t, state.Bindings, got.Bindings)
}

func TestKuzuStore_SaveRun_ReplacesPriorVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := sampleState("run-1")
	require.NoError(t, s.SaveRun(ctx, state))

	state.UnitsCompleted = 2
	state.Status = orchestrator.RunComplete
	entry := state.Content["01-01"]
	entry.Body = "rewritten"
	state.Content["01-01"] = entry
	require.NoError(t, s.SaveRun(ctx, state))

	got, err := s.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.RunComplete, got.Status)
	assert.Equal(t, "rewritten", got.Content["01-01"].Body)
	assert.Len(t, got.Order, 2, "no duplicate entries after overwrite")
}

func TestKuzuStore_LoadRun_MissingIsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.LoadRun(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestKuzuStore_ContinuationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cont, err := s.LoadContinuation(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, cont.Empty())

	pending := orchestrator.Continuation{
		RunID: "run-1",
		Units: []orchestrator.WorkUnit{
			{ID: "u2-cont", Kind: orchestrator.KindLessonBatch, TargetRefs: []string{"01-04", "01-05"}},
		},
	}
	require.NoError(t, s.SaveContinuation(ctx, pending))

	cont, err = s.LoadContinuation(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, cont.Units, 1)
	assert.Equal(t, "u2-cont", cont.Units[0].ID)
	assert.Equal(t, []string{"01-04", "01-05"}, cont.Units[0].TargetRefs)

	require.NoError(t, s.SaveContinuation(ctx, orchestrator.Continuation{RunID: "run-1"}))
	cont, err = s.LoadContinuation(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, cont.Empty())
}

func TestKuzuStore_ListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-b", "run-a"} {
		require.NoError(t, s.SaveRun(ctx, orchestrator.NewRunState(id, orchestrator.ScopeFull, 1)))
	}

	ids, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b"}, ids)
}
