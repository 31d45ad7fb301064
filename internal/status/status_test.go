package status

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/courseforge/internal/orchestrator"
	"github.com/dusk-indust/courseforge/internal/runstore"
)

func seedRun(t *testing.T, store *runstore.MemStore) *orchestrator.RunState {
	t.Helper()
	state := orchestrator.NewRunState("run-1", orchestrator.ScopeFull, 3)
	state.UnitsCompleted = 2
	state.Order = []string{"01-01", "01-02"}
	state.Content["01-01"] = orchestrator.ContentEntry{TargetRef: "01-01", Kind: "lesson", Body: "a"}
	state.Content["01-02"] = orchestrator.ContentEntry{TargetRef: "01-02", Kind: "lesson", Body: "b"}
	state.Bindings[1] = orchestrator.ImageBinding{ID: 1, StorageKey: "runs/run-1/images/0001.png"}
	require.NoError(t, store.SaveRun(context.Background(), state))
	return state
}

func TestGather_FlattensStateAndContinuation(t *testing.T) {
	store := runstore.NewMemStore()
	seedRun(t, store)
	require.NoError(t, store.SaveContinuation(context.Background(), orchestrator.Continuation{
		RunID: "run-1",
		Units: []orchestrator.WorkUnit{{ID: "u3-cont", Kind: orchestrator.KindLessonBatch}},
	}))

	o, err := Gather(context.Background(), store, "run-1")
	require.NoError(t, err)
	require.NotNil(t, o)

	assert.Equal(t, "run-1", o.RunID)
	assert.Equal(t, orchestrator.RunPartial, o.Status)
	assert.Equal(t, 2, o.UnitsCompleted)
	assert.Equal(t, []string{"01-01", "01-02"}, o.ContentRefs)
	assert.Equal(t, 1, o.ImageCount)
	assert.Equal(t, []string{"u3-cont"}, o.PendingUnits)
}

func TestGather_UnknownRunIsNil(t *testing.T) {
	store := runstore.NewMemStore()

	o, err := Gather(context.Background(), store, "missing")
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestList_AllRuns(t *testing.T) {
	store := runstore.NewMemStore()
	seedRun(t, store)
	require.NoError(t, store.SaveRun(context.Background(),
		orchestrator.NewRunState("run-2", orchestrator.ScopeFull, 1)))

	overviews, err := List(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, overviews, 2)
	assert.Equal(t, "run-1", overviews[0].RunID)
	assert.Equal(t, "run-2", overviews[1].RunID)
}

func TestFormat_IncludesPending(t *testing.T) {
	o := &RunOverview{
		RunID:          "run-1",
		Status:         orchestrator.RunPartial,
		Scope:          orchestrator.ScopeFull,
		UnitsTotal:     3,
		UnitsCompleted: 2,
		ContentRefs:    []string{"01-01"},
		ImageCount:     1,
		PendingUnits:   []string{"u3-cont"},
	}

	out := Format(o)
	assert.Contains(t, out, "run run-1")
	assert.Contains(t, out, "2/3 complete")
	assert.Contains(t, out, "u3-cont")
}
