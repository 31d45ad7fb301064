package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingAssembler records how many times assembly was triggered.
type countingAssembler struct {
	mu    sync.Mutex
	calls int
	last  *RunState
}

func (c *countingAssembler) Assemble(_ context.Context, state *RunState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.last = state
	return nil
}

func fullUnit(id string, refs ...string) WorkUnit {
	return WorkUnit{ID: id, Kind: KindLessonBatch, TargetRefs: refs,
		Context: NewRunContext("run-1", "c", "m", nil, ScopeFull, 0)}
}

func entriesFor(refs ...string) StagePayload {
	var p StagePayload
	for _, r := range refs {
		p.Entries = append(p.Entries, ContentEntry{TargetRef: r, Kind: "lesson", Body: "body-" + r})
	}
	return p
}

func TestMerge_Idempotent(t *testing.T) {
	acc := NewAccumulator(NewRunState("run-1", ScopeFull, 2), nil, nil, nil)
	unit := fullUnit("u1", "01-01")

	require.NoError(t, acc.Merge(context.Background(), unit, entriesFor("01-01"), true))
	first := acc.State()

	require.NoError(t, acc.Merge(context.Background(), unit, entriesFor("01-01"), true))
	second := acc.State()

	assert.Equal(t, first, second, "re-merging the same unit changes nothing")
	assert.Equal(t, 1, second.UnitsCompleted)
}

func TestMerge_OutOfOrderUnits_Commute(t *testing.T) {
	mergeAll := func(order []WorkUnit) *RunState {
		acc := NewAccumulator(NewRunState("run-1", ScopeFull, 2), nil, nil, nil)
		for _, u := range order {
			require.NoError(t, acc.Merge(context.Background(), u, entriesFor(u.TargetRefs...), true))
		}
		return acc.State()
	}

	u1 := fullUnit("u1", "01-01", "01-02")
	u2 := fullUnit("u2", "01-03")

	a := mergeAll([]WorkUnit{u1, u2})
	b := mergeAll([]WorkUnit{u2, u1})

	assert.Equal(t, a.Content, b.Content)
	assert.Equal(t, a.UnitsCompleted, b.UnitsCompleted)
	assert.ElementsMatch(t, a.Order, b.Order)
}

func TestMerge_DuplicateRef_FirstWriterWins(t *testing.T) {
	acc := NewAccumulator(NewRunState("run-1", ScopeFull, 2), nil, nil, nil)

	p1 := StagePayload{Entries: []ContentEntry{{TargetRef: "01-01", Body: "first"}}}
	p2 := StagePayload{Entries: []ContentEntry{{TargetRef: "01-01", Body: "late duplicate"}}}

	require.NoError(t, acc.Merge(context.Background(), fullUnit("u1", "01-01"), p1, true))
	require.NoError(t, acc.Merge(context.Background(), fullUnit("u2", "01-01"), p2, true))

	assert.Equal(t, "first", acc.State().Content["01-01"].Body)
}

func TestMerge_NarrowScope_ReplacesOnlyTargets(t *testing.T) {
	state := NewRunState("run-1", ScopeFull, 2)
	state.UnitsCompleted = 2
	state.Status = RunComplete
	state.Order = []string{"01-01", "01-02"}
	state.Content["01-01"] = ContentEntry{TargetRef: "01-01", Body: "old one"}
	state.Content["01-02"] = ContentEntry{TargetRef: "01-02", Body: "old two"}

	acc := NewAccumulator(state, nil, nil, nil)

	regen := WorkUnit{ID: "regen-1", Kind: KindLessonRegen, TargetRefs: []string{"01-02"},
		Context: NewRunContext("run-1", "c", "m", nil, ScopeNarrow, 0)}
	p := StagePayload{Entries: []ContentEntry{{TargetRef: "01-02", Body: "new two"}}}

	require.NoError(t, acc.Merge(context.Background(), regen, p, true))

	got := acc.State()
	assert.Equal(t, "old one", got.Content["01-01"].Body)
	assert.Equal(t, "new two", got.Content["01-02"].Body)
	assert.Equal(t, []string{"01-01", "01-02"}, got.Order)
	assert.Equal(t, 2, got.UnitsCompleted, "regen does not disturb the completed count")
}

func TestMerge_BindingConflict_FatalAndUntouched(t *testing.T) {
	acc := NewAccumulator(NewRunState("run-1", ScopeFull, 2), nil, nil, nil)

	ok := StagePayload{Bindings: []ImageBinding{{ID: 1, StorageKey: "k1", Description: "d"}}}
	require.NoError(t, acc.Merge(context.Background(), fullUnit("u1", "a"), ok, true))

	conflict := StagePayload{
		Entries:  []ContentEntry{{TargetRef: "b", Body: "x"}},
		Bindings: []ImageBinding{{ID: 1, StorageKey: "other", Description: "d"}},
	}
	err := acc.Merge(context.Background(), fullUnit("u2", "b"), conflict, true)
	require.Error(t, err)

	var mce *MergeConflictError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, 1, mce.ImageID)

	got := acc.State()
	assert.Equal(t, "k1", got.Bindings[1].StorageKey)
	assert.NotContains(t, got.Content, "b", "conflicting merge leaves state untouched")
}

func TestMerge_IdenticalBinding_Idempotent(t *testing.T) {
	acc := NewAccumulator(NewRunState("run-1", ScopeFull, 2), nil, nil, nil)
	b := ImageBinding{ID: 3, StorageKey: "k", Description: "d"}

	require.NoError(t, acc.Merge(context.Background(), fullUnit("u1", "a"), StagePayload{Bindings: []ImageBinding{b}}, true))
	require.NoError(t, acc.Merge(context.Background(), fullUnit("u2", "b"), StagePayload{Bindings: []ImageBinding{b}}, true))
}

func TestMerge_CompletionSignalExactlyOnce(t *testing.T) {
	asm := &countingAssembler{}
	acc := NewAccumulator(NewRunState("run-1", ScopeFull, 2), nil, asm, nil)

	require.NoError(t, acc.Merge(context.Background(), fullUnit("u1", "01-01"), entriesFor("01-01"), true))
	assert.Equal(t, 0, asm.calls, "not complete yet")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = acc.Merge(context.Background(), fullUnit("u2", "01-02"), entriesFor("01-02"), true)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, asm.calls, "assembly triggered exactly once")
	require.NotNil(t, asm.last)
	assert.Equal(t, RunComplete, asm.last.Status)
}

func TestMerge_PartialUnit_DoesNotAdvanceCount(t *testing.T) {
	acc := NewAccumulator(NewRunState("run-1", ScopeFull, 1), nil, nil, nil)

	p := entriesFor("01-01", "01-02")
	p.Remaining = []string{"01-03"}
	require.NoError(t, acc.Merge(context.Background(), fullUnit("u1", "01-01", "01-02", "01-03"), p, false))

	got := acc.State()
	assert.Equal(t, 0, got.UnitsCompleted)
	assert.Equal(t, RunPartial, got.Status)
	assert.Len(t, got.Content, 2, "completed sub-steps are committed")
}

func TestMerge_MonotonicCompletedCount(t *testing.T) {
	acc := NewAccumulator(NewRunState("run-1", ScopeFull, 3), nil, nil, nil)

	prev := 0
	for i, u := range []WorkUnit{fullUnit("u1", "a"), fullUnit("u2", "b"), fullUnit("u3", "c")} {
		require.NoError(t, acc.Merge(context.Background(), u, entriesFor(u.TargetRefs...), true))
		got := acc.State().UnitsCompleted
		assert.GreaterOrEqual(t, got, prev, "merge %d", i)
		prev = got
	}
	assert.Equal(t, 3, prev)
}
