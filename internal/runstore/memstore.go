package runstore

import (
	"context"
	"sort"
	"sync"

	"github.com/dusk-indust/courseforge/internal/orchestrator"
)

// Compile-time assertion: *MemStore satisfies StateStore.
var _ orchestrator.StateStore = (*MemStore)(nil)

// MemStore implements orchestrator.StateStore using Go maps. Thread-safe via
// sync.RWMutex. States are cloned on the way in and out so callers never
// share memory with the store.
type MemStore struct {
	mu    sync.RWMutex
	runs  map[string]*orchestrator.RunState
	conts map[string]orchestrator.Continuation
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		runs:  make(map[string]*orchestrator.RunState),
		conts: make(map[string]orchestrator.Continuation),
	}
}

// SaveRun stores a deep copy of the state keyed by run id.
func (m *MemStore) SaveRun(_ context.Context, state *orchestrator.RunState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[state.RunID] = state.Clone()
	return nil
}

// LoadRun returns a copy of the stored state, or nil when unknown.
func (m *MemStore) LoadRun(_ context.Context, runID string) (*orchestrator.RunState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

// SaveContinuation records pending units for a run. An empty continuation
// clears the record.
func (m *MemStore) SaveContinuation(_ context.Context, cont orchestrator.Continuation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cont.Empty() {
		delete(m.conts, cont.RunID)
		return nil
	}
	m.conts[cont.RunID] = cont
	return nil
}

// LoadContinuation returns the pending continuation, empty when none exists.
func (m *MemStore) LoadContinuation(_ context.Context, runID string) (*orchestrator.Continuation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cont, ok := m.conts[runID]
	if !ok {
		return &orchestrator.Continuation{RunID: runID}, nil
	}
	copied := cont
	copied.Units = append([]orchestrator.WorkUnit(nil), cont.Units...)
	return &copied, nil
}

// ListRuns returns all stored run ids in sorted order.
func (m *MemStore) ListRuns(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
