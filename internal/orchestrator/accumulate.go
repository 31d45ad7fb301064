package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Accumulator owns the run's shared RunState. All mutation goes through
// Merge, which is safe under concurrent invocation, idempotent per unit, and
// commutative across units so batches may complete in any order.
type Accumulator struct {
	store     StateStore
	assembler Assembler
	log       *zap.Logger

	mu     sync.Mutex
	state  *RunState
	merged map[string]bool // unit ids already committed
	fired  bool            // completion signal emitted
}

// NewAccumulator wraps state. store persists after every merge and may be
// nil in tests; assembler is the downstream completion trigger and may be nil.
func NewAccumulator(state *RunState, store StateStore, assembler Assembler, log *zap.Logger) *Accumulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Accumulator{
		store:     store,
		assembler: assembler,
		log:       log,
		state:     state,
		merged:    make(map[string]bool),
	}
}

// State returns a snapshot of the current run state.
func (a *Accumulator) State() *RunState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

// Merge commits one unit's completed pipeline output into the run state:
// content entries keyed by target ref, image bindings keyed by id. Re-merging
// the same unit is a no-op. On full scope a ref already present wins
// (first-writer-wins: inputs per ref are deterministic within a run); on
// narrow scope the unit's own refs are replaced (last-writer-wins for exactly
// the regenerated targets). unitDone marks the unit's pipeline fully finished,
// advancing the monotonic completed count.
func (a *Accumulator) Merge(ctx context.Context, unit WorkUnit, payload StagePayload, unitDone bool) error {
	a.mu.Lock()

	if a.merged[unit.ID] {
		a.mu.Unlock()
		return nil
	}

	narrow := unit.Context.Scope == ScopeNarrow
	replace := make(map[string]bool)
	if narrow {
		for _, ref := range unit.TargetRefs {
			replace[ref] = true
		}
	}

	// Validate bindings before touching anything so a conflict leaves the
	// state unmodified.
	for _, b := range payload.Bindings {
		if existing, ok := a.state.Bindings[b.ID]; ok && existing != b {
			a.mu.Unlock()
			return &MergeConflictError{ImageID: b.ID, Existing: existing, Incoming: b}
		}
	}

	for _, e := range payload.Entries {
		if _, ok := a.state.Content[e.TargetRef]; ok {
			if !replace[e.TargetRef] {
				continue
			}
			a.state.Content[e.TargetRef] = e
			continue
		}
		a.state.Content[e.TargetRef] = e
		a.state.Order = append(a.state.Order, e.TargetRef)
	}
	for _, b := range payload.Bindings {
		a.state.Bindings[b.ID] = b
	}

	a.merged[unit.ID] = true
	if unitDone && !unit.Kind.IsRegen() {
		a.state.UnitsCompleted++
	}
	if a.state.UnitsCompleted >= a.state.UnitsTotal {
		a.state.Status = RunComplete
	}

	snapshot := a.state.Clone()
	fire := a.state.Status == RunComplete && !a.fired && a.assembler != nil
	if fire {
		a.fired = true
	}
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.SaveRun(ctx, snapshot); err != nil {
			return fmt.Errorf("persist run state: %w", err)
		}
	}

	if fire {
		a.log.Info("run complete, triggering assembly",
			zap.String("run", snapshot.RunID),
			zap.Int("entries", len(snapshot.Content)))
		if err := a.assembler.Assemble(ctx, snapshot); err != nil {
			return fmt.Errorf("assembly trigger: %w", err)
		}
	}
	return nil
}
