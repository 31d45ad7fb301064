package orchestrator

import "context"

// Scope distinguishes a full generation run from a narrow regeneration run.
type Scope string

const (
	ScopeFull   Scope = "full"
	ScopeNarrow Scope = "narrow"
)

// RunStatus is the completion status of the accumulated artifact.
type RunStatus string

const (
	RunPartial  RunStatus = "partial"
	RunComplete RunStatus = "complete"
)

// RunState is the canonical accumulating artifact for one execution. All
// mutation goes through the Accumulator's merge entry point.
type RunState struct {
	RunID          string `json:"runId"`
	Scope          Scope  `json:"scope"`
	UnitsTotal     int    `json:"unitsTotal"`
	UnitsCompleted int    `json:"unitsCompleted"`

	// Order preserves outline insertion order of content refs; Content keys
	// are unique by construction.
	Order   []string                `json:"order"`
	Content map[string]ContentEntry `json:"content"`

	Bindings map[int]ImageBinding `json:"bindings"`
	Status   RunStatus            `json:"status"`
}

// NewRunState creates an empty RunState expecting unitsTotal units.
func NewRunState(runID string, scope Scope, unitsTotal int) *RunState {
	return &RunState{
		RunID:      runID,
		Scope:      scope,
		UnitsTotal: unitsTotal,
		Content:    make(map[string]ContentEntry),
		Bindings:   make(map[int]ImageBinding),
		Status:     RunPartial,
	}
}

// Clone returns a deep copy safe to hand to persistence or downstream callers.
func (s *RunState) Clone() *RunState {
	dst := *s

	dst.Order = make([]string, len(s.Order))
	copy(dst.Order, s.Order)

	dst.Content = make(map[string]ContentEntry, len(s.Content))
	for k, v := range s.Content {
		e := v
		if v.VisualTags != nil {
			e.VisualTags = make([]string, len(v.VisualTags))
			copy(e.VisualTags, v.VisualTags)
		}
		dst.Content[k] = e
	}

	dst.Bindings = make(map[int]ImageBinding, len(s.Bindings))
	for k, v := range s.Bindings {
		dst.Bindings[k] = v
	}

	return &dst
}

// MaxImageID returns the highest bound image id, or zero.
func (s *RunState) MaxImageID() int {
	max := 0
	for id := range s.Bindings {
		if id > max {
			max = id
		}
	}
	return max
}

// EntriesInOrder returns the accumulated content in insertion order.
func (s *RunState) EntriesInOrder() []ContentEntry {
	out := make([]ContentEntry, 0, len(s.Order))
	for _, ref := range s.Order {
		if e, ok := s.Content[ref]; ok {
			out = append(out, e)
		}
	}
	return out
}

// StateStore persists RunStates and continuations to durable storage so a
// follow-up invocation can resume from the last committed merge.
// Implementations: runstore.MemStore (testing), runstore.KuzuStore
// (production).
type StateStore interface {
	// SaveRun writes the full state of a run, replacing any prior version.
	SaveRun(ctx context.Context, state *RunState) error

	// LoadRun reads a run back by id. Returns nil (no error) when the run
	// does not exist.
	LoadRun(ctx context.Context, runID string) (*RunState, error)

	// SaveContinuation records the units a partially-completed run still
	// needs. An empty continuation clears the record.
	SaveContinuation(ctx context.Context, cont Continuation) error

	// LoadContinuation reads the pending continuation for a run. Returns an
	// empty continuation when none is recorded.
	LoadContinuation(ctx context.Context, runID string) (*Continuation, error)

	// ListRuns returns all persisted run ids.
	ListRuns(ctx context.Context) ([]string, error)
}
