package status

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/courseforge/internal/orchestrator"
)

// RunOverview is the human-facing summary of one persisted run.
type RunOverview struct {
	RunID          string
	Status         orchestrator.RunStatus
	Scope          orchestrator.Scope
	UnitsTotal     int
	UnitsCompleted int
	ContentRefs    []string
	ImageCount     int
	PendingUnits   []string
}

// Gather reads a run's state and continuation from the store and flattens
// them into an overview. Returns nil when the run does not exist.
func Gather(ctx context.Context, store orchestrator.StateStore, runID string) (*RunOverview, error) {
	state, err := store.LoadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	overview := &RunOverview{
		RunID:          state.RunID,
		Status:         state.Status,
		Scope:          state.Scope,
		UnitsTotal:     state.UnitsTotal,
		UnitsCompleted: state.UnitsCompleted,
		ContentRefs:    append([]string(nil), state.Order...),
		ImageCount:     len(state.Bindings),
	}

	cont, err := store.LoadContinuation(ctx, runID)
	if err != nil {
		return nil, err
	}
	if cont != nil {
		for _, u := range cont.Units {
			overview.PendingUnits = append(overview.PendingUnits, u.ID)
		}
	}
	return overview, nil
}

// List gathers overviews for every persisted run.
func List(ctx context.Context, store orchestrator.StateStore) ([]RunOverview, error) {
	ids, err := store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	overviews := make([]RunOverview, 0, len(ids))
	for _, id := range ids {
		o, err := Gather(ctx, store, id)
		if err != nil {
			return nil, err
		}
		if o != nil {
			overviews = append(overviews, *o)
		}
	}
	return overviews, nil
}

// Format renders an overview as indented text for terminal output.
func Format(o *RunOverview) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", o.RunID)
	fmt.Fprintf(&b, "  status: %s (%s scope)\n", o.Status, o.Scope)
	fmt.Fprintf(&b, "  units:  %d/%d complete\n", o.UnitsCompleted, o.UnitsTotal)
	fmt.Fprintf(&b, "  content: %d refs, %d images\n", len(o.ContentRefs), o.ImageCount)
	if len(o.PendingUnits) > 0 {
		fmt.Fprintf(&b, "  pending: %s\n", strings.Join(o.PendingUnits, ", "))
	}
	return b.String()
}
