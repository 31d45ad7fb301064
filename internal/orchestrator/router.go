package orchestrator

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dusk-indust/courseforge/internal/outline"
)

// Mode selects between a fresh generation run and a targeted regeneration.
type Mode string

const (
	ModeNew        Mode = "new"
	ModeRegenerate Mode = "regenerate"
)

// Request is one generation request as received from a caller.
type Request struct {
	Outline    *outline.Document
	OutlineRef string
	Mode       Mode

	// TargetRefs names the lessons or labs to regenerate. Regenerate only.
	TargetRefs []string

	// PriorRunID is the completed run whose output the regeneration
	// patches. Regenerate only.
	PriorRunID string
}

// Plan is a routed request: a run id, the scope, the units to execute, and
// for regenerations the prior state the results patch into.
type Plan struct {
	RunID    string
	Scope    Scope
	Units    []WorkUnit
	Seed     *RunState
	Warnings []string
}

// Router turns Requests into executable Plans. New runs get a fresh run id
// and a full decomposition; regenerations resolve the prior run and route
// their targets into narrow-scope units.
type Router struct {
	decomposer *Decomposer
	store      StateStore
	log        *zap.Logger
	cfg        Config

	// newID is swapped out in tests for deterministic run ids.
	newID func() string
}

// NewRouter builds a router. store is required for regeneration requests and
// may be nil when only new runs are routed.
func NewRouter(decomposer *Decomposer, store StateStore, log *zap.Logger, cfg Config) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		decomposer: decomposer,
		store:      store,
		log:        log,
		cfg:        cfg.withDefaults(),
		newID:      uuid.NewString,
	}
}

// Route validates the request's outline and produces the execution plan.
func (r *Router) Route(ctx context.Context, req Request) (*Plan, error) {
	if req.Outline == nil {
		return nil, structuralf("request has no outline")
	}
	if err := req.Outline.Validate(); err != nil {
		return nil, err
	}

	switch req.Mode {
	case ModeNew, "":
		return r.routeNew(req)
	case ModeRegenerate:
		return r.routeRegen(ctx, req)
	default:
		return nil, structuralf("unknown mode %q", req.Mode)
	}
}

func (r *Router) routeNew(req Request) (*Plan, error) {
	runID := r.newID()
	rc := NewRunContext(runID, req.OutlineRef, r.cfg.Model, r.cfg.Style, ScopeFull, 0)

	units, warnings, err := r.decomposer.Decompose(req.Outline, rc)
	if err != nil {
		return nil, err
	}

	r.log.Info("routed new run",
		zap.String("run", runID),
		zap.Int("units", len(units)))

	return &Plan{
		RunID:    runID,
		Scope:    ScopeFull,
		Units:    units,
		Seed:     NewRunState(runID, ScopeFull, len(units)),
		Warnings: warnings,
	}, nil
}

func (r *Router) routeRegen(ctx context.Context, req Request) (*Plan, error) {
	if req.PriorRunID == "" {
		return nil, structuralf("regeneration needs a prior run id")
	}
	if r.store == nil {
		return nil, structuralf("no run store configured, cannot resolve prior run %s", req.PriorRunID)
	}

	prior, err := r.store.LoadRun(ctx, req.PriorRunID)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, structuralf("prior run %s not found", req.PriorRunID)
	}

	// Fresh image ids start past everything the prior run allocated, so
	// regenerated visuals never collide with surviving bindings.
	rc := NewRunContext(req.PriorRunID, req.OutlineRef, r.cfg.Model, r.cfg.Style, ScopeNarrow, prior.MaxImageID())

	unit, err := r.decomposer.DecomposeTargets(req.Outline, rc, req.TargetRefs)
	if err != nil {
		return nil, err
	}

	seed := prior.Clone()
	seed.Scope = ScopeNarrow

	r.log.Info("routed regeneration",
		zap.String("run", req.PriorRunID),
		zap.Strings("targets", req.TargetRefs))

	return &Plan{
		RunID: req.PriorRunID,
		Scope: ScopeNarrow,
		Units: []WorkUnit{*unit},
		Seed:  seed,
	}, nil
}
