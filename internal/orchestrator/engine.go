package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/dusk-indust/courseforge/internal/genai"
	"github.com/dusk-indust/courseforge/internal/outline"
)

// Engine is the top-level entry point. It routes a request into a plan, wires
// the stage workers for the request's outline, and drives the scheduler.
type Engine struct {
	client    genai.Client
	store     StateStore
	blobs     BlobStore
	assembler Assembler
	progress  *ProgressReporter
	log       *zap.Logger
	cfg       Config
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithAssembler sets the downstream assembly trigger.
func WithAssembler(a Assembler) EngineOption {
	return func(e *Engine) { e.assembler = a }
}

// WithProgress sets the progress reporter events are emitted to.
func WithProgress(pr *ProgressReporter) EngineOption {
	return func(e *Engine) { e.progress = pr }
}

// WithLogger sets the engine logger.
func WithLogger(log *zap.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// NewEngine builds an engine over a generation client, a run store, and a
// blob store for rendered images.
func NewEngine(client genai.Client, store StateStore, blobs BlobStore, cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{
		client: client,
		store:  store,
		blobs:  blobs,
		log:    zap.NewNop(),
		cfg:    cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute routes and runs one request end to end. The returned report carries
// the run id callers need for status queries, regeneration, and resumption.
func (e *Engine) Execute(ctx context.Context, req Request) (*RunReport, error) {
	router := NewRouter(NewDecomposer(e.cfg.MaxPerBatch, e.cfg.MaxLabsPerBatch), e.store, e.log, e.cfg)

	plan, err := router.Route(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, w := range plan.Warnings {
		e.log.Warn("outline warning", zap.String("run", plan.RunID), zap.String("detail", w))
	}

	return e.run(ctx, req.Outline, plan.RunID, plan.Seed, plan.Units)
}

// Resume picks up a partially-completed run from its persisted state and
// continuation. The outline must be the one the run was started with.
func (e *Engine) Resume(ctx context.Context, doc *outline.Document, runID string) (*RunReport, error) {
	if e.store == nil {
		return nil, structuralf("no run store configured, cannot resume")
	}
	state, err := e.store.LoadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, structuralf("run %s not found", runID)
	}
	cont, err := e.store.LoadContinuation(ctx, runID)
	if err != nil {
		return nil, err
	}
	if cont == nil || cont.Empty() {
		return nil, structuralf("run %s has no pending work", runID)
	}

	// Persisted units lose their in-memory image allocator. Rebuild one
	// shared context, seeded past every id the run has already bound, and
	// hand it to every unit so they draw from a single id sequence.
	rc := NewRunContext(runID, cont.Units[0].Context.OutlineRef, e.cfg.Model, e.cfg.Style, state.Scope, state.MaxImageID())
	units := make([]WorkUnit, len(cont.Units))
	for i, u := range cont.Units {
		u.Context = rc
		units[i] = u
	}

	e.log.Info("resuming run", zap.String("run", runID), zap.Int("pending_units", len(units)))
	return e.run(ctx, doc, runID, state, units)
}

// Status reads back a run's persisted state.
func (e *Engine) Status(ctx context.Context, runID string) (*RunState, error) {
	if e.store == nil {
		return nil, structuralf("no run store configured")
	}
	state, err := e.store.LoadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, structuralf("run %s not found", runID)
	}
	return state, nil
}

func (e *Engine) run(ctx context.Context, doc *outline.Document, runID string, seed *RunState, units []WorkUnit) (*RunReport, error) {
	// Persist the seed up front so the run is queryable and resumable even
	// when every unit gets deferred before its first merge.
	if e.store != nil {
		if err := e.store.SaveRun(ctx, seed); err != nil {
			return nil, err
		}
	}
	acc := NewAccumulator(seed, e.store, e.assembler, e.log)
	sched := NewScheduler(e.buildAdapter(doc), acc, e.store, e.progress, e.log, e.cfg)
	return sched.Run(ctx, runID, units)
}

// buildAdapter registers the stock worker for every pipeline stage.
func (e *Engine) buildAdapter(doc *outline.Document) *Adapter {
	ad := NewAdapter(e.cfg.Retry, e.log)
	ad.Register(StageContentWrite, NewContentWriter(e.client, doc))
	ad.Register(StageVisualPlan, NewVisualPlanner(e.client))
	ad.Register(StageImageRender, NewImageRenderer(e.client, e.blobs))
	ad.Register(StageLabPlan, NewLabPlanner(e.client, doc))
	ad.Register(StageLabWrite, NewLabWriter(e.client))
	return ad
}
