package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Phase is the lifecycle state of a run as seen by the scheduler.
type Phase string

const (
	PhaseScheduled          Phase = "scheduled"
	PhaseRunning            Phase = "running"
	PhaseCompleted          Phase = "completed"
	PhaseFailed             Phase = "failed"
	PhasePartiallyCompleted Phase = "partially_completed"
)

// UnitFailure records one WorkUnit that did not finish its pipeline.
type UnitFailure struct {
	UnitID string
	Stage  Stage
	Err    error
}

// RunReport summarizes one scheduler invocation.
type RunReport struct {
	RunID        string
	Phase        Phase
	Completed    []string
	Failed       []UnitFailure
	Continuation Continuation
	State        *RunState
}

// Scheduler fans WorkUnits out across a bounded worker pool and drives each
// unit through its stage pipeline. Unit failures are isolated: siblings keep
// running and the failure lands in the report. A merge conflict is the one
// exception and fails the whole run.
type Scheduler struct {
	adapter  *Adapter
	acc      *Accumulator
	store    StateStore
	progress *ProgressReporter
	log      *zap.Logger
	cfg      Config

	mu        sync.Mutex
	completed []string
	failed    []UnitFailure
	deferred  []WorkUnit
}

// NewScheduler builds a scheduler over an adapter and accumulator. store and
// progress may be nil; log may be nil.
func NewScheduler(adapter *Adapter, acc *Accumulator, store StateStore, progress *ProgressReporter, log *zap.Logger, cfg Config) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		adapter:  adapter,
		acc:      acc,
		store:    store,
		progress: progress,
		log:      log,
		cfg:      cfg.withDefaults(),
	}
}

// Run executes units in outline order under the configured concurrency cap
// and run-level time budget. Units the guard has no time left for are not
// started; they are deferred into the report's continuation.
func (s *Scheduler) Run(ctx context.Context, runID string, units []WorkUnit) (*RunReport, error) {
	guard := NewTimeoutGuard(s.cfg.Budget, s.cfg.Margin)
	sem := semaphore.NewWeighted(s.cfg.MaxConcurrent)
	g, gctx := errgroup.WithContext(ctx)

	s.log.Info("run scheduled",
		zap.String("run", runID),
		zap.Int("units", len(units)),
		zap.Int64("max_concurrent", s.cfg.MaxConcurrent))

	for _, unit := range units {
		if guard.ShouldYield() {
			s.deferUnit(unit)
			s.emit(unit.ID, 0, ProgressPending, "deferred, time budget exhausted")
			continue
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			// Group canceled by a fatal merge conflict; remaining units
			// are deferred so a follow-up can pick them up.
			s.deferUnit(unit)
			continue
		}
		// The budget may have run out while this unit waited on the
		// semaphore behind a slow sibling. Re-check before launching so
		// a non-interruptible pipeline never starts past the ceiling.
		if guard.ShouldYield() {
			sem.Release(1)
			s.deferUnit(unit)
			s.emit(unit.ID, 0, ProgressPending, "deferred, time budget exhausted")
			continue
		}
		unit := unit
		g.Go(func() error {
			defer sem.Release(1)
			return s.runPipeline(gctx, unit, guard)
		})
	}

	err := g.Wait()

	report := s.buildReport(runID, err)
	if s.store != nil {
		if cerr := s.store.SaveContinuation(ctx, report.Continuation); cerr != nil {
			s.log.Warn("continuation not persisted", zap.String("run", runID), zap.Error(cerr))
		}
	}

	s.log.Info("run finished",
		zap.String("run", runID),
		zap.String("phase", string(report.Phase)),
		zap.Int("completed", len(report.Completed)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("pending", len(report.Continuation.Units)))

	if err != nil {
		return report, err
	}
	return report, nil
}

// runPipeline drives one unit through its stages sequentially, threading the
// cumulative payload forward. Returns an error only for run-fatal conditions.
func (s *Scheduler) runPipeline(ctx context.Context, unit WorkUnit, guard *TimeoutGuard) error {
	payload := s.seedPayload(unit)
	for _, stage := range pipelineFor(unit.Kind) {
		s.emit(unit.ID, stage, ProgressWorking, "")
		res := s.adapter.Invoke(ctx, stage, unit, payload, guard)

		switch res.Status {
		case StatusFailed:
			s.emit(unit.ID, stage, ProgressFailed, res.Err.Error())
			s.recordFailure(unit.ID, stage, res.Err)
			return nil

		case StatusPartial:
			// Commit what the stage finished and hand the rest to a
			// continuation unit. Partial merges never advance the
			// completed count.
			if err := s.acc.Merge(ctx, unit, res.Payload, false); err != nil {
				return s.fatalMerge(unit, stage, err)
			}
			s.deferUnit(continuationUnit(unit))
			s.emit(unit.ID, stage, ProgressPartial,
				fmt.Sprintf("%d targets remaining", len(res.Payload.Remaining)))
			return nil
		}

		payload = res.Payload
	}

	if err := s.acc.Merge(ctx, unit, payload, true); err != nil {
		last := pipelineFor(unit.Kind)
		return s.fatalMerge(unit, last[len(last)-1], err)
	}
	s.markCompleted(unit.ID)
	s.emit(unit.ID, 0, ProgressComplete, "")
	return nil
}

// fatalMerge classifies a merge error. A conflict cancels the run; anything
// else is treated as a unit failure.
func (s *Scheduler) fatalMerge(unit WorkUnit, stage Stage, err error) error {
	var conflict *MergeConflictError
	if errors.As(err, &conflict) {
		s.recordFailure(unit.ID, stage, err)
		return err
	}
	s.recordFailure(unit.ID, stage, err)
	return nil
}

// continuationUnit derives the follow-up unit for a checkpointed one. It
// keeps the full target list; committed refs are seeded back into the
// pipeline on resume so the writer skips them.
func continuationUnit(unit WorkUnit) WorkUnit {
	return WorkUnit{
		ID:         unit.ID + "-cont",
		Kind:       unit.Kind,
		TargetRefs: unit.TargetRefs,
		Context:    unit.Context,
	}
}

// seedPayload rebuilds the content entries a unit already committed in an
// earlier invocation, so downstream stages see the full batch. Regeneration
// units start clean; their targets must be rewritten, not skipped.
func (s *Scheduler) seedPayload(unit WorkUnit) StagePayload {
	var payload StagePayload
	if unit.Kind.IsRegen() {
		return payload
	}
	state := s.acc.State()
	for _, ref := range unit.TargetRefs {
		if entry, ok := state.Content[ref]; ok {
			payload.Entries = append(payload.Entries, entry)
		}
	}
	return payload
}

func (s *Scheduler) buildReport(runID string, runErr error) *RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &RunReport{
		RunID:        runID,
		Completed:    append([]string(nil), s.completed...),
		Failed:       append([]UnitFailure(nil), s.failed...),
		Continuation: Continuation{RunID: runID, Units: append([]WorkUnit(nil), s.deferred...)},
		State:        s.acc.State(),
	}

	switch {
	case runErr != nil:
		report.Phase = PhaseFailed
	case !report.Continuation.Empty():
		report.Phase = PhasePartiallyCompleted
	case len(report.Failed) > 0:
		report.Phase = PhaseFailed
	default:
		report.Phase = PhaseCompleted
	}
	return report
}

func (s *Scheduler) markCompleted(unitID string) {
	s.mu.Lock()
	s.completed = append(s.completed, unitID)
	s.mu.Unlock()
}

func (s *Scheduler) recordFailure(unitID string, stage Stage, err error) {
	s.mu.Lock()
	s.failed = append(s.failed, UnitFailure{UnitID: unitID, Stage: stage, Err: err})
	s.mu.Unlock()
	s.log.Warn("unit failed",
		zap.String("unit", unitID),
		zap.Stringer("stage", stage),
		zap.Error(err))
}

func (s *Scheduler) deferUnit(unit WorkUnit) {
	s.mu.Lock()
	s.deferred = append(s.deferred, unit)
	s.mu.Unlock()
}

func (s *Scheduler) emit(unitID string, stage Stage, status ProgressStatus, msg string) {
	if s.progress == nil {
		return
	}
	s.progress.Emit(ProgressEvent{UnitID: unitID, Stage: stage, Status: status, Message: msg})
}
