package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Worker executes one pipeline stage for one WorkUnit. input is the merged
// payload of the unit's prior stages; workers carry it forward and add their
// own output. Interruptible workers receive the guard and must check
// ShouldYield between sub-steps; all others get a nil guard.
type Worker interface {
	Run(ctx context.Context, unit WorkUnit, input StagePayload, guard *TimeoutGuard) (StagePayload, error)
}

// WorkerFunc adapts a function to the Worker interface.
type WorkerFunc func(ctx context.Context, unit WorkUnit, input StagePayload, guard *TimeoutGuard) (StagePayload, error)

func (f WorkerFunc) Run(ctx context.Context, unit WorkUnit, input StagePayload, guard *TimeoutGuard) (StagePayload, error) {
	return f(ctx, unit, input, guard)
}

// Adapter wraps every stage worker behind one retry/timeout envelope so the
// orchestrator can invoke, retry, and time-bound any stage identically. On a
// retryable error it waits the policy's backoff and resubmits the same input,
// never a mutated one; a failed call leaves the shared state untouched
// because only the accumulator commits results.
type Adapter struct {
	workers  map[Stage]Worker
	policies map[Stage]RetryPolicy
	stock    RetryPolicy
	log      *zap.Logger
}

// NewAdapter creates an Adapter using stock as the fallback retry policy.
func NewAdapter(stock RetryPolicy, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{
		workers:  make(map[Stage]Worker),
		policies: make(map[Stage]RetryPolicy),
		stock:    stock.withDefaults(),
		log:      log,
	}
}

// Register associates a worker with a stage.
func (a *Adapter) Register(stage Stage, w Worker) {
	a.workers[stage] = w
}

// SetPolicy overrides the retry policy for one stage.
func (a *Adapter) SetPolicy(stage Stage, p RetryPolicy) {
	a.policies[stage] = p.withDefaults()
}

func (a *Adapter) policyFor(stage Stage) RetryPolicy {
	if p, ok := a.policies[stage]; ok {
		return p
	}
	return a.stock
}

// Invoke runs one stage for one unit under the stage's retry policy and
// returns a StageResult; it never returns an error directly. A result with a
// non-empty Remaining list reports StatusPartial, which only interruptible
// stages produce.
func (a *Adapter) Invoke(ctx context.Context, stage Stage, unit WorkUnit, input StagePayload, guard *TimeoutGuard) StageResult {
	start := time.Now()

	w, ok := a.workers[stage]
	if !ok {
		return StageResult{
			UnitID:  unit.ID,
			Stage:   stage,
			Status:  StatusFailed,
			Err:     fmt.Errorf("adapter: no worker registered for stage %s", stage),
			Elapsed: time.Since(start),
		}
	}

	pol := a.policyFor(stage)
	var lastErr error

	for attempt := 0; attempt < pol.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := pol.delay(attempt - 1)
			a.log.Info("retrying stage",
				zap.String("unit", unit.ID),
				zap.Stringer("stage", stage),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", delay))
			select {
			case <-ctx.Done():
				return StageResult{
					UnitID:  unit.ID,
					Stage:   stage,
					Status:  StatusFailed,
					Err:     ctx.Err(),
					Elapsed: time.Since(start),
				}
			case <-time.After(delay):
			}
		}

		g := guard
		if !stage.Interruptible() {
			g = nil
		}

		payload, err := w.Run(ctx, unit, input, g)
		if err == nil {
			status := StatusOK
			if len(payload.Remaining) > 0 {
				status = StatusPartial
			}
			return StageResult{
				UnitID:  unit.ID,
				Stage:   stage,
				Status:  status,
				Payload: payload,
				Elapsed: time.Since(start),
			}
		}

		lastErr = err
		if pol.Classify(err) != ClassTransient {
			a.log.Warn("stage failed with non-retryable error",
				zap.String("unit", unit.ID),
				zap.Stringer("stage", stage),
				zap.Error(err))
			break
		}
		a.log.Warn("stage attempt failed",
			zap.String("unit", unit.ID),
			zap.Stringer("stage", stage),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return StageResult{
		UnitID:  unit.ID,
		Stage:   stage,
		Status:  StatusFailed,
		Err:     lastErr,
		Elapsed: time.Since(start),
	}
}
