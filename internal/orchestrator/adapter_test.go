package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/courseforge/internal/genai"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   5 * time.Millisecond,
		Multiplier:  2,
		Classify:    DefaultClassifier,
	}
}

func TestInvoke_TwoTransientFailuresThenSuccess(t *testing.T) {
	calls := 0
	a := NewAdapter(fastPolicy(3), nil)
	a.Register(StageVisualPlan, WorkerFunc(func(_ context.Context, _ WorkUnit, in StagePayload, _ *TimeoutGuard) (StagePayload, error) {
		calls++
		if calls < 3 {
			return StagePayload{}, &genai.Error{Op: "generate", StatusCode: 503, Transient: true}
		}
		return in, nil
	}))

	start := time.Now()
	res := a.Invoke(context.Background(), StageVisualPlan, WorkUnit{ID: "u1"}, StagePayload{}, nil)

	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, 3, calls)
	// Two backoff waits: 5ms + 10ms, before jitter.
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
	assert.GreaterOrEqual(t, res.Elapsed, 15*time.Millisecond)
}

func TestInvoke_ExhaustedAttempts_ReturnsLastError(t *testing.T) {
	upstream := &genai.Error{Op: "generate", StatusCode: 429, Transient: true}
	calls := 0
	a := NewAdapter(fastPolicy(3), nil)
	a.Register(StageVisualPlan, WorkerFunc(func(_ context.Context, _ WorkUnit, _ StagePayload, _ *TimeoutGuard) (StagePayload, error) {
		calls++
		return StagePayload{}, upstream
	}))

	res := a.Invoke(context.Background(), StageVisualPlan, WorkUnit{ID: "u1"}, StagePayload{}, nil)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, res.Err, upstream)
}

func TestInvoke_FatalError_NoRetry(t *testing.T) {
	calls := 0
	a := NewAdapter(fastPolicy(3), nil)
	a.Register(StageVisualPlan, WorkerFunc(func(_ context.Context, _ WorkUnit, _ StagePayload, _ *TimeoutGuard) (StagePayload, error) {
		calls++
		return StagePayload{}, &genai.Error{Op: "generate", StatusCode: 400, Transient: false}
	}))

	res := a.Invoke(context.Background(), StageVisualPlan, WorkUnit{ID: "u1"}, StagePayload{}, nil)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, calls, "fatal errors are not retried")
}

func TestInvoke_PartialPayload_ReportsPartial(t *testing.T) {
	a := NewAdapter(fastPolicy(3), nil)
	a.Register(StageContentWrite, WorkerFunc(func(_ context.Context, _ WorkUnit, _ StagePayload, _ *TimeoutGuard) (StagePayload, error) {
		return StagePayload{
			Entries:   []ContentEntry{{TargetRef: "01-01", Kind: "lesson", Body: "x"}},
			Remaining: []string{"01-02"},
		}, nil
	}))

	res := a.Invoke(context.Background(), StageContentWrite, WorkUnit{ID: "u1"}, StagePayload{}, nil)

	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, []string{"01-02"}, res.Payload.Remaining)
}

func TestInvoke_GuardOnlyReachesInterruptibleStages(t *testing.T) {
	guard := NewTimeoutGuard(time.Hour, time.Second)
	a := NewAdapter(fastPolicy(1), nil)

	var sawGuard, sawNil bool
	a.Register(StageContentWrite, WorkerFunc(func(_ context.Context, _ WorkUnit, in StagePayload, g *TimeoutGuard) (StagePayload, error) {
		sawGuard = g != nil
		return in, nil
	}))
	a.Register(StageVisualPlan, WorkerFunc(func(_ context.Context, _ WorkUnit, in StagePayload, g *TimeoutGuard) (StagePayload, error) {
		sawNil = g == nil
		return in, nil
	}))

	a.Invoke(context.Background(), StageContentWrite, WorkUnit{ID: "u1"}, StagePayload{}, guard)
	a.Invoke(context.Background(), StageVisualPlan, WorkUnit{ID: "u1"}, StagePayload{}, guard)

	assert.True(t, sawGuard, "interruptible stage receives the guard")
	assert.True(t, sawNil, "non-interruptible stage does not")
}

func TestInvoke_NoWorkerRegistered(t *testing.T) {
	a := NewAdapter(fastPolicy(3), nil)
	res := a.Invoke(context.Background(), StageLabWrite, WorkUnit{ID: "u1"}, StagePayload{}, nil)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Err.Error(), "no worker registered")
}

func TestInvoke_ContextCanceledDuringBackoff(t *testing.T) {
	a := NewAdapter(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour, Multiplier: 2, Classify: DefaultClassifier}, nil)
	a.Register(StageVisualPlan, WorkerFunc(func(_ context.Context, _ WorkUnit, _ StagePayload, _ *TimeoutGuard) (StagePayload, error) {
		return StagePayload{}, &genai.Error{Op: "generate", StatusCode: 503, Transient: true}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res := a.Invoke(ctx, StageVisualPlan, WorkUnit{ID: "u1"}, StagePayload{}, nil)
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
}
