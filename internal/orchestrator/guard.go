package orchestrator

import (
	"sync/atomic"
	"time"
)

// Default invocation budget and safety margin. The margin is subtracted from
// the platform's hard execution ceiling so a stage yields before it gets
// killed mid-write.
const (
	DefaultBudget = 900 * time.Second
	DefaultMargin = 60 * time.Second
)

// TimeoutGuard monitors the wall-clock budget of one invocation. A stage's
// internal loop calls ShouldYield before each sub-step; once it reports true
// the stage stops and returns what it has produced so far as partial output.
type TimeoutGuard struct {
	deadline time.Time
	margin   time.Duration
	now      func() time.Time
	yielded  atomic.Bool
}

// NewTimeoutGuard creates a guard for a budget starting now.
func NewTimeoutGuard(budget, margin time.Duration) *TimeoutGuard {
	return newTimeoutGuardClock(budget, margin, time.Now)
}

// newTimeoutGuardClock injects a clock for tests.
func newTimeoutGuardClock(budget, margin time.Duration, now func() time.Time) *TimeoutGuard {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if margin <= 0 {
		margin = DefaultMargin
	}
	return &TimeoutGuard{
		deadline: now().Add(budget),
		margin:   margin,
		now:      now,
	}
}

// Remaining returns the wall-clock time left in the budget. Never negative.
func (g *TimeoutGuard) Remaining() time.Duration {
	if g == nil {
		return DefaultBudget
	}
	d := g.deadline.Sub(g.now())
	if d < 0 {
		return 0
	}
	return d
}

// ShouldYield reports whether the remaining budget has dropped below the
// safety margin. Monotonic: once true within an invocation it never reverts,
// which prevents oscillation near the boundary.
func (g *TimeoutGuard) ShouldYield() bool {
	if g == nil {
		return false
	}
	if g.yielded.Load() {
		return true
	}
	if g.deadline.Sub(g.now()) <= g.margin {
		g.yielded.Store(true)
		return true
	}
	return false
}
