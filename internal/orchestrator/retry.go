package orchestrator

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/valyala/fastrand"

	"github.com/dusk-indust/courseforge/internal/genai"
)

// ErrorClass is the retryability classification of a stage error.
type ErrorClass int

const (
	// ClassFatal errors are never retried: malformed input, permanent policy
	// rejection, structural failures.
	ClassFatal ErrorClass = iota

	// ClassTransient errors are retried per policy: timeouts, rate limits,
	// transient upstream rejections.
	ClassTransient
)

// Classifier maps an error to its class.
type Classifier func(error) ErrorClass

// DefaultClassifier treats upstream-flagged transient errors and deadline
// expiry as retryable and everything else as fatal.
func DefaultClassifier(err error) ErrorClass {
	if genai.IsTransient(err) {
		return ClassTransient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	return ClassFatal
}

// RetryPolicy is the per-stage retry configuration applied by the adapter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	Classify    Classifier
}

// DefaultRetryPolicy returns the stock policy: 3 attempts, 2s base delay,
// doubling backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
		Classify:    DefaultClassifier,
	}
}

// withDefaults fills zero fields from the stock policy.
func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.Multiplier <= 0 {
		p.Multiplier = d.Multiplier
	}
	if p.Classify == nil {
		p.Classify = d.Classify
	}
	return p
}

// delay returns the backoff before re-submitting after the given zero-based
// failed attempt: base * multiplier^attempt, plus up to 25% jitter so
// concurrent units don't hammer the upstream in lockstep.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt)))
	if d <= 0 {
		return 0
	}
	quarter := d / 4
	if quarter > time.Second {
		quarter = time.Second
	}
	if quarter > 0 {
		d += time.Duration(fastrand.Uint32n(uint32(quarter)))
	}
	return d
}
