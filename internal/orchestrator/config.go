package orchestrator

import "time"

// Config holds runtime configuration for one run of the engine.
type Config struct {
	// MaxPerBatch bounds how many lessons one WorkUnit covers.
	MaxPerBatch int

	// MaxLabsPerBatch bounds how many labs one WorkUnit covers.
	MaxLabsPerBatch int

	// MaxConcurrent caps how many WorkUnits run their pipelines at once.
	// Tuned against upstream generation-service rate limits.
	MaxConcurrent int64

	// Budget is the wall-clock budget for this invocation; Margin is the
	// safety margin the TimeoutGuard keeps in reserve.
	Budget time.Duration
	Margin time.Duration

	// Retry is the stock retry policy; per-stage overrides go through
	// Adapter.SetPolicy.
	Retry RetryPolicy

	// Model selects the generation-service model for this run.
	Model string

	// Style carries style/requirements overrides passed to every unit.
	Style map[string]string
}

// withDefaults fills zero fields with stock values.
func (c Config) withDefaults() Config {
	if c.MaxPerBatch <= 0 {
		c.MaxPerBatch = 3
	}
	if c.MaxLabsPerBatch <= 0 {
		c.MaxLabsPerBatch = 1
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 2
	}
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
	if c.Margin <= 0 {
		c.Margin = DefaultMargin
	}
	c.Retry = c.Retry.withDefaults()
	return c
}
