package orchestrator

import (
	"context"
	"time"
)

// Stage identifies one step of the generation pipeline.
type Stage int

const (
	StageContentWrite Stage = iota
	StageVisualPlan
	StageImageRender
	StageLabPlan
	StageLabWrite
	StageAssembly
)

func (s Stage) String() string {
	names := [...]string{
		"content-write",
		"visual-plan",
		"image-render",
		"lab-plan",
		"lab-write",
		"assembly",
	}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// Interruptible reports whether the stage may legally return StatusPartial.
// Only the long-writing stages checkpoint against the time budget; all others
// return ok or failed.
func (s Stage) Interruptible() bool {
	return s == StageContentWrite || s == StageAssembly
}

// pipelineFor returns the ordered stage pipeline for a unit kind. Lesson units
// run content through image rendering; lab units run the lab variant.
func pipelineFor(kind UnitKind) []Stage {
	switch kind {
	case KindLessonBatch, KindLessonRegen:
		return []Stage{StageContentWrite, StageVisualPlan, StageImageRender}
	case KindLabBatch, KindLabRegen:
		return []Stage{StageLabPlan, StageLabWrite}
	default:
		return nil
	}
}

// Status is the outcome of one stage invocation for one unit.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// StageResult holds the output of one stage for one WorkUnit.
type StageResult struct {
	UnitID  string
	Stage   Stage
	Status  Status
	Payload StagePayload
	Err     error
	Elapsed time.Duration
}

// ProgressEvent is emitted to the user during a run.
type ProgressEvent struct {
	UnitID  string
	Stage   Stage
	Status  ProgressStatus
	Message string
}

// ProgressStatus is the state of a unit's stage as seen by the reporter.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressPartial  ProgressStatus = "partial"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// Assembler is the downstream document-assembly trigger. It is invoked exactly
// once per run, when the accumulated state flips to complete.
type Assembler interface {
	Assemble(ctx context.Context, state *RunState) error
}

// BlobStore is the external object store for rendered image bytes.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
}
