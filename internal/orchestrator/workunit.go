package orchestrator

import "sync/atomic"

// UnitKind classifies a WorkUnit.
type UnitKind string

const (
	KindLessonBatch UnitKind = "lesson_batch"
	KindLabBatch    UnitKind = "lab_batch"
	KindLessonRegen UnitKind = "lesson_regen"
	KindLabRegen    UnitKind = "lab_regen"
)

// IsRegen reports whether the kind is a regeneration variant.
func (k UnitKind) IsRegen() bool {
	return k == KindLessonRegen || k == KindLabRegen
}

// WorkUnit is the unit the orchestrator schedules: a bounded slice of outline
// content. Units are created once at run start and never mutated mid-flight; a
// retry re-submits the same unit.
type WorkUnit struct {
	ID         string     `json:"id"`
	Kind       UnitKind   `json:"kind"`
	TargetRefs []string   `json:"targetRefs"`
	Context    RunContext `json:"context"`
}

// RunContext is the immutable copy of shared run parameters carried by every
// WorkUnit.
type RunContext struct {
	RunID      string            `json:"runId"`
	OutlineRef string            `json:"outlineRef"`
	Model      string            `json:"model,omitempty"`
	Style      map[string]string `json:"style,omitempty"`
	Scope      Scope             `json:"scope"`

	// images assigns run-unique image ids. Not serialized; rebuilt from the
	// persisted RunState on resume.
	images *imageIDAllocator
}

// NewRunContext builds the immutable shared context carried by a run's units.
// imageIDStart is the highest image id already in use (zero for a fresh run),
// so narrow-scope reruns never collide with prior bindings.
func NewRunContext(runID, outlineRef, model string, style map[string]string, scope Scope, imageIDStart int) RunContext {
	return RunContext{
		RunID:      runID,
		OutlineRef: outlineRef,
		Model:      model,
		Style:      style,
		Scope:      scope,
		images:     newImageIDAllocator(imageIDStart),
	}
}

// NextImageID allocates the next run-unique image id.
func (rc RunContext) NextImageID() int {
	return rc.images.next()
}

// imageIDAllocator hands out run-unique numeric image ids. Ids are assigned
// here, never re-derived from content, so a collision in the accumulator
// always indicates a bug.
type imageIDAllocator struct {
	n atomic.Int64
}

// newImageIDAllocator starts allocation after the highest id already in use.
func newImageIDAllocator(start int) *imageIDAllocator {
	a := &imageIDAllocator{}
	a.n.Store(int64(start))
	return a
}

func (a *imageIDAllocator) next() int {
	return int(a.n.Add(1))
}

// ContentEntry is one generated piece of content keyed by its target ref.
type ContentEntry struct {
	TargetRef  string   `json:"targetRef"`
	Kind       string   `json:"kind"` // "lesson" or "lab"
	Body       string   `json:"body"`
	VisualTags []string `json:"visualTags,omitempty"`
}

// ImageBinding maps a short numeric image id to a compact storage record.
// Kept deliberately small to respect downstream payload-size ceilings.
type ImageBinding struct {
	ID          int    `json:"id"`
	StorageKey  string `json:"storageKey"`
	Description string `json:"description"`
}

// VisualSpec is a planned image: which ref it illustrates, its assigned id,
// and the render prompt.
type VisualSpec struct {
	TargetRef string `json:"targetRef"`
	ImageID   int    `json:"imageId"`
	Prompt    string `json:"prompt"`
}

// LabPlan is the lab-plan stage's output for one lab, consumed by lab-write.
type LabPlan struct {
	TargetRef string `json:"targetRef"`
	Plan      string `json:"plan"`
}

// StagePayload is the stage-specific output threaded through a unit's
// pipeline. Stages carry forward their input and add their own output, so the
// final stage's payload is cumulative.
type StagePayload struct {
	Entries  []ContentEntry `json:"entries,omitempty"`
	Visuals  []VisualSpec   `json:"visuals,omitempty"`
	Plans    []LabPlan      `json:"plans,omitempty"`
	Bindings []ImageBinding `json:"bindings,omitempty"`

	// Remaining lists target refs an interruptible stage did not reach
	// before yielding. Non-empty Remaining makes the result partial.
	Remaining []string `json:"remaining,omitempty"`
}

// Continuation identifies the WorkUnits a PartiallyCompleted run still needs.
// It is persisted alongside the RunState so a follow-up invocation can resume.
type Continuation struct {
	RunID string     `json:"runId"`
	Units []WorkUnit `json:"units"`
}

// Empty reports whether there is nothing left to do.
func (c Continuation) Empty() bool {
	return len(c.Units) == 0
}
