package orchestrator

import (
	"fmt"

	"github.com/dusk-indust/courseforge/internal/outline"
)

// Decomposer turns a course outline into an ordered list of WorkUnits, each
// covering a bounded slice of content so one unit fits a worker's time budget.
type Decomposer struct {
	maxPerBatch     int
	maxLabsPerBatch int
}

// NewDecomposer creates a Decomposer with the given batch bounds. Non-positive
// values fall back to the defaults (3 lessons, 1 lab).
func NewDecomposer(maxPerBatch, maxLabsPerBatch int) *Decomposer {
	if maxPerBatch <= 0 {
		maxPerBatch = 3
	}
	if maxLabsPerBatch <= 0 {
		maxLabsPerBatch = 1
	}
	return &Decomposer{maxPerBatch: maxPerBatch, maxLabsPerBatch: maxLabsPerBatch}
}

// Decompose walks modules in outline order and emits WorkUnits covering every
// lesson and lab exactly once: lessons grouped into batches of at most
// maxPerBatch, labs grouped analogously for the lab pipeline variant. The
// returned warnings report lab-placement ambiguities found while normalizing.
func (d *Decomposer) Decompose(doc *outline.Document, rc RunContext) ([]WorkUnit, []string, error) {
	if doc == nil {
		return nil, nil, structuralf("no outline document")
	}
	if err := doc.Validate(); err != nil {
		return nil, nil, err
	}

	var units []WorkUnit
	var warnings []string

	for _, m := range doc.Modules {
		for i, batch := range chunkRefs(lessonRefs(m.Lessons), d.maxPerBatch) {
			units = append(units, WorkUnit{
				ID:         fmt.Sprintf("%s-lessons-%d", m.ID, i+1),
				Kind:       KindLessonBatch,
				TargetRefs: batch,
				Context:    rc,
			})
		}

		labs, warns := m.NormalizedLabs()
		warnings = append(warnings, warns...)
		for i, batch := range chunkRefs(labRefs(labs), d.maxLabsPerBatch) {
			units = append(units, WorkUnit{
				ID:         fmt.Sprintf("%s-labs-%d", m.ID, i+1),
				Kind:       KindLabBatch,
				TargetRefs: batch,
				Context:    rc,
			})
		}
	}

	if len(units) == 0 {
		return nil, nil, structuralf("outline has no lessons or labs to generate")
	}
	return units, warnings, nil
}

// DecomposeTargets emits the single WorkUnit for a regeneration request: its
// target refs are exactly the caller-specified set, bypassing batching. Refs
// must all resolve and must be one lesson or a list of labs; anything else is
// a structural failure.
func (d *Decomposer) DecomposeTargets(doc *outline.Document, rc RunContext, refs []string) (*WorkUnit, error) {
	if doc == nil {
		return nil, structuralf("no outline document")
	}
	if len(refs) == 0 {
		return nil, structuralf("regeneration request has no target refs")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	lessons, labs := 0, 0
	for _, ref := range refs {
		switch {
		case doc.FindLesson(ref) != nil:
			lessons++
		case doc.FindLab(ref) != nil:
			labs++
		default:
			return nil, structuralf("target ref %s not found in outline", ref)
		}
	}

	var kind UnitKind
	switch {
	case lessons > 0 && labs > 0:
		return nil, structuralf("regeneration targets mix lessons and labs")
	case lessons > 1:
		return nil, structuralf("lesson regeneration targets exactly one lesson, got %d", lessons)
	case lessons == 1:
		kind = KindLessonRegen
	default:
		kind = KindLabRegen
	}

	return &WorkUnit{
		ID:         "regen-1",
		Kind:       kind,
		TargetRefs: refs,
		Context:    rc,
	}, nil
}

// chunkRefs splits refs into consecutive groups of at most size.
func chunkRefs(refs []string, size int) [][]string {
	var out [][]string
	for len(refs) > 0 {
		n := size
		if n > len(refs) {
			n = len(refs)
		}
		out = append(out, refs[:n])
		refs = refs[n:]
	}
	return out
}

func lessonRefs(lessons []outline.Lesson) []string {
	out := make([]string, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, l.ID)
	}
	return out
}

func labRefs(labs []outline.Lab) []string {
	out := make([]string, 0, len(labs))
	for _, lab := range labs {
		out = append(out, lab.ID)
	}
	return out
}
