package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dusk-indust/courseforge/internal/genai"
	"github.com/dusk-indust/courseforge/internal/outline"
)

// visualTagOpen/Close delimit visual-reference markers the content model
// embeds in lesson text, e.g. "[[visual: router with three subnets]]".
const (
	visualTagOpen  = "[[visual:"
	visualTagClose = "]]"
)

// maxBindingDescription caps binding descriptions so the accumulated
// image_bindings map stays under downstream payload-size ceilings.
const maxBindingDescription = 140

// Compile-time interface checks.
var (
	_ Worker = (*ContentWriter)(nil)
	_ Worker = (*VisualPlanner)(nil)
	_ Worker = (*ImageRenderer)(nil)
	_ Worker = (*LabPlanner)(nil)
	_ Worker = (*LabWriter)(nil)
)

// ContentWriter writes lesson bodies for each target ref in a batch. It is
// interruptible: before each lesson it checks the guard and, when the budget
// is nearly exhausted, returns what it has with the unwritten refs listed in
// Remaining.
type ContentWriter struct {
	client genai.Client
	doc    *outline.Document
}

// NewContentWriter creates a ContentWriter over the given outline.
func NewContentWriter(client genai.Client, doc *outline.Document) *ContentWriter {
	return &ContentWriter{client: client, doc: doc}
}

func (w *ContentWriter) Run(ctx context.Context, unit WorkUnit, input StagePayload, guard *TimeoutGuard) (StagePayload, error) {
	out := input
	have := make(map[string]bool, len(input.Entries))
	for _, e := range input.Entries {
		have[e.TargetRef] = true
	}

	for i, ref := range unit.TargetRefs {
		// Refs carried in from a checkpointed earlier invocation are
		// already written; a resumed unit picks up where it left off.
		if have[ref] {
			continue
		}
		if guard.ShouldYield() {
			out.Remaining = append([]string(nil), unit.TargetRefs[i:]...)
			return out, nil
		}

		lesson := w.doc.FindLesson(ref)
		if lesson == nil {
			return StagePayload{}, structuralf("lesson %s not in outline", ref)
		}

		resp, err := w.client.Generate(ctx, genai.Request{
			Prompt:      lessonPrompt(lesson),
			Context:     unit.Context.OutlineRef,
			Constraints: constraintsFor(unit.Context),
		})
		if err != nil {
			// Discard this attempt's partial output; the adapter's retry
			// resubmits the same input.
			return StagePayload{}, err
		}

		out.Entries = append(out.Entries, ContentEntry{
			TargetRef:  ref,
			Kind:       "lesson",
			Body:       resp.Text,
			VisualTags: extractVisualTags(resp.Text),
		})
	}
	return out, nil
}

// VisualPlanner expands each embedded visual tag into a render prompt with a
// run-unique image id assigned up front.
type VisualPlanner struct {
	client genai.Client
}

// NewVisualPlanner creates a VisualPlanner.
func NewVisualPlanner(client genai.Client) *VisualPlanner {
	return &VisualPlanner{client: client}
}

func (w *VisualPlanner) Run(ctx context.Context, unit WorkUnit, input StagePayload, _ *TimeoutGuard) (StagePayload, error) {
	out := input
	for _, entry := range input.Entries {
		for _, tag := range entry.VisualTags {
			resp, err := w.client.Generate(ctx, genai.Request{
				Prompt:      "Expand this visual reference into a complete image description: " + tag,
				Context:     entry.Body,
				Constraints: constraintsFor(unit.Context),
			})
			if err != nil {
				return StagePayload{}, err
			}
			out.Visuals = append(out.Visuals, VisualSpec{
				TargetRef: entry.TargetRef,
				ImageID:   unit.Context.NextImageID(),
				Prompt:    resp.Text,
			})
		}
	}
	return out, nil
}

// ImageRenderer renders each planned visual, writes the bytes to the object
// store, and records a compact binding from image id to storage key.
type ImageRenderer struct {
	client genai.Client
	blobs  BlobStore
}

// NewImageRenderer creates an ImageRenderer writing to blobs.
func NewImageRenderer(client genai.Client, blobs BlobStore) *ImageRenderer {
	return &ImageRenderer{client: client, blobs: blobs}
}

func (w *ImageRenderer) Run(ctx context.Context, unit WorkUnit, input StagePayload, _ *TimeoutGuard) (StagePayload, error) {
	out := input
	for _, spec := range input.Visuals {
		resp, err := w.client.RenderImage(ctx, genai.Request{
			Prompt:      spec.Prompt,
			Constraints: constraintsFor(unit.Context),
		})
		if err != nil {
			return StagePayload{}, err
		}

		key := fmt.Sprintf("runs/%s/images/%04d.png", unit.Context.RunID, spec.ImageID)
		if err := w.blobs.Put(ctx, key, resp.Binary); err != nil {
			return StagePayload{}, fmt.Errorf("store image %d: %w", spec.ImageID, err)
		}

		out.Bindings = append(out.Bindings, ImageBinding{
			ID:          spec.ImageID,
			StorageKey:  key,
			Description: truncate(spec.Prompt, maxBindingDescription),
		})
	}
	return out, nil
}

// LabPlanner drafts an activity plan for each lab in the batch.
type LabPlanner struct {
	client genai.Client
	doc    *outline.Document
}

// NewLabPlanner creates a LabPlanner over the given outline.
func NewLabPlanner(client genai.Client, doc *outline.Document) *LabPlanner {
	return &LabPlanner{client: client, doc: doc}
}

func (w *LabPlanner) Run(ctx context.Context, unit WorkUnit, input StagePayload, _ *TimeoutGuard) (StagePayload, error) {
	out := input
	for _, ref := range unit.TargetRefs {
		lab := w.doc.FindLab(ref)
		if lab == nil {
			return StagePayload{}, structuralf("lab %s not in outline", ref)
		}

		resp, err := w.client.Generate(ctx, genai.Request{
			Prompt:      labPlanPrompt(lab),
			Context:     unit.Context.OutlineRef,
			Constraints: constraintsFor(unit.Context),
		})
		if err != nil {
			return StagePayload{}, err
		}
		out.Plans = append(out.Plans, LabPlan{TargetRef: ref, Plan: resp.Text})
	}
	return out, nil
}

// LabWriter writes the final lab content from each plan.
type LabWriter struct {
	client genai.Client
}

// NewLabWriter creates a LabWriter.
func NewLabWriter(client genai.Client) *LabWriter {
	return &LabWriter{client: client}
}

func (w *LabWriter) Run(ctx context.Context, unit WorkUnit, input StagePayload, _ *TimeoutGuard) (StagePayload, error) {
	out := input
	for _, plan := range input.Plans {
		resp, err := w.client.Generate(ctx, genai.Request{
			Prompt:      "Write the full lab activity following this plan.",
			Context:     plan.Plan,
			Constraints: constraintsFor(unit.Context),
		})
		if err != nil {
			return StagePayload{}, err
		}
		out.Entries = append(out.Entries, ContentEntry{
			TargetRef: plan.TargetRef,
			Kind:      "lab",
			Body:      resp.Text,
		})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func constraintsFor(rc RunContext) genai.Constraints {
	return genai.Constraints{Model: rc.Model, Style: rc.Style}
}

func lessonPrompt(l *outline.Lesson) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the lesson %q (%s).", l.Title, l.ID)
	if len(l.Topics) > 0 {
		fmt.Fprintf(&b, " Cover: %s.", strings.Join(l.Topics, ", "))
	}
	b.WriteString(" Mark places needing an illustration with [[visual: description]].")
	return b.String()
}

func labPlanPrompt(l *outline.Lab) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan the hands-on lab %q (%s).", l.Title, l.ID)
	if l.Objective != "" {
		fmt.Fprintf(&b, " Objective: %s.", l.Objective)
	}
	return b.String()
}

// extractVisualTags collects the descriptions of all embedded visual markers.
func extractVisualTags(text string) []string {
	var tags []string
	for {
		i := strings.Index(text, visualTagOpen)
		if i < 0 {
			return tags
		}
		rest := text[i+len(visualTagOpen):]
		j := strings.Index(rest, visualTagClose)
		if j < 0 {
			return tags
		}
		tags = append(tags, strings.TrimSpace(rest[:j]))
		text = rest[j+len(visualTagClose):]
	}
}

// truncate caps s at n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
