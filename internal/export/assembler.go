package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dusk-indust/courseforge/internal/orchestrator"
)

// CourseExport is the top-level JSON document written when a run completes.
type CourseExport struct {
	RunID       string          `json:"runId"`
	AssembledAt string          `json:"assembledAt"`
	Sections    []SectionExport `json:"sections"`
	Images      []ImageExport   `json:"images,omitempty"`
}

// SectionExport is one lesson or lab in outline order.
type SectionExport struct {
	TargetRef  string   `json:"targetRef"`
	Kind       string   `json:"kind"`
	Body       string   `json:"body"`
	VisualTags []string `json:"visualTags,omitempty"`
}

// ImageExport references one rendered image.
type ImageExport struct {
	ID          int    `json:"id"`
	StorageKey  string `json:"storageKey"`
	Description string `json:"description,omitempty"`
}

// Compile-time check that CourseAssembler satisfies Assembler.
var _ orchestrator.Assembler = (*CourseAssembler)(nil)

// CourseAssembler is the downstream assembly trigger: when a run's state
// flips to complete it writes the assembled course to disk, as JSON for
// toolchains and as Markdown for humans.
type CourseAssembler struct {
	outDir string
}

// NewCourseAssembler creates an assembler writing under outDir, one
// subdirectory per run.
func NewCourseAssembler(outDir string) *CourseAssembler {
	return &CourseAssembler{outDir: outDir}
}

// Assemble writes course.json and course.md for the run. It is invoked
// exactly once per completed run, including after a regeneration patch.
func (a *CourseAssembler) Assemble(_ context.Context, state *orchestrator.RunState) error {
	dir := filepath.Join(a.outDir, state.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: create output dir: %w", err)
	}

	doc := buildExport(state)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal course: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "course.json"), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("export: write course.json: %w", err)
	}

	md := renderMarkdown(doc)
	if err := os.WriteFile(filepath.Join(dir, "course.md"), []byte(md), 0o644); err != nil {
		return fmt.Errorf("export: write course.md: %w", err)
	}
	return nil
}

func buildExport(state *orchestrator.RunState) *CourseExport {
	doc := &CourseExport{
		RunID:       state.RunID,
		AssembledAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, entry := range state.EntriesInOrder() {
		doc.Sections = append(doc.Sections, SectionExport{
			TargetRef:  entry.TargetRef,
			Kind:       entry.Kind,
			Body:       entry.Body,
			VisualTags: entry.VisualTags,
		})
	}
	for _, id := range sortedBindingIDs(state) {
		b := state.Bindings[id]
		doc.Images = append(doc.Images, ImageExport{
			ID:          b.ID,
			StorageKey:  b.StorageKey,
			Description: b.Description,
		})
	}
	return doc
}

func renderMarkdown(doc *CourseExport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<!-- assembled from run %s at %s -->\n", doc.RunID, doc.AssembledAt)
	for _, s := range doc.Sections {
		fmt.Fprintf(&sb, "\n## %s (%s)\n\n%s\n", s.TargetRef, s.Kind, s.Body)
	}
	if len(doc.Images) > 0 {
		sb.WriteString("\n## Images\n\n")
		for _, img := range doc.Images {
			fmt.Fprintf(&sb, "- [%04d] %s", img.ID, img.StorageKey)
			if img.Description != "" {
				fmt.Fprintf(&sb, ": %s", img.Description)
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func sortedBindingIDs(state *orchestrator.RunState) []int {
	ids := make([]int, 0, len(state.Bindings))
	for id := range state.Bindings {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
