package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/courseforge/internal/orchestrator"
	"github.com/dusk-indust/courseforge/internal/outline"
)

func runRegen(ctx context.Context, a *app, outlinePath, runID, targets string) error {
	if runID == "" {
		return fmt.Errorf("usage: courseforge regen -run <id> -targets <refs>")
	}
	refs := splitTargets(targets)
	if len(refs) == 0 {
		return fmt.Errorf("usage: courseforge regen -run <id> -targets <refs>")
	}

	doc, err := outline.Load(outlinePath)
	if err != nil {
		return err
	}

	report, runErr := withProgress(a, func(eng *orchestrator.Engine) (*orchestrator.RunReport, error) {
		return eng.Execute(ctx, orchestrator.Request{
			Outline:    doc,
			OutlineRef: outlinePath,
			Mode:       orchestrator.ModeRegenerate,
			TargetRefs: refs,
			PriorRunID: runID,
		})
	})
	return printReport(report, runErr)
}

func runResume(ctx context.Context, a *app, outlinePath, runID string) error {
	if runID == "" {
		return fmt.Errorf("usage: courseforge resume -run <id>")
	}

	doc, err := outline.Load(outlinePath)
	if err != nil {
		return err
	}

	report, runErr := withProgress(a, func(eng *orchestrator.Engine) (*orchestrator.RunReport, error) {
		return eng.Resume(ctx, doc, runID)
	})
	return printReport(report, runErr)
}

func splitTargets(s string) []string {
	var refs []string
	for _, part := range strings.Split(s, ",") {
		if ref := strings.TrimSpace(part); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}
