package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/courseforge/internal/orchestrator"
	"github.com/dusk-indust/courseforge/internal/outline"
)

func runGenerate(ctx context.Context, a *app, outlinePath string) error {
	doc, err := outline.Load(outlinePath)
	if err != nil {
		return err
	}

	report, runErr := withProgress(a, func(eng *orchestrator.Engine) (*orchestrator.RunReport, error) {
		return eng.Execute(ctx, orchestrator.Request{
			Outline:    doc,
			OutlineRef: outlinePath,
		})
	})
	return printReport(report, runErr)
}

// withProgress runs fn while streaming progress events to stdout.
func withProgress(a *app, fn func(*orchestrator.Engine) (*orchestrator.RunReport, error)) (*orchestrator.RunReport, error) {
	pr := orchestrator.NewProgressReporter()
	eng := a.engineWithProgress(pr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range pr.Subscribe() {
			fmt.Println(orchestrator.FormatProgress(ev))
		}
	}()

	report, err := fn(eng)
	pr.Close()
	<-done
	return report, err
}

func printReport(report *orchestrator.RunReport, runErr error) error {
	if report == nil {
		return runErr
	}

	fmt.Printf("\nrun %s: %s\n", report.RunID, report.Phase)
	fmt.Printf("  units complete: %d\n", len(report.Completed))
	for _, f := range report.Failed {
		fmt.Printf("  failed: %s at %s: %v\n", f.UnitID, f.Stage, f.Err)
	}
	if !report.Continuation.Empty() {
		ids := make([]string, 0, len(report.Continuation.Units))
		for _, u := range report.Continuation.Units {
			ids = append(ids, u.ID)
		}
		fmt.Printf("  pending: %s\n", strings.Join(ids, ", "))
		fmt.Printf("  rerun with: courseforge resume -run %s\n", report.RunID)
	}

	if runErr != nil {
		return runErr
	}
	if report.Phase == orchestrator.PhaseFailed {
		return fmt.Errorf("run %s failed", report.RunID)
	}
	return nil
}
