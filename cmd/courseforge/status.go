package main

import (
	"context"
	"fmt"

	"github.com/dusk-indust/courseforge/internal/status"
)

func runStatus(ctx context.Context, a *app, runID string) error {
	if runID != "" {
		return printSingleStatus(ctx, a, runID)
	}
	return printAllStatuses(ctx, a)
}

func printSingleStatus(ctx context.Context, a *app, runID string) error {
	overview, err := status.Gather(ctx, a.store, runID)
	if err != nil {
		return err
	}
	if overview == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	fmt.Print(status.Format(overview))
	return nil
}

func printAllStatuses(ctx context.Context, a *app) error {
	overviews, err := status.List(ctx, a.store)
	if err != nil {
		return err
	}
	if len(overviews) == 0 {
		fmt.Println("No runs found.")
		fmt.Println("Run 'courseforge generate -outline course.yml' to start one.")
		return nil
	}
	for i, o := range overviews {
		if i > 0 {
			fmt.Println()
		}
		fmt.Print(status.Format(&o))
	}
	return nil
}
