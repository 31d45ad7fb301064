package mcptools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/courseforge/internal/orchestrator"
	"github.com/dusk-indust/courseforge/internal/outline"
)

// CourseService handles MCP tool calls for the courseforge server mode.
// It wraps the Engine to execute runs and query their state.
type CourseService struct {
	engine *orchestrator.Engine
	store  orchestrator.StateStore
}

// NewCourseService creates a CourseService over the given engine and store.
func NewCourseService(engine *orchestrator.Engine, store orchestrator.StateStore) *CourseService {
	return &CourseService{engine: engine, store: store}
}

// GenerateCourse decomposes an outline into work units and runs the full
// generation pipeline over them.
func (s *CourseService) GenerateCourse(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateCourseInput,
) (*mcp.CallToolResult, RunSummaryOutput, error) {
	doc, err := outline.Load(input.OutlinePath)
	if err != nil {
		return nil, RunSummaryOutput{Phase: string(orchestrator.PhaseFailed), Message: err.Error()}, nil
	}

	report, err := s.engine.Execute(ctx, orchestrator.Request{
		Outline:    doc,
		OutlineRef: input.OutlinePath,
	})
	return summarize(report, err)
}

// RegenerateUnit reruns the pipeline for the named lessons or labs and
// patches the results into a completed run.
func (s *CourseService) RegenerateUnit(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RegenerateUnitInput,
) (*mcp.CallToolResult, RunSummaryOutput, error) {
	if len(input.TargetRefs) == 0 {
		return nil, RunSummaryOutput{Phase: string(orchestrator.PhaseFailed), Message: "no target refs given"},
			fmt.Errorf("regenerate_unit: no target refs")
	}

	doc, err := outline.Load(input.OutlinePath)
	if err != nil {
		return nil, RunSummaryOutput{Phase: string(orchestrator.PhaseFailed), Message: err.Error()}, nil
	}

	report, err := s.engine.Execute(ctx, orchestrator.Request{
		Outline:    doc,
		OutlineRef: input.OutlinePath,
		Mode:       orchestrator.ModeRegenerate,
		TargetRefs: input.TargetRefs,
		PriorRunID: input.RunID,
	})
	return summarize(report, err)
}

// ResumeRun picks up the pending continuation of a partially-completed run.
func (s *CourseService) ResumeRun(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResumeRunInput,
) (*mcp.CallToolResult, RunSummaryOutput, error) {
	doc, err := outline.Load(input.OutlinePath)
	if err != nil {
		return nil, RunSummaryOutput{Phase: string(orchestrator.PhaseFailed), Message: err.Error()}, nil
	}

	report, err := s.engine.Resume(ctx, doc, input.RunID)
	return summarize(report, err)
}

// GetRunStatus reads back the persisted state of a run.
func (s *CourseService) GetRunStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetRunStatusInput,
) (*mcp.CallToolResult, GetRunStatusOutput, error) {
	state, err := s.engine.Status(ctx, input.RunID)
	if err != nil {
		return nil, GetRunStatusOutput{RunID: input.RunID}, err
	}

	refs := make([]string, 0, len(state.Order))
	refs = append(refs, state.Order...)

	return nil, GetRunStatusOutput{
		RunID:          state.RunID,
		Status:         string(state.Status),
		Scope:          string(state.Scope),
		UnitsTotal:     state.UnitsTotal,
		UnitsCompleted: state.UnitsCompleted,
		ContentRefs:    refs,
		ImageCount:     len(state.Bindings),
	}, nil
}

// ListRuns returns every persisted run id.
func (s *CourseService) ListRuns(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListRunsInput,
) (*mcp.CallToolResult, ListRunsOutput, error) {
	ids, err := s.store.ListRuns(ctx)
	if err != nil {
		return nil, ListRunsOutput{}, err
	}
	return nil, ListRunsOutput{RunIDs: ids}, nil
}

// summarize flattens a RunReport into the shared tool output. Run-fatal
// errors surface in the message rather than failing the tool call, so agent
// frontends always get the per-unit breakdown.
func summarize(report *orchestrator.RunReport, err error) (*mcp.CallToolResult, RunSummaryOutput, error) {
	if report == nil {
		msg := "run did not start"
		if err != nil {
			msg = err.Error()
		}
		return nil, RunSummaryOutput{Phase: string(orchestrator.PhaseFailed), Message: msg}, nil
	}

	out := RunSummaryOutput{
		RunID:          report.RunID,
		Phase:          string(report.Phase),
		CompletedUnits: report.Completed,
		PendingUnits:   len(report.Continuation.Units),
	}
	for _, f := range report.Failed {
		out.FailedUnits = append(out.FailedUnits, fmt.Sprintf("%s (%s): %v", f.UnitID, f.Stage, f.Err))
	}
	if err != nil {
		out.Message = err.Error()
	}
	return nil, out, nil
}
