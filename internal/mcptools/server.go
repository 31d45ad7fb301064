package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/courseforge/internal/orchestrator"
)

// version is set by the linker at build time.
var version = "dev"

// NewCourseMCPServer creates an MCP server with the 5 courseforge tools
// registered: generate_course, regenerate_unit, resume_run, get_run_status,
// and list_runs.
func NewCourseMCPServer(engine *orchestrator.Engine, store orchestrator.StateStore) *mcp.Server {
	svc := NewCourseService(engine, store)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "courseforge",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_course",
		Description: "Generate all lesson and lab content for a course outline. Returns the run id and per-unit outcome.",
	}, svc.GenerateCourse)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "regenerate_unit",
		Description: "Regenerate named lessons or labs inside a completed run, leaving everything else untouched.",
	}, svc.RegenerateUnit)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resume_run",
		Description: "Resume a partially-completed run from its persisted checkpoint.",
	}, svc.ResumeRun)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_run_status",
		Description: "Get the persisted state of a run: unit counts, written content refs, and image count.",
	}, svc.GetRunStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_runs",
		Description: "List the ids of all persisted runs.",
	}, svc.ListRuns)

	return server
}

// RunMCPServerStdio runs the MCP server on stdio transport, blocking until
// stdin is closed or the context is cancelled.
func RunMCPServerStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
