package mcptools

// --- MCP Tool Types for the courseforge server mode (--serve-mcp) ---
// These tools are exposed when the binary runs as an MCP server so agent
// frontends can drive generation with structured calls instead of shelling out.

// GenerateCourseInput is the input for the generate_course MCP tool.
type GenerateCourseInput struct {
	OutlinePath string `json:"outlinePath" jsonschema:"path to the course outline YAML"`
}

// RunSummaryOutput is the result of the tools that execute or resume a run.
type RunSummaryOutput struct {
	RunID          string   `json:"runId"`
	Phase          string   `json:"phase"` // completed, failed, or partially_completed
	CompletedUnits []string `json:"completedUnits"`
	FailedUnits    []string `json:"failedUnits,omitempty"`
	PendingUnits   int      `json:"pendingUnits"`
	Message        string   `json:"message,omitempty"`
}

// RegenerateUnitInput is the input for the regenerate_unit MCP tool.
type RegenerateUnitInput struct {
	OutlinePath string   `json:"outlinePath" jsonschema:"path to the course outline YAML"`
	RunID       string   `json:"runId" jsonschema:"id of the completed run to patch"`
	TargetRefs  []string `json:"targetRefs" jsonschema:"lesson or lab ids to regenerate"`
}

// ResumeRunInput is the input for the resume_run MCP tool.
type ResumeRunInput struct {
	OutlinePath string `json:"outlinePath" jsonschema:"path to the course outline YAML"`
	RunID       string `json:"runId" jsonschema:"id of the partially-completed run"`
}

// GetRunStatusInput is the input for the get_run_status MCP tool.
type GetRunStatusInput struct {
	RunID string `json:"runId" jsonschema:"run id to inspect"`
}

// GetRunStatusOutput is the result of the get_run_status MCP tool.
type GetRunStatusOutput struct {
	RunID          string   `json:"runId"`
	Status         string   `json:"status"` // partial or complete
	Scope          string   `json:"scope"`
	UnitsTotal     int      `json:"unitsTotal"`
	UnitsCompleted int      `json:"unitsCompleted"`
	ContentRefs    []string `json:"contentRefs"`
	ImageCount     int      `json:"imageCount"`
}

// ListRunsInput is the input for the list_runs MCP tool.
type ListRunsInput struct{}

// ListRunsOutput is the result of the list_runs MCP tool.
type ListRunsOutput struct {
	RunIDs []string `json:"runIds"`
}
