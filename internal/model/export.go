package model

import "time"

// RunExport is the top-level JSON structure for grading run export.
type RunExport struct {
	ExportedAt    time.Time    `json:"exported_at"`
	Subject       string       `json:"subject,omitempty"`
	PromptVariant string       `json:"prompt_variant,omitempty"`
	NumRuns       int          `json:"num_runs"`
	Runs          []GradingRun `json:"runs"`
}

// GraderInfo describes how the runs in a store were graded.
type GraderInfo struct {
	Subject       string `json:"subject"`
	PromptVariant string `json:"prompt_variant"`
	Provider      string `json:"provider"`
}
