// Package domain provides the event types emitted around the release
// pipeline's lifecycle, adapted from the Catalyst Forge platform's
// canonical pipeline/release event shapes to the supplemented lifecycle
// events described in SPEC_FULL.md (run start and terminal status
// transitions).
package domain

// PipelineStatus represents the execution status of a pipeline run.
type PipelineStatus string

const (
	// PipelineStatusPending indicates the run has not started yet.
	PipelineStatusPending PipelineStatus = "PENDING"

	// PipelineStatusRunning indicates the run is currently in progress.
	PipelineStatusRunning PipelineStatus = "RUNNING"

	// PipelineStatusCompleted indicates every step ran, or was legitimately
	// skipped, successfully (spec §4.5 terminal state Completed).
	PipelineStatusCompleted PipelineStatus = "COMPLETED"

	// PipelineStatusAborted indicates the run halted due to a fatal plugin
	// failure, a resolution/planning error, or cancellation (spec §4.5
	// terminal state Aborted).
	PipelineStatusAborted PipelineStatus = "ABORTED"

	// PipelineStatusFailed indicates the run is in the process of aborting
	// due to a plugin failure; PipelineStatusAborted follows once rollback
	// completes.
	PipelineStatusFailed PipelineStatus = "FAILED"
)

// String returns the string representation of the PipelineStatus.
func (s PipelineStatus) String() string {
	return string(s)
}

// PipelineEvent represents an event emitted during the pipeline's
// execution lifecycle (SPEC_FULL.md "Supplemented features" item 1). The
// runner appends one of these at each major lifecycle transition; they
// are exposed on the run Result for callers that want a structured audit
// trail in addition to the plain log lines spec §6.4 requires.
type PipelineEvent struct {
	// RunID identifies the pipeline run this event belongs to.
	RunID string `json:"run_id"`

	// Step is the step active when the event was emitted, empty for
	// run-scoped events (e.g. Running, Completed).
	Step string `json:"step,omitempty"`

	// Status is the pipeline status this event reports.
	Status PipelineStatus `json:"status"`

	// Metadata carries additional event-specific key-value data.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ReleaseEvent represents an event emitted once Commit has succeeded with
// a next_version in the State Store, letting downstream collaborators
// (not modeled by this orchestrator) react to a new release.
type ReleaseEvent struct {
	// RunID references the pipeline run that produced this release.
	RunID string `json:"run_id"`

	// Version is the semantic version derived for this release.
	Version string `json:"version"`
}
