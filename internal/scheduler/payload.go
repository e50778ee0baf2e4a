package scheduler

import "time"

// TaskType identifies which maintenance task an EventBridge invocation runs.
type TaskType string

const (
	// TaskRetentionSweep archives and purges expired precomputed rows.
	TaskRetentionSweep TaskType = "retention_sweep"

	// TaskMarkPatioStale flags a patio's precomputed rows after an upstream
	// geometry change. Requires PatioID.
	TaskMarkPatioStale TaskType = "mark_patio_stale"

	// TaskEnqueueRun enqueues precomputation for upcoming dates. The nightly
	// EventBridge rule uses this to keep the horizon precomputed.
	TaskEnqueueRun TaskType = "enqueue_run"
)

// MaintenancePayload is the EventBridge event body for the maintenance
// Lambda. ReferenceTime overrides the wall clock for replays and tests.
type MaintenancePayload struct {
	Task          TaskType   `json:"task"`
	PatioID       string     `json:"patio_id,omitempty"`
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}
