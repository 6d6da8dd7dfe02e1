// Package jobrun records the lifecycle of workflow executions: one Run per
// execution, created exactly once and finalized exactly once through the
// store's conditional writes. Runs are never deleted by the runtime.
package jobrun

import (
	"time"

	"github.com/novaops/steptrack"
	"github.com/novaops/steptrack/id"
	"github.com/novaops/steptrack/store"
)

// Status represents the lifecycle state of a job run.
type Status string

const (
	// StatusRunning means the workflow execution is in flight.
	StatusRunning Status = "RUNNING"
	// StatusSucceeded means the execution finished successfully.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed means the execution failed terminally.
	StatusFailed Status = "FAILED"
	// StatusCancelled means the execution was stopped before completion.
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether s is a final state. Terminal states are final:
// there is no transition out of them.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Run represents one execution of one workflow.
type Run struct {
	steptrack.Entity

	ID             id.JobRunID       `json:"job_run_id"`
	NovaID         string            `json:"nova_id"`
	WorkflowName   string            `json:"workflow_name"`
	ExecutionARN   string            `json:"execution_arn,omitempty"`
	Status         Status            `json:"status"`
	StartedAt      time.Time         `json:"started_at"`
	EndedAt        *time.Time        `json:"ended_at,omitempty"`
	Outcome        string            `json:"outcome,omitempty"`
	Summary        map[string]any    `json:"summary,omitempty"`
	CorrelationID  string            `json:"correlation_id"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Identifiers    map[string]string `json:"identifiers,omitempty"`
}

// Ref is the retained identity of a Run: everything needed to address its
// store item again at finalize time. The started-at stamp participates in
// the sort key, so Ref must be carried from Begin to Finalize, never
// recomputed.
type Ref struct {
	NovaID       string
	WorkflowName string
	StartedAt    string
	ID           id.JobRunID
}

// Key returns the composite store key for the run item.
func (r Ref) Key() store.Key {
	return store.Key{
		Partition: r.NovaID,
		Sort:      "JOBRUN#" + r.WorkflowName + "#" + r.StartedAt + "#" + r.ID.String(),
	}
}
