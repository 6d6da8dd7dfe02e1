// Package attempt records the lifecycle of individual step executions
// within a job run. Every orchestrator retry produces a brand-new Attempt
// record with an incremented attempt number — attempts are never reopened
// or overwritten, giving an append-mostly audit trail of every invocation.
package attempt

import (
	"strconv"
	"time"

	"github.com/novaops/steptrack"
	"github.com/novaops/steptrack/classify"
	"github.com/novaops/steptrack/store"
)

// Status represents the lifecycle state of an attempt.
type Status string

const (
	// StatusStarted means the step invocation is in flight.
	StatusStarted Status = "STARTED"
	// StatusSucceeded means the step completed normally.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed means the step returned or raised an error.
	StatusFailed Status = "FAILED"
	// StatusTimedOut means the step exceeded its deadline.
	StatusTimedOut Status = "TIMED_OUT"
	// StatusCancelled means the step observed cancellation and stopped.
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether s is a final state. An attempt left in STARTED
// is a detectable stuck attempt, surfaced rather than auto-closed.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	default:
		return false
	}
}

// ErrorDetail is the nested error map persisted on failed attempts.
type ErrorDetail struct {
	Classification classify.Classification `json:"classification"`
	Fingerprint    string                  `json:"fingerprint"`
	Message        string                  `json:"message"`
}

// Attempt represents one execution of one step within a job run.
type Attempt struct {
	steptrack.Entity

	NovaID     string       `json:"nova_id"`
	JobRunID   string       `json:"job_run_id"`
	TaskName   string       `json:"task_name"`
	AttemptNo  int          `json:"attempt_no"`
	Status     Status       `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	DurationMS int64        `json:"duration_ms,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// Handle is the retained identity of a started Attempt. The start
// timestamp participates in the sort key, so the handle returned by Start
// must be carried to Finish, never recomputed.
type Handle struct {
	NovaID    string
	JobRunID  string
	TaskName  string
	AttemptNo int
	StartedAt string
}

// Key returns the composite store key for the attempt item.
func (h Handle) Key() store.Key {
	return store.Key{
		Partition: h.NovaID,
		Sort: "ATTEMPT#" + h.JobRunID + "#" + h.TaskName + "#" +
			strconv.Itoa(h.AttemptNo) + "#" + h.StartedAt,
	}
}
