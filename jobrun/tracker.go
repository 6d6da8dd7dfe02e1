package jobrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/novaops/steptrack"
	"github.com/novaops/steptrack/id"
	"github.com/novaops/steptrack/store"
)

// Tracker creates and finalizes Run records.
type Tracker struct {
	store  store.Store
	clock  steptrack.Clock
	logger *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the time source.
func WithClock(clock steptrack.Clock) Option {
	return func(t *Tracker) { t.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// New creates a Tracker over the given store.
func New(s store.Store, opts ...Option) *Tracker {
	t := &Tracker{store: s, clock: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// BeginParams are the inputs for creating a Run record.
type BeginParams struct {
	NovaID         string
	WorkflowName   string
	ExecutionARN   string
	CorrelationID  string
	IdempotencyKey string

	// Identifiers are opaque linkage ids copied onto the item; empty
	// values are dropped.
	Identifiers map[string]string

	// JobRunID overrides the generated run id. Determinism hook for
	// tests, not a production path.
	JobRunID id.JobRunID
}

// Begin inserts a new Run in RUNNING state and returns its Ref. The insert
// requires the full identity key to be absent; a condition failure
// surfaces as steptrack.ErrRunAlreadyExists — under random id generation
// it means a begin call was replayed with a deterministic key, and it is
// never silently ignored.
func (t *Tracker) Begin(ctx context.Context, p BeginParams) (Ref, error) {
	runID := p.JobRunID
	if runID.IsNil() {
		runID = id.NewJobRunID()
	}

	now := t.clock().UTC()
	startedAt := steptrack.Timestamp(now)
	ref := Ref{
		NovaID:       p.NovaID,
		WorkflowName: p.WorkflowName,
		StartedAt:    startedAt,
		ID:           runID,
	}

	attrs := store.Attributes{
		"entity_type":     "JobRun",
		"schema_version":  steptrack.SchemaVersion,
		"job_run_id":      runID.String(),
		"workflow_name":   p.WorkflowName,
		"execution_arn":   p.ExecutionARN,
		"status":          string(StatusRunning),
		"started_at":      startedAt,
		"correlation_id":  p.CorrelationID,
		"idempotency_key": p.IdempotencyKey,
		"created_at":      startedAt,
		"updated_at":      startedAt,
	}
	for k, v := range p.Identifiers {
		if v != "" {
			attrs[k] = v
		}
	}

	if err := t.store.Insert(ctx, ref.Key(), attrs); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			return Ref{}, fmt.Errorf("begin run %s/%s: %w",
				p.WorkflowName, runID, steptrack.ErrRunAlreadyExists)
		}
		return Ref{}, fmt.Errorf("begin run %s/%s: %w", p.WorkflowName, runID, err)
	}

	t.logger.Info("job run started",
		slog.String("job_run_id", runID.String()),
		slog.String("workflow_name", p.WorkflowName),
		slog.String("correlation_id", p.CorrelationID),
		slog.String("nova_id", p.NovaID),
	)
	return ref, nil
}

// FinalizeParams are the optional terminal attributes for a Run.
type FinalizeParams struct {
	Outcome string
	Summary map[string]any
}

// Finalize moves the Run to a terminal status, setting ended_at, outcome,
// and summary. The update requires ended_at to be currently absent; a
// condition failure surfaces as steptrack.ErrRunAlreadyFinalized — a
// distinct condition because duplicate terminal transitions are expected
// under some orchestrator retry topologies and callers may treat them as
// benign. The stored terminal state is never overwritten.
func (t *Tracker) Finalize(ctx context.Context, ref Ref, status Status, p FinalizeParams) error {
	if !status.Terminal() {
		return fmt.Errorf("finalize run %s: status %q is not terminal", ref.ID, status)
	}

	now := steptrack.Timestamp(t.clock())
	set := store.Attributes{
		"status":     string(status),
		"ended_at":   now,
		"updated_at": now,
	}
	if p.Outcome != "" {
		set["outcome"] = p.Outcome
	}
	if len(p.Summary) > 0 {
		summary := make(map[string]any, len(p.Summary))
		for k, v := range p.Summary {
			if v != nil {
				summary[k] = v
			}
		}
		set["summary"] = summary
	}

	err := t.store.Update(ctx, ref.Key(), set, store.IfFieldAbsent("ended_at"))
	if errors.Is(err, store.ErrConditionFailed) {
		return fmt.Errorf("finalize run %s: %w", ref.ID, steptrack.ErrRunAlreadyFinalized)
	}
	if err != nil {
		return fmt.Errorf("finalize run %s: %w", ref.ID, err)
	}

	t.logger.Info("job run finalized",
		slog.String("job_run_id", ref.ID.String()),
		slog.String("workflow_name", ref.WorkflowName),
		slog.String("status", string(status)),
		slog.String("outcome", p.Outcome),
	)
	return nil
}
