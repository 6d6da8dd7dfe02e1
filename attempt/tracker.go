package attempt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/novaops/steptrack"
	"github.com/novaops/steptrack/store"
)

// Tracker inserts and finishes Attempt records.
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

// StartParams are the inputs for recording an attempt start.
type StartParams struct {
	NovaID    string
	JobRunID  string
	TaskName  string
	AttemptNo int

	// Identifiers are opaque linkage ids copied onto the item; empty
	// values are dropped.
	Identifiers map[string]string
}

// Start inserts an Attempt in STARTED state, capturing the start time
// into its identity, and returns the Handle for the later Finish call.
// A condition failure (duplicate identity within the same instant)
// surfaces as steptrack.ErrAttemptAlreadyExists — structurally impossible
// under timestamp-based identity, so it signals a clock or
// identity-generation defect.
func (t *Tracker) Start(ctx context.Context, p StartParams) (Handle, error) {
	startedAt := steptrack.Timestamp(t.clock())
	h := Handle{
		NovaID:    p.NovaID,
		JobRunID:  p.JobRunID,
		TaskName:  p.TaskName,
		AttemptNo: p.AttemptNo,
		StartedAt: startedAt,
	}

	attrs := store.Attributes{
		"entity_type":    "Attempt",
		"schema_version": steptrack.SchemaVersion,
		"job_run_id":     p.JobRunID,
		"task_name":      p.TaskName,
		"attempt_no":     p.AttemptNo,
		"status":         string(StatusStarted),
		"started_at":     startedAt,
		"created_at":     startedAt,
		"updated_at":     startedAt,
	}
	for k, v := range p.Identifiers {
		if v != "" {
			attrs[k] = v
		}
	}

	if err := t.store.Insert(ctx, h.Key(), attrs); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			return Handle{}, fmt.Errorf("start attempt %s#%d of %s: %w",
				p.TaskName, p.AttemptNo, p.JobRunID, steptrack.ErrAttemptAlreadyExists)
		}
		return Handle{}, fmt.Errorf("start attempt %s#%d of %s: %w",
			p.TaskName, p.AttemptNo, p.JobRunID, err)
	}

	t.logger.Info("attempt started",
		slog.String("job_run_id", p.JobRunID),
		slog.String("task_name", p.TaskName),
		slog.Int("attempt_no", p.AttemptNo),
		slog.String("started_at", startedAt),
	)
	return h, nil
}

// Finish moves the Attempt at h to a terminal status, setting finished_at,
// duration_ms, and the optional nested error detail. The update requires
// an open record at the handle's exact key; a condition failure surfaces
// as steptrack.ErrAttemptNotFound — the handle was stale, the record is
// gone, or the attempt was already finished. Never silently swallowed:
// a logically retried step is a new Attempt record, not a reopened one.
func (t *Tracker) Finish(ctx context.Context, h Handle, status Status, duration time.Duration, detail *ErrorDetail) error {
	if !status.Terminal() {
		return fmt.Errorf("finish attempt %s#%d: status %q is not terminal",
			h.TaskName, h.AttemptNo, status)
	}

	now := steptrack.Timestamp(t.clock())
	set := store.Attributes{
		"status":      string(status),
		"finished_at": now,
		"duration_ms": duration.Milliseconds(),
		"updated_at":  now,
	}
	if detail != nil {
		set["error"] = map[string]any{
			"classification": string(detail.Classification),
			"fingerprint":    detail.Fingerprint,
			"message":        detail.Message,
		}
	}

	err := t.store.Update(ctx, h.Key(), set, store.IfFieldAbsent("finished_at"))
	if errors.Is(err, store.ErrConditionFailed) {
		return fmt.Errorf("finish attempt %s#%d of %s: %w",
			h.TaskName, h.AttemptNo, h.JobRunID, steptrack.ErrAttemptNotFound)
	}
	if err != nil {
		return fmt.Errorf("finish attempt %s#%d of %s: %w",
			h.TaskName, h.AttemptNo, h.JobRunID, err)
	}

	logAttrs := []slog.Attr{
		slog.String("job_run_id", h.JobRunID),
		slog.String("task_name", h.TaskName),
		slog.Int("attempt_no", h.AttemptNo),
		slog.String("status", string(status)),
		slog.Int64("duration_ms", duration.Milliseconds()),
	}
	if detail != nil {
		logAttrs = append(logAttrs,
			slog.String("error_classification", string(detail.Classification)),
			slog.String("error_fingerprint", detail.Fingerprint),
		)
	}
	t.logger.LogAttrs(ctx, slog.LevelInfo, "attempt finished", logAttrs...)
	return nil
}
