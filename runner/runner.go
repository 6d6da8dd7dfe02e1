// Package runner is the step dispatcher. It sits above the subsystem
// packages and wraps arbitrary step logic with the full tracking flow:
// ensure a correlation identity, validate the envelope, record the
// attempt start, take an optional idempotency lock, invoke the step
// through middleware, classify any failure, and record the attempt
// outcome. It labels failures; it never retries them. Retry timing
// belongs to the orchestrator.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/novaops/steptrack"
	"github.com/novaops/steptrack/attempt"
	"github.com/novaops/steptrack/classify"
	"github.com/novaops/steptrack/jobrun"
	"github.com/novaops/steptrack/lock"
	"github.com/novaops/steptrack/middleware"
)

// ErrLockHeld is returned when a step's idempotency lock is already held
// by a concurrent duplicate invocation. The step logic is not run; the
// orchestrator may re-deliver once the holder releases or the TTL lapses.
var ErrLockHeld = errors.New("runner: idempotency lock held")

// StepFunc is the external step logic invoked by the runner. It receives
// the validated envelope and returns the envelope to pass downstream.
type StepFunc func(ctx context.Context, env steptrack.Envelope) (steptrack.Envelope, error)

// Runner executes steps with full lifecycle tracking.
type Runner struct {
	rt       *steptrack.Runtime
	runs     *jobrun.Tracker
	attempts *attempt.Tracker
	locks    *lock.Locker
	mw       middleware.Middleware
	logger   *slog.Logger
	clock    steptrack.Clock
}

// Option configures a Runner.
type Option func(*Runner)

// WithMiddleware sets the middleware chain applied around every step.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(r *Runner) { r.mw = middleware.Chain(mws...) }
}

// New creates a Runner over the given runtime. Trackers and the locker
// share the runtime's store, clock, and logger.
func New(rt *steptrack.Runtime, opts ...Option) *Runner {
	r := &Runner{
		rt:     rt,
		logger: rt.Logger(),
		clock:  rt.Clock(),
		mw:     middleware.Chain(),
		runs: jobrun.New(rt.Store(),
			jobrun.WithClock(rt.Clock()), jobrun.WithLogger(rt.Logger())),
		attempts: attempt.New(rt.Store(),
			attempt.WithClock(rt.Clock()), attempt.WithLogger(rt.Logger())),
		locks: lock.New(rt.Store(),
			lock.WithClock(rt.Clock()), lock.WithLogger(rt.Logger())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Runs exposes the job run tracker for workflow-boundary callers.
func (r *Runner) Runs() *jobrun.Tracker { return r.runs }

// Attempts exposes the attempt tracker.
func (r *Runner) Attempts() *attempt.Tracker { return r.attempts }

// Locks exposes the idempotency locker.
func (r *Runner) Locks() *lock.Locker { return r.locks }

// execConfig holds per-execution settings.
type execConfig struct {
	lockKey string
	lockTTL time.Duration
}

// ExecOption configures a single Execute call.
type ExecOption func(*execConfig)

// WithLock protects the step with an idempotency lock under the given
// key. A held lock skips the step and returns ErrLockHeld.
func WithLock(key string) ExecOption {
	return func(c *execConfig) { c.lockKey = key }
}

// WithLockTTL overrides the runtime's default lock TTL for this call.
func WithLockTTL(ttl time.Duration) ExecOption {
	return func(c *execConfig) { c.lockTTL = ttl }
}

// Execute runs one step invocation with full tracking. taskName becomes
// the envelope's state name and the attempt's task name. The returned
// envelope carries the updated context; on failure the original error is
// returned after its classification has been recorded and logged.
func (r *Runner) Execute(ctx context.Context, env steptrack.Envelope, taskName string, step StepFunc, opts ...ExecOption) (steptrack.Envelope, error) {
	cfg := execConfig{lockTTL: r.rt.Config().LockTTL}
	for _, opt := range opts {
		opt(&cfg)
	}

	env = steptrack.EnsureCorrelationID(env)
	if err := env.Validate(); err != nil {
		// Shape failures are terminal and happen before any persistence.
		res := classify.Classify(err)
		r.logError(ctx, env, res)
		return env, err
	}

	attemptNo := env.Context.AttemptNumber
	if attemptNo < 1 {
		attemptNo = 1
	}
	env = steptrack.WithContext(env, steptrack.Context{
		StateName:     taskName,
		AttemptNumber: attemptNo,
	})

	handle, err := r.attempts.Start(ctx, attempt.StartParams{
		NovaID:    env.Context.NovaID,
		JobRunID:  env.Context.JobRunID,
		TaskName:  taskName,
		AttemptNo: attemptNo,
		Identifiers: map[string]string{
			"correlation_id":  env.Context.CorrelationID,
			"data_product_id": env.Context.DataProductID,
			"reference_id":    env.Context.ReferenceID,
		},
	})
	if err != nil {
		return env, err
	}

	if cfg.lockKey != "" {
		acquired, lockErr := r.locks.Acquire(ctx, cfg.lockKey, cfg.lockTTL)
		if lockErr != nil {
			r.finish(ctx, env, handle, attempt.StatusFailed, 0, lockErr)
			return env, lockErr
		}
		if !acquired {
			// Duplicate concurrent delivery: record and step aside without
			// running the step. The holder's attempt owns the outcome.
			r.finish(ctx, env, handle, attempt.StatusCancelled, 0, ErrLockHeld)
			return env, ErrLockHeld
		}
		defer func() {
			if relErr := r.locks.Release(ctx, cfg.lockKey); relErr != nil {
				r.logger.Warn("lock release failed",
					slog.String("lock_key", cfg.lockKey),
					slog.String("error", relErr.Error()),
				)
			}
		}()
	}

	start := r.clock()
	out := env
	terminal := func(ctx context.Context) error {
		var stepErr error
		out, stepErr = step(ctx, env)
		return stepErr
	}

	stepErr := r.mw(ctx, &env, terminal)
	elapsed := r.clock().Sub(start)

	if stepErr != nil {
		r.finish(ctx, env, handle, statusFor(stepErr), elapsed, stepErr)
		return env, stepErr
	}

	if finErr := r.attempts.Finish(ctx, handle, attempt.StatusSucceeded, elapsed, nil); finErr != nil {
		return out, finErr
	}
	return out, nil
}

// statusFor maps a step error onto the terminal attempt status.
func statusFor(err error) attempt.Status {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return attempt.StatusTimedOut
	case errors.Is(err, context.Canceled):
		return attempt.StatusCancelled
	default:
		return attempt.StatusFailed
	}
}

// finish records a failed terminal state with classified error detail.
// Record-keeping failures are logged but do not mask the step error.
func (r *Runner) finish(ctx context.Context, env steptrack.Envelope, h attempt.Handle, status attempt.Status, elapsed time.Duration, stepErr error) {
	res := classify.Classify(stepErr)
	detail := &attempt.ErrorDetail{
		Classification: res.Classification,
		Fingerprint:    res.Fingerprint,
		Message:        res.Message,
	}
	r.logError(ctx, env, res)

	if err := r.attempts.Finish(ctx, h, status, elapsed, detail); err != nil {
		r.logger.Error("attempt finish failed",
			slog.String("task_name", h.TaskName),
			slog.Int("attempt_no", h.AttemptNo),
			slog.String("error", err.Error()),
		)
	}
}

// logError emits the error event with classification and fingerprint,
// carrying every context field present on the envelope.
func (r *Runner) logError(ctx context.Context, env steptrack.Envelope, res classify.Result) {
	attrs := append(env.Context.LogAttrs(),
		slog.String("error_classification", string(res.Classification)),
		slog.String("error_fingerprint", res.Fingerprint),
		slog.String("error_message", res.Message),
	)
	r.logger.LogAttrs(ctx, slog.LevelError, "step_error", attrs...)
}

// BeginRun opens a JobRun at a workflow boundary and returns the envelope
// with the run identity merged into its context, plus the Ref needed to
// finalize the run later.
func (r *Runner) BeginRun(ctx context.Context, env steptrack.Envelope, workflowName string) (steptrack.Envelope, jobrun.Ref, error) {
	env = steptrack.EnsureCorrelationID(env)
	if err := env.Validate(); err != nil {
		return env, jobrun.Ref{}, err
	}

	ref, err := r.runs.Begin(ctx, jobrun.BeginParams{
		NovaID:         env.Context.NovaID,
		WorkflowName:   workflowName,
		ExecutionARN:   env.Context.ExecutionARN,
		CorrelationID:  env.Context.CorrelationID,
		IdempotencyKey: env.Context.IdempotencyKey,
		Identifiers: map[string]string{
			"data_product_id": env.Context.DataProductID,
			"reference_id":    env.Context.ReferenceID,
		},
	})
	if err != nil {
		return env, jobrun.Ref{}, fmt.Errorf("begin run for workflow %q: %w", workflowName, err)
	}

	env = steptrack.WithContext(env, steptrack.Context{
		WorkflowName: workflowName,
		JobRunID:     ref.ID.String(),
	})
	return env, ref, nil
}

// FinalizeRun closes a JobRun at a workflow boundary. A second finalize of
// the same run returns steptrack.ErrRunAlreadyFinalized; callers running
// under at-least-once orchestration may treat that condition as benign.
func (r *Runner) FinalizeRun(ctx context.Context, ref jobrun.Ref, status jobrun.Status, p jobrun.FinalizeParams) error {
	return r.runs.Finalize(ctx, ref, status, p)
}
