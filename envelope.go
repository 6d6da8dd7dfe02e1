package steptrack

import (
	"log/slog"
	"maps"

	"github.com/google/uuid"
)

// Context carries routing and tracing metadata between steps. All fields
// are optional except CorrelationID, which must be present before any lock
// or record operation is attempted. The domain linkage identifiers
// (NovaID, DataProductID, ReferenceID) are opaque pass-through values; the
// runtime never interprets them.
type Context struct {
	WorkflowName  string `json:"workflow_name,omitempty"`
	StateName     string `json:"state_name,omitempty"`
	ExecutionARN  string `json:"execution_arn,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`

	JobRunID      string `json:"job_run_id,omitempty"`
	AttemptNumber int    `json:"attempt_number,omitempty"`

	// Optional identifiers that may or may not be known at a given point.
	NovaID         string `json:"nova_id,omitempty"`
	DataProductID  string `json:"data_product_id,omitempty"`
	ReferenceID    string `json:"reference_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// LogAttrs returns the present context fields as slog attributes, so every
// log record emitted for a step can be correlated across one workflow
// execution without a separate tracing system.
func (c Context) LogAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 9)
	add := func(key, val string) {
		if val != "" {
			attrs = append(attrs, slog.String(key, val))
		}
	}
	add("workflow_name", c.WorkflowName)
	add("state_name", c.StateName)
	add("execution_arn", c.ExecutionARN)
	add("correlation_id", c.CorrelationID)
	add("job_run_id", c.JobRunID)
	if c.AttemptNumber > 0 {
		attrs = append(attrs, slog.Int("attempt_number", c.AttemptNumber))
	}
	add("nova_id", c.NovaID)
	add("data_product_id", c.DataProductID)
	add("reference_id", c.ReferenceID)
	return attrs
}

// Envelope is the canonical message shape passed between steps: a domain
// input payload plus routing/tracing context. Envelopes are treated as
// immutable — every transformation returns a new Envelope and never
// mutates the receiver, keeping propagation race-free across steps.
type Envelope struct {
	Input   map[string]any `json:"input"`
	Context Context        `json:"context"`
}

// clone returns a copy with its own input map. Payload values themselves
// are opaque to the runtime and never mutated, so a shallow element copy
// is sufficient.
func (e Envelope) clone() Envelope {
	return Envelope{Input: maps.Clone(e.Input), Context: e.Context}
}

// EnsureCorrelationID returns an envelope whose context carries a
// correlation ID, generating a fresh random UUID when missing or empty.
// When the ID is already set the input envelope is returned unchanged; an
// existing correlation ID is never regenerated.
func EnsureCorrelationID(e Envelope) Envelope {
	if e.Context.CorrelationID != "" {
		return e
	}
	out := e.clone()
	out.Context.CorrelationID = uuid.NewString()
	return out
}

// WithContext returns a new envelope with updates merged into the context.
// Zero-valued fields in updates leave the existing values untouched: this
// is a merge, not a replace.
func WithContext(e Envelope, updates Context) Envelope {
	out := e.clone()
	merge := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	merge(&out.Context.WorkflowName, updates.WorkflowName)
	merge(&out.Context.StateName, updates.StateName)
	merge(&out.Context.ExecutionARN, updates.ExecutionARN)
	merge(&out.Context.CorrelationID, updates.CorrelationID)
	merge(&out.Context.JobRunID, updates.JobRunID)
	if updates.AttemptNumber > 0 {
		out.Context.AttemptNumber = updates.AttemptNumber
	}
	merge(&out.Context.NovaID, updates.NovaID)
	merge(&out.Context.DataProductID, updates.DataProductID)
	merge(&out.Context.ReferenceID, updates.ReferenceID)
	merge(&out.Context.IdempotencyKey, updates.IdempotencyKey)
	return out
}

// Validate checks the envelope shape at ingress from the orchestrator:
// the input payload must be present and the context must carry a non-empty
// correlation ID. Returns an *EnvelopeError on failure.
func (e Envelope) Validate() error {
	if e.Input == nil {
		return &EnvelopeError{Reason: "missing input payload"}
	}
	if e.Context.CorrelationID == "" {
		return &EnvelopeError{Reason: "context.correlation_id is required"}
	}
	return nil
}
