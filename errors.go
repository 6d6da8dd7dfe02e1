package steptrack

import "errors"

var (
	// ErrNoStore means a Runtime was built without a store backend.
	ErrNoStore = errors.New("steptrack: no store configured")

	// Conflict errors.
	// ErrRunAlreadyExists means a JobRun with the exact same identity key
	// was already created. Under random ID generation this should not
	// happen; it signals a replayed begin call with a deterministic key.
	ErrRunAlreadyExists = errors.New("steptrack: job run already exists")

	// ErrRunAlreadyFinalized means a JobRun already carries a terminal
	// state. Duplicate terminal transitions are expected under certain
	// orchestrator retry topologies; callers may treat this as benign.
	ErrRunAlreadyFinalized = errors.New("steptrack: job run already finalized")

	// ErrAttemptAlreadyExists means an Attempt insert collided on its full
	// identity, including the start timestamp. Structurally this points at
	// a clock or identity-generation defect, not a normal retry.
	ErrAttemptAlreadyExists = errors.New("steptrack: attempt already exists")

	// ErrAttemptNotFound means an Attempt finish found no open record for
	// the handle: the handle is stale, the record is gone, or the attempt
	// was already finished. Never swallowed.
	ErrAttemptNotFound = errors.New("steptrack: attempt not found or already finished")
)

// EnvelopeError reports an envelope that fails shape validation at ingress.
// It is always classified as terminal: a malformed envelope will not become
// well-formed on retry, and the runtime does not guess caller intent.
type EnvelopeError struct {
	Reason string
}

func (e *EnvelopeError) Error() string {
	return "steptrack: invalid envelope: " + e.Reason
}
