// Package classify maps arbitrary step failures onto one of three
// dispositions — RETRYABLE, TERMINAL, or QUARANTINE — and derives a
// stable short fingerprint for log correlation and dashboard grouping.
//
// Classify is a pure function: it returns a value and never panics or
// raises, forming the boundary between step logic and the runtime. The
// runtime labels failures; it does not recover from them.
package classify

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/novaops/steptrack"
	"github.com/novaops/steptrack/store"
)

// Classification is the failure disposition consumed by the orchestrator.
type Classification string

const (
	// Retryable marks transient failures safe to re-invoke.
	Retryable Classification = "RETRYABLE"
	// Terminal marks permanent failures; re-invocation will not help.
	Terminal Classification = "TERMINAL"
	// Quarantine marks suspect data that should be routed to human review
	// rather than retried or hard-failed.
	Quarantine Classification = "QUARANTINE"
)

// Result is the outcome of classifying one failure.
type Result struct {
	Classification Classification
	Fingerprint    string
	Message        string
}

// SuspectDataError is raised by step logic to signal upstream data that
// should be quarantined instead of retried.
type SuspectDataError struct {
	Msg string
}

func (e *SuspectDataError) Error() string { return e.Msg }

// Suspectf formats a new SuspectDataError.
func Suspectf(format string, args ...any) error {
	return &SuspectDataError{Msg: fmt.Sprintf(format, args...)}
}

// ValidationError is raised for shape or type failures that should not be
// retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invalidf formats a new ValidationError.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// throttleCodes are store error codes that indicate rate limiting.
var throttleCodes = map[string]struct{}{
	"Throttling":                             {},
	"ThrottlingException":                    {},
	"ProvisionedThroughputExceededException": {},
	"RequestLimitExceeded":                   {},
	"TooManyRequestsException":               {},
	"SlowDown":                               {},
}

// transientStatus are transport statuses treated as transient.
var transientStatus = map[int]struct{}{
	429: {}, 500: {}, 502: {}, 503: {}, 504: {},
}

// coder matches the aws/smithy-go APIError shape, so raw AWS SDK errors
// classify the same way as normalized store.Error values.
type coder interface {
	ErrorCode() string
}

// Classify maps err onto a disposition, fingerprint, and message.
//
// Rules, in order: SuspectDataError → QUARANTINE; validation and envelope
// shape errors → TERMINAL; store/transport errors → RETRYABLE when the
// code is a throttling code or the status is 429/5xx, TERMINAL otherwise;
// anything else → RETRYABLE. The fail-open default is deliberate: an
// unrecognized failure is more likely transient infrastructure trouble
// than a permanent condition.
func Classify(err error) Result {
	res := Result{
		Fingerprint: Fingerprint(err),
		Message:     message(err),
	}

	var suspect *SuspectDataError
	if errors.As(err, &suspect) {
		res.Classification = Quarantine
		return res
	}

	var invalid *ValidationError
	var shape *steptrack.EnvelopeError
	if errors.As(err, &invalid) || errors.As(err, &shape) {
		res.Classification = Terminal
		return res
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		if isThrottle(storeErr.Code) || isTransient(storeErr.Status) {
			res.Classification = Retryable
		} else {
			res.Classification = Terminal
		}
		return res
	}

	var apiErr coder
	if errors.As(err, &apiErr) {
		if isThrottle(apiErr.ErrorCode()) {
			res.Classification = Retryable
		} else {
			res.Classification = Terminal
		}
		return res
	}

	res.Classification = Retryable
	return res
}

func isThrottle(code string) bool {
	_, ok := throttleCodes[code]
	return ok
}

func isTransient(status int) bool {
	_, ok := transientStatus[status]
	return ok
}

var whitespaceRE = regexp.MustCompile(`\s+`)

func normalize(msg string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(msg), " ")
}

// message returns the human message for err, falling back to the type
// name when the error text is empty.
func message(err error) string {
	if err == nil {
		return ""
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return typeName(err)
}

// typeName returns the bare concrete type name of err, without package
// path or pointer marker, so fingerprints stay stable across refactors
// that move types between packages.
func typeName(err error) string {
	name := fmt.Sprintf("%T", err)
	name = strings.TrimLeft(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Fingerprint returns a stable 16-hex-character digest for err. The
// material is "{type}:{store_error_code}:{normalized_message}" — stack
// traces are deliberately excluded so the digest stays stable across code
// changes and safe to retain long-term. Truncation trades collision risk
// for log compactness; this is not cryptographic use.
func Fingerprint(err error) string {
	if err == nil {
		return FingerprintString("")
	}

	material := typeName(err) + ":" + normalize(err.Error())

	// Include the backend error code for store errors: the code is stabler
	// than the message text across SDK versions.
	var apiErr coder
	if errors.As(err, &apiErr) {
		material = typeName(err) + ":" + apiErr.ErrorCode() + ":" + normalize(err.Error())
	}

	return digest(material)
}

// FingerprintString fingerprints a raw message with the same whitespace
// normalization applied to errors.
func FingerprintString(msg string) string {
	return digest(normalize(msg))
}

func digest(material string) string {
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])[:16]
}
