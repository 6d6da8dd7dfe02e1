package classify_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/novaops/steptrack"
	"github.com/novaops/steptrack/classify"
	"github.com/novaops/steptrack/store"
)

// ──────────────────────────────────────────────────
// Fingerprinting
// ──────────────────────────────────────────────────

func TestFingerprint_Deterministic(t *testing.T) {
	err := errors.New("connection reset by peer")
	first := classify.Fingerprint(err)
	second := classify.Fingerprint(err)

	if first != second {
		t.Errorf("fingerprint not stable: %q != %q", first, second)
	}
	if len(first) != 16 {
		t.Errorf("fingerprint length = %d, want 16", len(first))
	}
}

func TestFingerprint_WhitespaceNormalized(t *testing.T) {
	a := classify.FingerprintString("RuntimeError: hello   world")
	b := classify.FingerprintString("RuntimeError: hello world")
	if a != b {
		t.Errorf("whitespace changed the fingerprint: %q != %q", a, b)
	}

	c := classify.Fingerprint(errors.New("hello \t\n world"))
	d := classify.Fingerprint(errors.New("hello world"))
	if c != d {
		t.Errorf("whitespace changed the error fingerprint: %q != %q", c, d)
	}
}

func TestFingerprint_DifferentMessagesDiffer(t *testing.T) {
	a := classify.Fingerprint(errors.New("disk full"))
	b := classify.Fingerprint(errors.New("disk empty"))
	if a == b {
		t.Error("distinct messages produced the same fingerprint")
	}
}

func TestFingerprint_IncludesStoreCode(t *testing.T) {
	// Same message, different backend code: fingerprints must differ, so
	// dashboards group by the stable code rather than SDK message text.
	a := classify.Fingerprint(&store.Error{Code: "ThrottlingException", Err: errors.New("rate exceeded")})
	b := classify.Fingerprint(&store.Error{Code: "SlowDown", Err: errors.New("rate exceeded")})
	if a == b {
		t.Error("store code not part of the fingerprint material")
	}
}

// ──────────────────────────────────────────────────
// Classification
// ──────────────────────────────────────────────────

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want classify.Classification
	}{
		{"suspect data", classify.Suspectf("magnitude column looks shifted"), classify.Quarantine},
		{"wrapped suspect data", fmt.Errorf("step: %w", classify.Suspectf("x")), classify.Quarantine},
		{"validation", classify.Invalidf("bad value"), classify.Terminal},
		{"envelope shape", &steptrack.EnvelopeError{Reason: "missing input"}, classify.Terminal},
		{"store throttling code", &store.Error{Code: "ThrottlingException", Err: errors.New("slow down")}, classify.Retryable},
		{"store provisioned throughput", &store.Error{Code: "ProvisionedThroughputExceededException", Err: errors.New("x")}, classify.Retryable},
		{"store transient status", &store.Error{Status: 503, Err: errors.New("unavailable")}, classify.Retryable},
		{"store rate limited status", &store.Error{Status: 429, Err: errors.New("too many requests")}, classify.Retryable},
		{"store permanent code", &store.Error{Code: "AccessDeniedException", Status: 400, Err: errors.New("denied")}, classify.Terminal},
		{"unrecognized error", errors.New("something odd"), classify.Retryable},
		{"wrapped unrecognized error", fmt.Errorf("step: %w", errors.New("boom")), classify.Retryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := classify.Classify(tt.err)
			if res.Classification != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, res.Classification, tt.want)
			}
			if len(res.Fingerprint) != 16 {
				t.Errorf("fingerprint length = %d, want 16", len(res.Fingerprint))
			}
			if res.Message == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestClassify_MessageFallsBackToTypeName(t *testing.T) {
	res := classify.Classify(&classify.SuspectDataError{})
	if res.Message != "SuspectDataError" {
		t.Errorf("Message = %q, want type name fallback", res.Message)
	}
}
