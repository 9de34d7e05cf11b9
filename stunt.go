// Package stunt provides the core of a test-double library for Go: a call
// interception funnel that records interactions in per-double ledgers,
// resolves them against registered stubs, and evaluates verification
// queries over the recorded history.
//
// This is the public API entry point. Implementation lives in internal/core.
package stunt

import (
	"context"

	"github.com/stuntkit/stunt/internal/core"
)

// Answer determines the outcome of a resolved call.
type Answer = core.Answer

// Captor is a Matcher that also records matched values for later inspection.
type Captor = core.Captor

// Double is one test-double instance with its own ledger and stub table.
type Double = core.Double

// Invocation is one recorded call on a double.
type Invocation = core.Invocation

// Matcher defines the interface for flexible value matching.
type Matcher = core.Matcher

// Pattern describes a class of Invocations on one member.
type Pattern = core.Pattern

// ProtocolViolationError reports misuse of the stubbing/verification protocol.
type ProtocolViolationError = core.ProtocolViolationError

// Query is a verification query with fluent cardinality finalizers.
type Query = core.Query

// Session is the interception funnel and mode state for one logical test.
type Session = core.Session

// StubRegistration is a pending stub awaiting its defining call and answer.
type StubRegistration = core.StubRegistration

// TestReporter is the minimal interface stunt needs from test frameworks.
type TestReporter = core.TestReporter

// VerificationError reports a failed verification query.
type VerificationError = core.VerificationError

// VerifyKind selects cardinality or ordered verification.
type VerifyKind = core.VerifyKind

// Verification kinds.
const (
	VerifyCalls   = core.VerifyCalls
	VerifyOrdered = core.VerifyOrdered
)

// NewSession creates a session reporting protocol violations to t.
func NewSession(t TestReporter) *Session {
	return core.NewSession(t)
}

// GetOrCreateSession returns the Session for the given test, creating one if
// needed. Sessions are torn down automatically when the reporter supports
// Cleanup.
func GetOrCreateSession(t TestReporter) *Session {
	return core.GetOrCreateSession(t)
}

// NewPattern builds a positional pattern for the given member.
func NewPattern(member string, args ...any) *Pattern {
	return core.NewPattern(member, args...)
}

// Returns builds an Answer that yields fixed values.
func Returns(values ...any) Answer {
	return core.Returns(values...)
}

// PanicsWith builds an Answer that panics with the given value.
func PanicsWith(value any) Answer {
	return core.PanicsWith(value)
}

// Computes builds an Answer that runs fn fresh on every resolution.
func Computes(fn func(*Invocation) []any) Answer {
	return core.Computes(fn)
}

// InOrder verifies that the queries' patterns appear in ledger order,
// possibly across multiple doubles.
func InOrder(queries ...*Query) error {
	return core.InOrder(queries...)
}

// MatchValue checks if actual matches expected.
func MatchValue(actual, expected any) (bool, string) {
	return core.MatchValue(actual, expected)
}

// Ret extracts the i'th answer value as type T, with T's zero value standing
// in for an absent answer. Generated dispatch methods use this.
func Ret[T any](vals []any, i int) T {
	return core.Ret[T](vals, i)
}

// WaitForMatch returns a channel that yields the next Invocation on the
// double satisfying pattern, resolving immediately from history if a match
// already occurred. Cancelling ctx closes the channel without a value.
func WaitForMatch(ctx context.Context, d *Double, pattern *Pattern) <-chan *Invocation {
	return d.WaitForMatch(ctx, pattern)
}
