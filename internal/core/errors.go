package core

import "fmt"

// ProtocolViolationError reports misuse of the stubbing/verification
// protocol itself: a mode entered while a prior entry is unconsumed, or a
// pending registration finalized after it was abandoned. These are
// programmer errors and are always fatal when a TestReporter is attached.
type ProtocolViolationError struct {
	Op     string
	Reason string
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("protocol violation in %s: %s", e.Op, e.Reason)
}

// VerificationError reports a failed verification query: the ledger did not
// satisfy the requested cardinality or ordering constraint. Recoverable;
// callers decide whether to fail the test.
type VerificationError struct {
	Kind     string // "count", "at-least", "zero", "no-more", "order"
	Double   string
	Member   string
	Expected int
	Actual   int
	Detail   string
}

func (e *VerificationError) Error() string {
	msg := fmt.Sprintf("verification failed (%s)", e.Kind)

	if e.Double != "" {
		msg += fmt.Sprintf(" on double %q", e.Double)
	}

	if e.Member != "" {
		msg += fmt.Sprintf(" member %q", e.Member)
	}

	msg += fmt.Sprintf(": expected %d, got %d", e.Expected, e.Actual)

	if e.Detail != "" {
		msg += ": " + e.Detail
	}

	return msg
}
