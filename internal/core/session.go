package core

import "sync"

// TestReporter is the minimal interface stunt needs from test frameworks.
type TestReporter interface {
	Helper()
	Fatalf(format string, args ...any)
}

// VerifyKind selects how a verification query constrains the ledger: a
// cardinality check on one double, or a position in an ordered sequence
// possibly spanning several doubles.
type VerifyKind int

const (
	// VerifyCalls queries call cardinality (exact, minimum, zero).
	VerifyCalls VerifyKind = iota
	// VerifyOrdered captures a pattern for use in an InOrder check.
	VerifyOrdered
)

// Session is the interception funnel for one logical test run. Every call on
// every double of the session flows through Record, which dispatches on the
// session's mode state: normal recording and stub resolution, stub
// registration, or verification query capture.
//
// Mode state lives here, never in a package global, so concurrent logical
// tests in one process cannot corrupt each other's interpretation of a call.
type Session struct {
	t TestReporter

	mu         sync.Mutex
	armedStub  *StubRegistration // BeginStubbing entry awaiting its defining call
	armedQuery *Query            // BeginVerification entry awaiting its defining call
	// pendingFinalize is the consumed-but-unfinalized entry. Any later
	// interception discards it; finalizing a discarded entry is a
	// protocol violation.
	pendingFinalize interface{ markAbandoned() }
	doubles         []*Double
}

// NewSession creates a session reporting protocol violations to t.
// A nil reporter is allowed for non-test embedding; violations are then
// surfaced only as returned errors.
func NewSession(t TestReporter) *Session {
	return &Session{t: t}
}

// NewDouble creates a double owned by this session. When members are given
// they form the double's dispatch table: recording a call on any other
// member is a protocol violation. With no members the double is open.
func (s *Session) NewDouble(name string, members ...string) *Double {
	double := &Double{
		session: s,
		name:    name,
		stubs:   make(map[string][]stubEntry),
	}

	if len(members) > 0 {
		double.members = make(map[string]bool, len(members))
		for _, m := range members {
			double.members[m] = true
		}
	}

	s.mu.Lock()
	s.doubles = append(s.doubles, double)
	s.mu.Unlock()

	return double
}

// BeginStubbing arms the session so the next intercepted call on any of its
// doubles is interpreted as a stub pattern instead of an interaction. At
// most one mode entry may be outstanding; arming again before the prior
// entry is consumed fails loudly.
func (s *Session) BeginStubbing() *StubRegistration {
	s.mu.Lock()

	if s.armedStub != nil || s.armedQuery != nil {
		s.mu.Unlock()

		err := &ProtocolViolationError{
			Op:     "BeginStubbing",
			Reason: "a prior mode entry has not been consumed by a call",
		}
		s.fail(err)

		return &StubRegistration{session: s, err: err}
	}

	reg := &StubRegistration{session: s}
	s.armedStub = reg
	s.mu.Unlock()

	return reg
}

// BeginVerification arms the session so the next intercepted call is
// interpreted as a verification query pattern instead of an interaction.
func (s *Session) BeginVerification(kind VerifyKind) *Query {
	s.mu.Lock()

	if s.armedStub != nil || s.armedQuery != nil {
		s.mu.Unlock()

		err := &ProtocolViolationError{
			Op:     "BeginVerification",
			Reason: "a prior mode entry has not been consumed by a call",
		}
		s.fail(err)

		return &Query{session: s, err: err}
	}

	query := &Query{session: s, kind: kind}
	s.armedQuery = query
	s.mu.Unlock()

	return query
}

// Record is the single funnel for every call on every double of the
// session. In normal mode it appends an Invocation to the double's ledger,
// notifies waiters, and resolves the call against the stub table, returning
// nil (the absence value) when nothing matches - silently, by design. In an
// armed mode it consumes the mode entry instead: the call defines a stub
// pattern or a query pattern, is not recorded as an interaction, and yields
// nil as a pending sentinel.
func (s *Session) Record(double *Double, member string, args []any, named map[string]any) []any {
	if !double.knowsMember(member) {
		s.fail(&ProtocolViolationError{
			Op:     "Record",
			Reason: "member " + member + " is not in the dispatch table of double " + double.name,
		})

		return nil
	}

	s.mu.Lock()

	// A consumed-but-unfinalized entry is discarded by any later
	// interception; its finalizer will report the violation.
	if s.pendingFinalize != nil {
		s.pendingFinalize.markAbandoned()
		s.pendingFinalize = nil
	}

	if reg := s.armedStub; reg != nil {
		s.armedStub = nil
		reg.double = double
		reg.pattern = &Pattern{Member: member, Args: args, Named: named}
		s.pendingFinalize = reg
		s.mu.Unlock()

		return nil
	}

	if query := s.armedQuery; query != nil {
		s.armedQuery = nil
		query.double = double
		query.pattern = &Pattern{Member: member, Args: args, Named: named}

		// Ordered queries are complete pattern handles once filled;
		// only cardinality queries await a fluent finalizer.
		if query.kind != VerifyOrdered {
			s.pendingFinalize = query
		}

		s.mu.Unlock()

		return nil
	}

	s.mu.Unlock()

	inv := &Invocation{Member: member, Args: args, Named: named, Seq: nextSeq()}
	double.append(inv)

	answer, ok := double.lookupStub(inv)
	if !ok {
		return nil
	}

	return answer.resolve(inv)
}

// teardown settles every outstanding waiter on the session's doubles. Called
// when the surrounding test concludes.
func (s *Session) teardown() {
	s.mu.Lock()
	doubles := make([]*Double, len(s.doubles))
	copy(doubles, s.doubles)
	s.mu.Unlock()

	for _, d := range doubles {
		d.cancelAllWaiters()
	}
}

// fail reports a protocol violation to the attached reporter, if any.
func (s *Session) fail(err error) {
	if s.t == nil {
		return
	}

	s.t.Helper()
	s.t.Fatalf("%v", err)
}
