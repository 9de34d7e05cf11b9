package core

// Answer determines the outcome of a resolved call: fixed return values, a
// panic propagated to the original caller, or a computation invoked fresh on
// every resolution (never cached), enabling per-call-varying results.
type Answer struct {
	values   []any
	panicVal any
	isPanic  bool
	compute  func(*Invocation) []any
}

// Returns builds an Answer that yields fixed values.
func Returns(values ...any) Answer {
	return Answer{values: values}
}

// PanicsWith builds an Answer that panics with the given value.
func PanicsWith(value any) Answer {
	return Answer{panicVal: value, isPanic: true}
}

// Computes builds an Answer that runs fn on every resolution.
func Computes(fn func(*Invocation) []any) Answer {
	return Answer{compute: fn}
}

// resolve produces the values for inv. Panics and panics raised inside
// computed answers propagate verbatim - never caught or wrapped here.
func (a Answer) resolve(inv *Invocation) []any {
	if a.isPanic {
		panic(a.panicVal)
	}

	if a.compute != nil {
		return a.compute(inv)
	}

	return a.values
}

// stubEntry is one (pattern, answer) pair in a double's stub table. Entries
// are append-only; resolution scans newest-first so re-stubbing overrides
// without mutating older entries.
type stubEntry struct {
	pattern *Pattern
	answer  Answer
}

// StubRegistration is a pending stub produced by BeginStubbing. The next
// intercepted call on any of the session's doubles defines its member and
// argument pattern; Return, PanicWith, or Do then finalizes it into the
// double's stub table. An intervening unrelated interception abandons the
// registration, and finalizing it afterwards is a protocol violation.
type StubRegistration struct {
	session   *Session
	double    *Double
	pattern   *Pattern
	abandoned bool
	finalized bool
	err       error
}

// Return finalizes the registration with fixed return values.
func (r *StubRegistration) Return(values ...any) error {
	return r.finalize("Return", Returns(values...))
}

// PanicWith finalizes the registration with a panic answer.
func (r *StubRegistration) PanicWith(value any) error {
	return r.finalize("PanicWith", PanicsWith(value))
}

// Do finalizes the registration with a computed answer.
func (r *StubRegistration) Do(fn func(*Invocation) []any) error {
	return r.finalize("Do", Computes(fn))
}

// markAbandoned is called under session.mu when another interception
// discards this pending registration.
func (r *StubRegistration) markAbandoned() {
	r.abandoned = true
}

func (r *StubRegistration) finalize(op string, answer Answer) error {
	if r.err != nil {
		return r.err
	}

	s := r.session

	s.mu.Lock()

	var err *ProtocolViolationError

	switch {
	case r.abandoned:
		err = &ProtocolViolationError{Op: op, Reason: "stub registration was abandoned by an intervening call"}
	case r.finalized:
		err = &ProtocolViolationError{Op: op, Reason: "stub registration already finalized"}
	case r.pattern == nil:
		err = &ProtocolViolationError{Op: op, Reason: "no call has been intercepted for this registration"}
	}

	if err != nil {
		s.mu.Unlock()
		s.fail(err)

		return err
	}

	r.finalized = true

	if s.pendingFinalize == r {
		s.pendingFinalize = nil
	}

	double, pattern := r.double, r.pattern

	s.mu.Unlock()

	double.Stub(pattern, answer)

	return nil
}
