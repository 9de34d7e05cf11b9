package core_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stuntkit/stunt"
)

// Helper to capture test failures.
type mockT struct {
	testing.T

	failed bool
	msg    string
}

func (m *mockT) Fatalf(format string, args ...any) {
	m.failed = true
	m.msg = fmt.Sprintf(format, args...)
	// In a real test we'd stop here, but for testing our engine we just record it
	panic("mockT failed: " + m.msg)
}

func (m *mockT) Helper() {}

// expectProtocolViolation runs fn and asserts it trips a fatal protocol
// violation on the mock reporter.
func expectProtocolViolation(t *testing.T, m *mockT, fn func()) {
	t.Helper()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected protocol violation panic, got none")
		}

		if !m.failed {
			t.Error("Expected reporter failure, got none")
		}

		if !strings.Contains(m.msg, "protocol violation") {
			t.Errorf("Expected protocol violation message, got %q", m.msg)
		}
	}()

	fn()
}

func TestUnstubbedCall_ReturnsAbsenceValue(t *testing.T) {
	t.Parallel()

	sess := stunt.NewSession(t)
	cat := sess.NewDouble("cat", "Sound")

	vals := cat.Record("Sound")
	if vals != nil {
		t.Errorf("expected nil answer for unstubbed call, got %v", vals)
	}

	if got := stunt.Ret[string](vals, 0); got != "" {
		t.Errorf("expected zero value, got %q", got)
	}
}

func TestStubbing_CatSoundScenario(t *testing.T) {
	t.Parallel()

	sess := stunt.NewSession(t)
	cat := sess.NewDouble("cat", "Sound")

	// No stub: absence value.
	if got := stunt.Ret[string](cat.Record("Sound"), 0); got != "" {
		t.Errorf("expected absence value, got %q", got)
	}

	// Stub Sound -> "Purr"; two calls both return it.
	reg := sess.BeginStubbing()
	cat.Record("Sound")

	if err := reg.Return("Purr"); err != nil {
		t.Fatalf("unexpected error finalizing stub: %v", err)
	}

	for range 2 {
		if got := stunt.Ret[string](cat.Record("Sound"), 0); got != "Purr" {
			t.Errorf("expected Purr, got %q", got)
		}
	}

	// Re-stub Sound -> "Meow"; override wins without mutating the old entry.
	reg = sess.BeginStubbing()
	cat.Record("Sound")

	if err := reg.Return("Meow"); err != nil {
		t.Fatalf("unexpected error finalizing stub: %v", err)
	}

	if got := stunt.Ret[string](cat.Record("Sound"), 0); got != "Meow" {
		t.Errorf("expected Meow, got %q", got)
	}

	// Stubbing interceptions are registrations, not interactions.
	if got := cat.CallCount(); got != 4 {
		t.Errorf("expected 4 recorded interactions, got %d", got)
	}
}

func TestStubbing_LiteralPatternOnlyMatchesExactValue(t *testing.T) {
	t.Parallel()

	sess := stunt.NewSession(t)
	store := sess.NewDouble("store", "Get")

	reg := sess.BeginStubbing()
	store.Record("Get", "key-1")

	if err := reg.Return(42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := stunt.Ret[int](store.Record("Get", "key-1"), 0); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	if got := stunt.Ret[int](store.Record("Get", "key-2"), 0); got != 0 {
		t.Errorf("expected absence value for other key, got %d", got)
	}
}

func TestStubbing_PanicAnswerPropagates(t *testing.T) {
	t.Parallel()

	sess := stunt.NewSession(t)
	db := sess.NewDouble("db", "Query")

	reg := sess.BeginStubbing()
	db.Record("Query", "boom")

	if err := reg.PanicWith("connection lost"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer func() {
		if r := recover(); r != "connection lost" {
			t.Errorf("expected panic value to propagate verbatim, got %v", r)
		}
	}()

	db.Record("Query", "boom")
}

func TestStubbing_ComputedAnswerRunsFreshEachCall(t *testing.T) {
	t.Parallel()

	sess := stunt.NewSession(t)
	counter := sess.NewDouble("counter", "Next")

	calls := 0

	counter.Stub(stunt.NewPattern("Next"), stunt.Computes(func(*stunt.Invocation) []any {
		calls++

		return []any{calls}
	}))

	for want := 1; want <= 3; want++ {
		if got := stunt.Ret[int](counter.Record("Next"), 0); got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}
}

func TestNamedArguments(t *testing.T) {
	t.Parallel()

	sess := stunt.NewSession(t)
	api := sess.NewDouble("api", "Fetch")

	api.Stub(
		stunt.NewPattern("Fetch", "users").WithNamed("mode", "fast"),
		stunt.Returns("ok"),
	)

	t.Run("Constrained name matches when supplied", func(t *testing.T) {
		got := stunt.Ret[string](api.RecordNamed("Fetch", []any{"users"}, map[string]any{"mode": "fast"}), 0)
		if got != "ok" {
			t.Errorf("expected ok, got %q", got)
		}
	})

	t.Run("Pattern naming an unsupplied argument never matches", func(t *testing.T) {
		got := stunt.Ret[string](api.Record("Fetch", "users"), 0)
		if got != "" {
			t.Errorf("expected absence value, got %q", got)
		}
	})

	t.Run("Unconstrained extra names are ignored", func(t *testing.T) {
		got := stunt.Ret[string](api.RecordNamed(
			"Fetch", []any{"users"},
			map[string]any{"mode": "fast", "retries": 3},
		), 0)
		if got != "ok" {
			t.Errorf("expected ok, got %q", got)
		}
	})
}

func TestModeProtocol_DoubleEntryFailsLoudly(t *testing.T) {
	t.Parallel()

	m := &mockT{}
	sess := stunt.NewSession(m)

	sess.BeginStubbing()

	expectProtocolViolation(t, m, func() {
		sess.BeginStubbing()
	})
}

func TestModeProtocol_VerifyEntryWhileStubArmedFailsLoudly(t *testing.T) {
	t.Parallel()

	m := &mockT{}
	sess := stunt.NewSession(m)

	sess.BeginStubbing()

	expectProtocolViolation(t, m, func() {
		sess.BeginVerification(stunt.VerifyCalls)
	})
}

func TestModeProtocol_AbandonedStubRegistration(t *testing.T) {
	t.Parallel()

	m := &mockT{}
	sess := stunt.NewSession(m)
	cat := sess.NewDouble("cat", "Sound", "EatFood")

	reg := sess.BeginStubbing()
	cat.Record("Sound")

	// An unrelated interception discards the pending registration.
	cat.Record("EatFood")

	expectProtocolViolation(t, m, func() {
		_ = reg.Return("Purr")
	})
}

func TestModeProtocol_DoubleFinalizeFails(t *testing.T) {
	t.Parallel()

	m := &mockT{}
	sess := stunt.NewSession(m)
	cat := sess.NewDouble("cat", "Sound")

	reg := sess.BeginStubbing()
	cat.Record("Sound")

	if err := reg.Return("Purr"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectProtocolViolation(t, m, func() {
		_ = reg.Return("Meow")
	})
}

func TestModeProtocol_FinalizeBeforeInterceptionFails(t *testing.T) {
	t.Parallel()

	m := &mockT{}
	sess := stunt.NewSession(m)

	reg := sess.BeginStubbing()

	expectProtocolViolation(t, m, func() {
		_ = reg.Return("Purr")
	})
}

func TestModeProtocol_QueryFinalizeBeforeInterceptionFails(t *testing.T) {
	t.Parallel()

	m := &mockT{}
	sess := stunt.NewSession(m)

	query := sess.BeginVerification(stunt.VerifyCalls)

	expectProtocolViolation(t, m, func() {
		_ = query.Called(1)
	})
}

func TestModeProtocol_ViolationErrorIsTyped(t *testing.T) {
	t.Parallel()

	sess := stunt.NewSession(nil) // no reporter: violations surface as errors only
	cat := sess.NewDouble("cat", "Sound", "EatFood")

	reg := sess.BeginStubbing()
	cat.Record("Sound")
	cat.Record("EatFood")

	err := reg.Return("Purr")

	var pv *stunt.ProtocolViolationError
	if !errors.As(err, &pv) {
		t.Fatalf("expected ProtocolViolationError, got %v", err)
	}
}

func TestDispatchTable_UnknownMemberFails(t *testing.T) {
	t.Parallel()

	m := &mockT{}
	sess := stunt.NewSession(m)
	cat := sess.NewDouble("cat", "Sound")

	expectProtocolViolation(t, m, func() {
		cat.Record("Fly")
	})
}

func TestSessionIsolation_ModesDoNotCross(t *testing.T) {
	t.Parallel()

	sessA := stunt.NewSession(t)
	sessB := stunt.NewSession(t)

	catA := sessA.NewDouble("catA", "Sound")
	catB := sessB.NewDouble("catB", "Sound")
	catB.Stub(stunt.NewPattern("Sound"), stunt.Returns("Meow"))

	// Arming session A must not change interpretation of session B's calls.
	reg := sessA.BeginStubbing()

	if got := stunt.Ret[string](catB.Record("Sound"), 0); got != "Meow" {
		t.Errorf("expected normal-mode resolution in session B, got %q", got)
	}

	if got := catB.CallCount(); got != 1 {
		t.Errorf("expected session B ledger append, got %d entries", got)
	}

	catA.Record("Sound")

	if err := reg.Return("Purr"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	t.Run("Reset clears ledger and stubs", func(t *testing.T) {
		t.Parallel()

		sess := stunt.NewSession(t)
		cat := sess.NewDouble("cat", "Sound")
		cat.Stub(stunt.NewPattern("Sound"), stunt.Returns("Purr"))
		cat.Record("Sound")

		cat.Reset(false)

		if got := cat.CallCount(); got != 0 {
			t.Errorf("expected empty ledger, got %d entries", got)
		}

		if got := stunt.Ret[string](cat.Record("Sound"), 0); got != "" {
			t.Errorf("expected stubs cleared, got %q", got)
		}
	})

	t.Run("Reset with keepStubs retains answers", func(t *testing.T) {
		t.Parallel()

		sess := stunt.NewSession(t)
		cat := sess.NewDouble("cat", "Sound")
		cat.Stub(stunt.NewPattern("Sound"), stunt.Returns("Purr"))
		cat.Record("Sound")

		cat.Reset(true)

		if got := cat.CallCount(); got != 0 {
			t.Errorf("expected empty ledger, got %d entries", got)
		}

		if got := stunt.Ret[string](cat.Record("Sound"), 0); got != "Purr" {
			t.Errorf("expected stub retained, got %q", got)
		}
	})
}

func TestGetOrCreateSession_ReturnsSameInstance(t *testing.T) {
	t.Parallel()

	first := stunt.GetOrCreateSession(t)
	second := stunt.GetOrCreateSession(t)

	if first != second {
		t.Error("expected the same session for the same reporter")
	}
}
