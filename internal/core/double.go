package core

import "sync"

// Double is one test-double instance. It owns its ledger (the ordered
// history of recorded Invocations), its stub table, and its pending match
// waiters. Independent doubles share nothing but the global sequence
// counter.
type Double struct {
	session *Session
	name    string
	members map[string]bool // nil means open dispatch

	mu      sync.Mutex
	ledger  []*ledgerEntry
	stubs   map[string][]stubEntry
	waiters []*waiter
}

// Name returns the double's name.
func (d *Double) Name() string {
	return d.name
}

// Record funnels a positional call through the session. Generated dispatch
// methods call this and unpack the answer values with Ret.
func (d *Double) Record(member string, args ...any) []any {
	return d.session.Record(d, member, args, nil)
}

// RecordNamed funnels a call carrying named arguments through the session.
func (d *Double) RecordNamed(member string, args []any, named map[string]any) []any {
	return d.session.Record(d, member, args, named)
}

// Stub appends a (pattern, answer) entry to the stub table. Entries are
// never mutated in place; the most recently appended matching entry wins.
func (d *Double) Stub(pattern *Pattern, answer Answer) {
	d.mu.Lock()
	d.stubs[pattern.Member] = append(d.stubs[pattern.Member], stubEntry{pattern: pattern, answer: answer})
	d.mu.Unlock()
}

// Reset clears the ledger, verification marks, and outstanding waiters.
// With keepStubs the stub table survives; otherwise it is cleared too.
// Sequence numbers are global and keep increasing across resets.
func (d *Double) Reset(keepStubs bool) {
	d.mu.Lock()
	d.ledger = nil

	if !keepStubs {
		d.stubs = make(map[string][]stubEntry)
	}

	waiters := d.waiters
	d.waiters = nil
	d.mu.Unlock()

	for _, w := range waiters {
		w.settle(nil)
	}
}

// CallCount returns the total number of recorded interactions, across all
// members, currently in the ledger.
func (d *Double) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.ledger)
}

// knowsMember reports whether member may be dispatched on this double.
func (d *Double) knowsMember(member string) bool {
	return d.members == nil || d.members[member]
}

// append adds inv to the ledger and resolves the first matching waiter, if
// any. The waiter's goroutine is the only thing unblocked; the producing
// caller never waits.
func (d *Double) append(inv *Invocation) {
	d.mu.Lock()
	d.ledger = append(d.ledger, &ledgerEntry{inv: inv})

	for i, w := range d.waiters {
		ok, pending := w.pattern.matches(inv)
		if !ok {
			continue
		}

		d.waiters = append(d.waiters[:i], d.waiters[i+1:]...)
		d.mu.Unlock()
		commit(pending)
		w.settle(inv)

		return
	}

	d.mu.Unlock()
}

// lookupStub scans the member's stub entries most-recent-first and returns
// the answer of the first matching one. Captors in the winning pattern fire;
// losing attempts never capture. A miss is a silent, by-design outcome.
func (d *Double) lookupStub(inv *Invocation) (Answer, bool) {
	d.mu.Lock()

	entries := d.stubs[inv.Member]
	for i := len(entries) - 1; i >= 0; i-- {
		ok, pending := entries[i].pattern.matches(inv)
		if !ok {
			continue
		}

		answer := entries[i].answer
		d.mu.Unlock()
		commit(pending)

		return answer, true
	}

	d.mu.Unlock()

	return Answer{}, false
}

// snapshot copies the current ledger entry pointers for verification scans.
func (d *Double) snapshot() []*ledgerEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := make([]*ledgerEntry, len(d.ledger))
	copy(entries, d.ledger)

	return entries
}
