package core

import (
	"fmt"
	"sort"
)

// Query is a verification query produced by BeginVerification. The next
// intercepted call defines its pattern; the fluent finalizers then evaluate
// it against the existing ledger. Cardinality failures are recoverable
// VerificationErrors; misuse of the query protocol is fatal.
type Query struct {
	session   *Session
	kind      VerifyKind
	double    *Double
	pattern   *Pattern
	abandoned bool
	finalized bool
	err       error
}

// markAbandoned is called under session.mu when another interception
// discards this pending query.
func (q *Query) markAbandoned() {
	q.abandoned = true
}

// take validates and consumes the query for finalization.
func (q *Query) take(op string) error {
	if q.err != nil {
		return q.err
	}

	s := q.session

	s.mu.Lock()

	var err *ProtocolViolationError

	switch {
	case q.abandoned:
		err = &ProtocolViolationError{Op: op, Reason: "verification query was abandoned by an intervening call"}
	case q.finalized:
		err = &ProtocolViolationError{Op: op, Reason: "verification query already finalized"}
	case q.pattern == nil:
		err = &ProtocolViolationError{Op: op, Reason: "no call has been intercepted for this query"}
	}

	if err != nil {
		s.mu.Unlock()
		s.fail(err)

		return err
	}

	q.finalized = true

	if s.pendingFinalize == q {
		s.pendingFinalize = nil
	}

	s.mu.Unlock()

	return nil
}

// Called verifies the pattern matched exactly want ledger entries on the
// query's double.
func (q *Query) Called(want int) error {
	if err := q.take("Called"); err != nil {
		return err
	}

	return q.checkCount(want, false)
}

// AtLeast verifies the pattern matched at least want ledger entries.
func (q *Query) AtLeast(want int) error {
	if err := q.take("AtLeast"); err != nil {
		return err
	}

	return q.checkCount(want, true)
}

// Never verifies the pattern matched no ledger entry at all.
func (q *Query) Never() error {
	if err := q.take("Never"); err != nil {
		return err
	}

	return q.checkCount(0, false)
}

// Captured returns the values accumulated by the captors in the query's
// pattern, positional slots first, in call order.
func (q *Query) Captured() []any {
	if q.pattern == nil {
		return nil
	}

	var values []any

	for _, arg := range q.pattern.Args {
		if captor, ok := arg.(Captor); ok {
			values = append(values, captor.Values()...)
		}
	}

	for _, arg := range q.pattern.Named {
		if captor, ok := arg.(Captor); ok {
			values = append(values, captor.Values()...)
		}
	}

	return values
}

// checkCount scans the double's ledger for entries matching the pattern.
// Captures are collected across every satisfying entry, not only the first.
// Satisfying entries are marked verified only when the constraint holds.
func (q *Query) checkCount(want int, atLeast bool) error {
	d := q.double

	d.mu.Lock()

	var (
		matched  []*ledgerEntry
		captures []pendingCapture
	)

	for _, entry := range d.ledger {
		ok, pending := q.pattern.matches(entry.inv)
		if !ok {
			continue
		}

		matched = append(matched, entry)
		captures = append(captures, pending...)
	}

	got := len(matched)
	satisfied := got == want || (atLeast && got > want)

	if satisfied {
		for _, entry := range matched {
			entry.verified = true
		}
	}

	d.mu.Unlock()
	commit(captures)

	if satisfied {
		return nil
	}

	kind := "count"
	if atLeast {
		kind = "at-least"
	}

	return &VerificationError{
		Kind:     kind,
		Double:   d.name,
		Member:   q.pattern.Member,
		Expected: want,
		Actual:   got,
	}
}

// VerifyZeroInteractions asserts that each double's ledger is empty across
// all members.
func (s *Session) VerifyZeroInteractions(doubles ...*Double) error {
	for _, d := range doubles {
		if n := d.CallCount(); n > 0 {
			return &VerificationError{
				Kind:     "zero",
				Double:   d.name,
				Expected: 0,
				Actual:   n,
				Detail:   fmt.Sprintf("%d unexpected interaction(s)", n),
			}
		}
	}

	return nil
}

// VerifyNoMoreInteractions asserts that every ledger entry of each double
// has previously been the subject of a satisfied verification.
func (s *Session) VerifyNoMoreInteractions(doubles ...*Double) error {
	for _, d := range doubles {
		entries := d.snapshot()

		unverified := 0
		detail := ""

		d.mu.Lock()

		for _, entry := range entries {
			if !entry.verified {
				unverified++

				if detail == "" {
					detail = "first unverified member: " + entry.inv.Member
				}
			}
		}

		d.mu.Unlock()

		if unverified > 0 {
			return &VerificationError{
				Kind:     "no-more",
				Double:   d.name,
				Expected: 0,
				Actual:   unverified,
				Detail:   detail,
			}
		}
	}

	return nil
}

// InOrder verifies that the queries' patterns appear as a strictly
// increasing-sequence-number subsequence of the involved doubles' merged
// ledgers. Each query must have been filled by an intercepted call under
// BeginVerification(VerifyOrdered).
func InOrder(queries ...*Query) error {
	if len(queries) == 0 {
		return nil
	}

	session := queries[0].session

	for _, q := range queries {
		if q.err != nil {
			return q.err
		}

		if q.pattern == nil || q.abandoned {
			err := &ProtocolViolationError{
				Op:     "InOrder",
				Reason: "query has no intercepted pattern",
			}
			session.fail(err)

			return err
		}
	}

	// Multi-way merge of the involved ledgers by global sequence number.
	type candidate struct {
		double *Double
		entry  *ledgerEntry
	}

	var merged []candidate

	seen := make(map[*Double]bool)

	for _, q := range queries {
		if seen[q.double] {
			continue
		}

		seen[q.double] = true

		for _, entry := range q.double.snapshot() {
			merged = append(merged, candidate{double: q.double, entry: entry})
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].entry.inv.Seq < merged[j].entry.inv.Seq
	})

	// Greedy positional subsequence match.
	var (
		matched  []candidate
		captures []pendingCapture
	)

	idx := 0

	for _, c := range merged {
		if idx >= len(queries) {
			break
		}

		q := queries[idx]
		if c.double != q.double {
			continue
		}

		ok, pending := q.pattern.matches(c.entry.inv)
		if !ok {
			continue
		}

		matched = append(matched, c)
		captures = append(captures, pending...)
		idx++
	}

	if idx < len(queries) {
		return &VerificationError{
			Kind:     "order",
			Double:   queries[idx].double.name,
			Member:   queries[idx].pattern.Member,
			Expected: len(queries),
			Actual:   idx,
			Detail:   fmt.Sprintf("no matching call at position %d", idx),
		}
	}

	for _, c := range matched {
		c.double.mu.Lock()
		c.entry.verified = true
		c.double.mu.Unlock()
	}

	commit(captures)

	return nil
}
