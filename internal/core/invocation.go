// Package core provides the internal implementation of stunt's test-double
// engine: the interception funnel, per-double ledgers, stub resolution,
// verification queries, and async match notification.
package core

import "sync/atomic"

// Invocation is one recorded call on a double: the member that was called,
// the positional and named arguments as supplied (no deep copy), and a
// process-global sequence number used for ordering across doubles.
// Immutable once appended to a ledger.
type Invocation struct {
	Member string
	Args   []any
	Named  map[string]any
	Seq    uint64
}

//nolint:gochecknoglobals // Single process-wide counter keeps sequence numbers unique across all doubles.
var seqCounter atomic.Uint64

// nextSeq returns the next global sequence number. Strictly increasing and
// never reused, even across sessions and resets.
func nextSeq() uint64 {
	return seqCounter.Add(1)
}

// ledgerEntry pairs an Invocation with its verification bookkeeping. The
// verified mark is set when a satisfied query matched this entry; it feeds
// no-more-interactions checks.
type ledgerEntry struct {
	inv      *Invocation
	verified bool
}

// Ret extracts the i'th answer value as type T, returning T's zero value
// when the answer is absent or has a different dynamic type. Generated
// dispatch methods use this so unstubbed calls silently return zero values.
func Ret[T any](vals []any, i int) T {
	if i < len(vals) {
		if v, ok := vals[i].(T); ok {
			return v
		}
	}

	var zero T

	return zero
}
