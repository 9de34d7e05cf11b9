package core

import (
	"fmt"
	"reflect"
)

// Matcher is the interface for flexible argument matching. Compatible with
// gomega.GomegaMatcher via duck typing - any type implementing Match and
// FailureMessage will work.
type Matcher interface {
	Match(actual any) (success bool, err error)
	FailureMessage(actual any) string
}

// Captor is a Matcher with a side effect: when the pattern containing it
// matches, the actual value at the captor's position is appended to its
// buffer. Captured values are stored as supplied - no deep copy - so later
// mutation of a captured argument is visible through the buffer.
type Captor interface {
	Matcher
	Capture(value any)
	Values() []any
}

// MatchValue checks if actual matches expected.
// If expected implements the Matcher interface, uses its Match method.
// Otherwise, uses reflect.DeepEqual for comparison.
// Returns (success, errorMessage). If success is true, errorMessage is empty.
func MatchValue(actual, expected any) (bool, string) {
	if matcher, ok := expected.(Matcher); ok {
		success, err := matcher.Match(actual)
		if err != nil {
			return false, err.Error()
		}

		if !success {
			return false, matcher.FailureMessage(actual)
		}

		return true, ""
	}

	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

// Pattern describes a class of Invocations on one member: per positional
// slot and per argument name, either a literal (equality-matched), a
// Matcher, or a Captor.
type Pattern struct {
	Member string
	Args   []any
	Named  map[string]any
}

// NewPattern builds a positional pattern for the given member.
func NewPattern(member string, args ...any) *Pattern {
	return &Pattern{Member: member, Args: args}
}

// WithNamed constrains the named argument name to match expected. An
// unconstrained name matches anything; naming an argument the caller never
// supplied makes the pattern never match that call.
func (p *Pattern) WithNamed(name string, expected any) *Pattern {
	if p.Named == nil {
		p.Named = make(map[string]any)
	}

	p.Named[name] = expected

	return p
}

// pendingCapture is a capture held back until the whole pattern is known to
// match. Captors fire on selected matches only, never on failed attempts.
type pendingCapture struct {
	captor Captor
	value  any
}

// matches reports whether inv satisfies the pattern, along with the captures
// to commit if the caller accepts this match.
func (p *Pattern) matches(inv *Invocation) (bool, []pendingCapture) {
	if inv.Member != p.Member {
		return false, nil
	}

	if len(p.Args) != len(inv.Args) {
		return false, nil
	}

	var pending []pendingCapture

	for i, expected := range p.Args {
		ok, capture := matchOne(inv.Args[i], expected)
		if !ok {
			return false, nil
		}

		if capture != nil {
			pending = append(pending, *capture)
		}
	}

	for name, expected := range p.Named {
		actual, supplied := inv.Named[name]
		if !supplied {
			return false, nil
		}

		ok, capture := matchOne(actual, expected)
		if !ok {
			return false, nil
		}

		if capture != nil {
			pending = append(pending, *capture)
		}
	}

	return true, pending
}

// matchOne compares a single actual value against one pattern slot.
func matchOne(actual, expected any) (bool, *pendingCapture) {
	if captor, ok := expected.(Captor); ok {
		matched, err := captor.Match(actual)
		if err != nil || !matched {
			return false, nil
		}

		return true, &pendingCapture{captor: captor, value: actual}
	}

	ok, _ := MatchValue(actual, expected)

	return ok, nil
}

// commit appends each held-back capture to its captor's buffer.
func commit(pending []pendingCapture) {
	for _, p := range pending {
		p.captor.Capture(p.value)
	}
}
