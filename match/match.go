// Package match provides matchers and captors for stunt argument patterns.
// This package is designed to be dot-imported alongside gomega matchers:
//
//	import (
//	    . "github.com/onsi/gomega"
//	    . "github.com/stuntkit/stunt/match"
//	)
//
// Any value implementing Match and FailureMessage works as a pattern slot,
// so gomega matchers can be mixed freely with the matchers here.
package match

import (
	"errors"
	"fmt"
	"sync"
)

// errTypeMismatch is a sentinel error for type assertion failures.
var errTypeMismatch = errors.New("type mismatch")

// Matcher defines the interface for flexible value matching.
// Compatible with gomega.GomegaMatcher via duck typing - any type
// implementing Match and FailureMessage will work.
type Matcher interface {
	Match(actual any) (success bool, err error)
	FailureMessage(actual any) string
}

// BeAny is a matcher that matches any value.
// Useful when you don't care about a particular argument.
//
//nolint:gochecknoglobals // Intentional exported constant-like value
var BeAny Matcher = anyMatcher{}

// Satisfy returns a matcher that uses a predicate function to check for a
// match. The predicate should return nil if the value matches, or an error
// describing the mismatch if it does not.
func Satisfy[T any](predicate func(T) error) Matcher {
	return &satisfyMatcher[T]{predicate: predicate}
}

// Captor accumulates the actual values it matched. It matches any value by
// default (wrap with CaptureThat to constrain), and appends to its buffer
// only when the surrounding pattern match succeeds. Values are stored as
// supplied - no deep copy - so captured references alias the caller's data.
type Captor struct {
	inner  Matcher
	mu     sync.Mutex
	values []any
}

// Capture returns a captor accepting any value.
func Capture() *Captor {
	return &Captor{}
}

// CaptureThat returns a captor that only matches (and captures) values
// accepted by inner.
func CaptureThat(inner Matcher) *Captor {
	return &Captor{inner: inner}
}

// Match reports whether the captor accepts actual. No capture happens here;
// the engine commits captures only for selected matches.
func (c *Captor) Match(actual any) (bool, error) {
	if c.inner == nil {
		return true, nil
	}

	return c.inner.Match(actual)
}

// FailureMessage describes why actual was not accepted.
func (c *Captor) FailureMessage(actual any) string {
	if c.inner == nil {
		return ""
	}

	return c.inner.FailureMessage(actual)
}

// Capture appends value to the buffer. Called by the engine on a selected
// match.
func (c *Captor) Capture(value any) {
	c.mu.Lock()
	c.values = append(c.values, value)
	c.mu.Unlock()
}

// Values returns the captured values in call order. The buffer keeps
// accumulating until Reset.
func (c *Captor) Values() []any {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]any, len(c.values))
	copy(out, c.values)

	return out
}

// Last returns the most recently captured value, or nil if none.
func (c *Captor) Last() any {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.values) == 0 {
		return nil
	}

	return c.values[len(c.values)-1]
}

// Reset empties the capture buffer.
func (c *Captor) Reset() {
	c.mu.Lock()
	c.values = nil
	c.mu.Unlock()
}

// anyMatcher is the implementation of the BeAny matcher.
type anyMatcher struct{}

// FailureMessage returns an empty string since BeAny always matches.
func (anyMatcher) FailureMessage(any) string {
	return ""
}

// Match always returns true - matches any value.
func (anyMatcher) Match(any) (bool, error) {
	return true, nil
}

type satisfyMatcher[T any] struct {
	predicate func(T) error
	lastErr   error
}

func (m *satisfyMatcher[T]) FailureMessage(actual any) string {
	if m.lastErr != nil {
		return fmt.Sprintf("value %v does not satisfy predicate: %v", actual, m.lastErr)
	}

	return fmt.Sprintf("value %v does not satisfy predicate", actual)
}

func (m *satisfyMatcher[T]) Match(actual any) (bool, error) {
	val, ok := actual.(T)

	if !ok {
		return false, fmt.Errorf("%w: expected %T, got %T", errTypeMismatch, *new(T), actual)
	}

	m.lastErr = m.predicate(val)

	return m.lastErr == nil, nil
}
