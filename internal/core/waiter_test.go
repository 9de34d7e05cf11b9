package core_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stuntkit/stunt"
	"github.com/stuntkit/stunt/match"
)

func TestWaitForMatch_ResolvesOnNextMatchingCall(t *testing.T) {
	t.Parallel()

	sess := stunt.NewSession(t)
	cat := sess.NewDouble("cat", "Sound", "EatFood")

	ch := cat.WaitForMatch(context.Background(), stunt.NewPattern("EatFood", "fish"))

	// The producer never blocks on a waiter, so recording from this
	// goroutine is safe.
	cat.Record("Sound")
	cat.Record("EatFood", "fish")

	inv, ok := <-ch
	if !ok {
		t.Fatal("expected an invocation, channel closed empty")
	}

	if inv.Member != "EatFood" || inv.Args[0] != "fish" {
		t.Errorf("expected EatFood(fish), got %s(%v)", inv.Member, inv.Args)
	}

	if _, open := <-ch; open {
		t.Error("expected channel closed after delivering one invocation")
	}
}

func TestWaitForMatch_ResolvesImmediatelyFromHistory(t *testing.T) {
	t.Parallel()

	sess := stunt.NewSession(t)
	cat := sess.NewDouble("cat", "Sound")

	cat.Record("Sound")

	ch := cat.WaitForMatch(context.Background(), stunt.NewPattern("Sound"))

	select {
	case inv, ok := <-ch:
		if !ok || inv.Member != "Sound" {
			t.Errorf("expected historical Sound invocation, got %v (ok=%v)", inv, ok)
		}
	case <-time.After(time.Second):
		t.Error("expected immediate resolution from history")
	}
}

func TestWaitForMatch_EachAppendResolvesOneWaiter(t *testing.T) {
	t.Parallel()

	sess := stunt.NewSession(t)
	cat := sess.NewDouble("cat", "Sound")

	first := cat.WaitForMatch(context.Background(), stunt.NewPattern("Sound"))
	second := cat.WaitForMatch(context.Background(), stunt.NewPattern("Sound"))

	cat.Record("Sound")

	if _, ok := <-first; !ok {
		t.Error("expected first waiter resolved by first call")
	}

	select {
	case _, ok := <-second:
		if ok {
			t.Error("second waiter resolved without a second call")
		} else {
			t.Error("second waiter cancelled unexpectedly")
		}
	default:
	}

	cat.Record("Sound")

	if _, ok := <-second; !ok {
		t.Error("expected second waiter resolved by second call")
	}
}

func TestWaitForMatch_Cancellation(t *testing.T) {
	t.Parallel()

	sess := stunt.NewSession(t)
	cat := sess.NewDouble("cat", "Sound")

	ctx, cancel := context.WithCancel(context.Background())
	ch := cat.WaitForMatch(ctx, stunt.NewPattern("Sound"))

	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected cancelled waiter to close without a value")
	}

	// A later matching call must not panic on the settled waiter.
	cat.Record("Sound")
}

func TestWaitForMatch_MatcherPattern(t *testing.T) {
	t.Parallel()

	sess := stunt.NewSession(t)
	cat := sess.NewDouble("cat", "EatFood")

	ch := cat.WaitForMatch(context.Background(), stunt.NewPattern("EatFood", match.Satisfy(func(food string) error {
		if food == "fish" {
			return nil
		}

		//nolint:err113 // validation error with dynamic context
		return fmt.Errorf("expected fish, got %q", food)
	})))

	cat.Record("EatFood", "chicken")

	select {
	case <-ch:
		t.Error("expected non-matching call to leave the waiter pending")
	default:
	}

	cat.Record("EatFood", "fish")

	inv, ok := <-ch
	if !ok || inv.Args[0] != "fish" {
		t.Errorf("expected EatFood(fish), got %v (ok=%v)", inv, ok)
	}
}
