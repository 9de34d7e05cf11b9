package core

import (
	"context"
	"sync"
)

// waiter is a pending async-match registration. Each waiter is settled
// exactly once: with the first matching Invocation appended after
// registration, or with nil on cancellation, reset, or session teardown.
type waiter struct {
	pattern *Pattern
	ch      chan *Invocation
	settled chan struct{}
	once    sync.Once
}

func (w *waiter) settle(inv *Invocation) {
	w.once.Do(func() {
		close(w.settled)

		if inv != nil {
			w.ch <- inv
		}

		close(w.ch)
	})
}

// WaitForMatch returns a channel that yields the next Invocation on the
// double satisfying pattern, or the earliest already-recorded match if one
// exists. The channel delivers at most one Invocation and is then closed;
// cancelling ctx closes it without a value. Only the waiting context ever
// blocks - producers never do.
func (d *Double) WaitForMatch(ctx context.Context, pattern *Pattern) <-chan *Invocation {
	ch := make(chan *Invocation, 1)

	d.mu.Lock()

	// Resolve immediately from history when a match already occurred.
	for _, entry := range d.ledger {
		ok, pending := pattern.matches(entry.inv)
		if !ok {
			continue
		}

		d.mu.Unlock()
		commit(pending)
		ch <- entry.inv
		close(ch)

		return ch
	}

	w := &waiter{pattern: pattern, ch: ch, settled: make(chan struct{})}
	d.waiters = append(d.waiters, w)
	d.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-w.settled:
			case <-ctx.Done():
				d.removeWaiter(w)
				w.settle(nil)
			}
		}()
	}

	return ch
}

// cancelAllWaiters settles every outstanding waiter without a value.
func (d *Double) cancelAllWaiters() {
	d.mu.Lock()
	waiters := d.waiters
	d.waiters = nil
	d.mu.Unlock()

	for _, w := range waiters {
		w.settle(nil)
	}
}

func (d *Double) removeWaiter(target *waiter) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, w := range d.waiters {
		if w == target {
			d.waiters = append(d.waiters[:i], d.waiters[i+1:]...)

			return
		}
	}
}
