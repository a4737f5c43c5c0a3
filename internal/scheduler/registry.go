package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Key identifies one cart item's reminder timer.
type Key struct {
	BuyerID string
	ItemID  string
}

// Ticket is handed to a firing callback. It names the schedule that produced
// the fire and is the only way to re-arm that key from inside the callback.
type Ticket struct {
	Key Key
	Seq uint64
}

type entry struct {
	timer clockwork.Timer
	seq   uint64
}

// Registry holds at most one pending timer per Key. Every Schedule or Cancel
// bumps the key's sequence, and a callback only runs when its sequence is
// still current, so a replaced timer never fires even if it already expired.
type Registry struct {
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[Key]*entry
	seq     uint64
	closed  bool

	inflight sync.WaitGroup
}

// NewRegistry returns an empty registry driven by clock.
func NewRegistry(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		clock:   clock,
		entries: make(map[Key]*entry),
	}
}

// Schedule cancels any timer for key and arms fn to run after delay.
// After Close it does nothing and returns a zero Ticket.
func (r *Registry) Schedule(key Key, delay time.Duration, fn func(Ticket)) Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Ticket{}
	}
	r.stopLocked(key)
	return r.armLocked(key, delay, fn)
}

// Rearm arms fn for t.Key only if no Schedule or Cancel happened for that key
// since t was issued. It reports whether the timer was armed.
func (r *Registry) Rearm(t Ticket, delay time.Duration, fn func(Ticket)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	e, ok := r.entries[t.Key]
	if !ok || e.seq != t.Seq {
		return false
	}
	r.armLocked(t.Key, delay, fn)
	return true
}

// Cancel stops and forgets the timer for key. A no-op when none exists.
func (r *Registry) Cancel(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked(key)
}

// CancelBuyer cancels every timer of one buyer and returns how many there were.
func (r *Registry) CancelBuyer(buyerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key := range r.entries {
		if key.BuyerID == buyerID {
			r.stopLocked(key)
			n++
		}
	}
	return n
}

// CancelAll stops every timer and returns how many were cancelled.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	for key := range r.entries {
		r.stopLocked(key)
	}
	return n
}

// Pending reports whether key has a timer that is armed or currently firing.
func (r *Registry) Pending(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

// Len returns the number of keys with an armed or firing timer.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close cancels all timers, rejects further scheduling and waits for callbacks
// already running to return or for ctx to end.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	for key := range r.entries {
		r.stopLocked(key)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) armLocked(key Key, delay time.Duration, fn func(Ticket)) Ticket {
	r.seq++
	t := Ticket{Key: key, Seq: r.seq}
	e := &entry{seq: t.Seq}
	e.timer = r.clock.AfterFunc(max(delay, 0), func() { r.fire(t, fn) })
	r.entries[key] = e
	return t
}

func (r *Registry) stopLocked(key Key) {
	if e, ok := r.entries[key]; ok {
		e.timer.Stop()
		delete(r.entries, key)
	}
}

func (r *Registry) fire(t Ticket, fn func(Ticket)) {
	r.mu.Lock()
	e, ok := r.entries[t.Key]
	if r.closed || !ok || e.seq != t.Seq {
		r.mu.Unlock()
		return
	}
	r.inflight.Add(1)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if e, ok := r.entries[t.Key]; ok && e.seq == t.Seq {
			delete(r.entries, t.Key)
		}
		r.mu.Unlock()
		r.inflight.Done()
	}()
	fn(t)
}
