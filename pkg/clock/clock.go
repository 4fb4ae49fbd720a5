package clock

import (
	"sync"
	"time"
)

// Token identifies a scheduled callback for cancellation.
type Token struct {
	id uint64
}

// Scheduler schedules delayed callbacks and reports the current time.
// Implementations must be safe for concurrent use.
type Scheduler interface {
	// Now returns the scheduler's notion of the current time.
	Now() time.Time

	// After runs fn once after d has elapsed and returns a token that can
	// cancel the callback. fn runs on an unspecified goroutine.
	After(d time.Duration, fn func()) *Token

	// Cancel stops a pending callback. Cancelling a nil, fired, or
	// already-cancelled token is a no-op.
	Cancel(token *Token)
}

// System is a Scheduler backed by the wall clock and time.AfterFunc.
type System struct {
	mu     sync.Mutex
	nextID uint64
	timers map[uint64]*time.Timer
}

// NewSystem creates a wall-clock scheduler.
func NewSystem() *System {
	return &System{timers: make(map[uint64]*time.Timer)}
}

// Now returns the current wall-clock time.
func (s *System) Now() time.Time {
	return time.Now()
}

// After schedules fn via time.AfterFunc.
func (s *System) After(d time.Duration, fn func()) *Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.timers[id] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		fn()
	})
	return &Token{id: id}
}

// Cancel stops the timer associated with token if it has not fired.
func (s *System) Cancel(token *Token) {
	if token == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[token.id]; ok {
		t.Stop()
		delete(s.timers, token.id)
	}
}

// fakeEntry is a pending callback in a Fake scheduler.
type fakeEntry struct {
	id  uint64
	at  time.Time
	fn  func()
	seq uint64 // scheduling order, breaks ties on equal deadlines
}

// Fake is a virtual-time Scheduler for tests. Time only moves when
// Advance or SetNow is called; due callbacks run synchronously on the
// advancing goroutine in deadline order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	nextID  uint64
	nextSeq uint64
	pending map[uint64]*fakeEntry
}

// NewFake creates a virtual-time scheduler starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, pending: make(map[uint64]*fakeEntry)}
}

// Now returns the current virtual time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After schedules fn at now+d. A non-positive d fires on the next Advance.
func (f *Fake) After(d time.Duration, fn func()) *Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.nextSeq++
	f.pending[f.nextID] = &fakeEntry{
		id:  f.nextID,
		at:  f.now.Add(d),
		fn:  fn,
		seq: f.nextSeq,
	}
	return &Token{id: f.nextID}
}

// Cancel removes a pending callback.
func (f *Fake) Cancel(token *Token) {
	if token == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, token.id)
}

// Advance moves virtual time forward by d, firing due callbacks in
// deadline order. Callbacks may schedule further callbacks; those also
// fire if they fall within the advanced window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()
	f.advanceTo(target)
}

// SetNow jumps virtual time to t without firing callbacks scheduled
// before t. Useful for simulating a stale persisted record; use Advance
// when timer semantics matter.
func (f *Fake) SetNow(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Pending returns the number of callbacks not yet fired or cancelled.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *Fake) advanceTo(target time.Time) {
	for {
		f.mu.Lock()
		var next *fakeEntry
		for _, e := range f.pending {
			if e.at.After(target) {
				continue
			}
			if next == nil || e.at.Before(next.at) || (e.at.Equal(next.at) && e.seq < next.seq) {
				next = e
			}
		}
		if next == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		delete(f.pending, next.id)
		// Time observed inside the callback is the callback's deadline.
		if next.at.After(f.now) {
			f.now = next.at
		}
		f.mu.Unlock()

		next.fn()
	}
}
