package delivery

import (
	"sync"

	"github.com/cenkalti/backoff/v4"
)

// Retrier runs an attempt on the delays produced by a backoff policy until
// the attempt reports done, the policy returns backoff.Stop, or Cancel is
// called. Only one timer is ever outstanding.
type Retrier struct {
	clock   Clock
	policy  backoff.BackOff
	attempt func(n int) bool

	mu          sync.Mutex
	timer       Timer
	n           int
	active      bool
	onExhausted func()
}

// NewRetrier creates an idle retrier. attempt receives the 1-based attempt
// number and returns true when no further attempts are needed.
func NewRetrier(clock Clock, policy backoff.BackOff, attempt func(n int) bool) *Retrier {
	return &Retrier{clock: clock, policy: policy, attempt: attempt}
}

// OnExhausted registers f to run when the policy stops before the attempt
// reports done.
func (r *Retrier) OnExhausted(f func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExhausted = f
}

// Start resets the policy and schedules the first attempt. Starting an
// active retrier is a no-op.
func (r *Retrier) Start() {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return
	}
	r.active = true
	r.n = 0
	r.policy.Reset()
	exhausted := r.scheduleLocked()
	r.mu.Unlock()

	if exhausted != nil {
		exhausted()
	}
}

// Cancel stops any pending attempt.
func (r *Retrier) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Pending reports whether an attempt is scheduled.
func (r *Retrier) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Attempts returns how many attempts have run since the last Start.
func (r *Retrier) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// scheduleLocked arms the next timer. It returns the exhaustion callback
// when the policy has stopped, to be run after the lock is released.
func (r *Retrier) scheduleLocked() func() {
	wait := r.policy.NextBackOff()
	if wait == backoff.Stop {
		r.active = false
		r.timer = nil
		return r.onExhausted
	}
	r.timer = r.clock.AfterFunc(wait, r.fire)
	return nil
}

func (r *Retrier) fire() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.n++
	n := r.n
	r.mu.Unlock()

	done := r.attempt(n)

	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	var exhausted func()
	if done {
		r.active = false
		r.timer = nil
	} else {
		exhausted = r.scheduleLocked()
	}
	r.mu.Unlock()

	if exhausted != nil {
		exhausted()
	}
}
