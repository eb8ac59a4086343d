// Package delivery guarantees the tracking library reaches every rendered
// page. It registers a static layer and a dynamic fallback layer on the host
// render pipeline, emits the page scripts, and models the page-side loader.
package delivery

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// LoadPolicy holds the timings shared by the emitted bootstrap script and
// the Go Loader.
type LoadPolicy struct {
	// PollDelays are offsets from bootstrap start at which the loader
	// re-checks the entry point.
	PollDelays []time.Duration
	// SettleDelay is the wait after a load callback before re-checking.
	SettleDelay time.Duration
	// RetryDelay is the wait before a full retry when the library loaded
	// without defining its entry point.
	RetryDelay time.Duration
	MaxRetries int
	// LifecycleDelay follows DOM-ready and window-load before polling.
	LifecycleDelay time.Duration
	// MountRetryDelay is used when no element can host the script yet.
	MountRetryDelay time.Duration
}

// DefaultLoadPolicy returns the production timings.
func DefaultLoadPolicy() LoadPolicy {
	return LoadPolicy{
		PollDelays: []time.Duration{
			50 * time.Millisecond,
			200 * time.Millisecond,
			500 * time.Millisecond,
			1000 * time.Millisecond,
			2000 * time.Millisecond,
		},
		SettleDelay:     200 * time.Millisecond,
		RetryDelay:      time.Second,
		MaxRetries:      1,
		LifecycleDelay:  100 * time.Millisecond,
		MountRetryDelay: 50 * time.Millisecond,
	}
}

// PollBackOff returns the poll schedule as a backoff policy.
func (p LoadPolicy) PollBackOff() backoff.BackOff {
	return NewScheduleBackOff(p.PollDelays...)
}

// RetryBackOff returns one full retry after RetryDelay. MaxRetries bounds
// how many times a loader starts it.
func (p LoadPolicy) RetryBackOff() backoff.BackOff {
	return &intervalBackOff{intervals: []time.Duration{p.RetryDelay}}
}

// policyScript is the policy as the bootstrap script reads it, in
// milliseconds. The poll and retry chains are the waits produced by
// PollBackOff and RetryBackOff, so the page walks the same schedule as the
// Retrier.
type policyScript struct {
	PollWaits       []int64 `json:"pollWaits"`
	RetryWaits      []int64 `json:"retryWaits"`
	SettleDelay     int64   `json:"settleDelay"`
	MaxRetries      int     `json:"maxRetries"`
	LifecycleDelay  int64   `json:"lifecycleDelay"`
	MountRetryDelay int64   `json:"mountRetryDelay"`
}

func (p LoadPolicy) script() policyScript {
	return policyScript{
		PollWaits:       drain(p.PollBackOff()),
		RetryWaits:      drain(p.RetryBackOff()),
		SettleDelay:     p.SettleDelay.Milliseconds(),
		MaxRetries:      p.MaxRetries,
		LifecycleDelay:  p.LifecycleDelay.Milliseconds(),
		MountRetryDelay: p.MountRetryDelay.Milliseconds(),
	}
}

// maxWaits bounds drain for policies that never return backoff.Stop.
const maxWaits = 32

// drain collects the waits of b until it stops.
func drain(b backoff.BackOff) []int64 {
	b.Reset()
	waits := []int64{}
	for len(waits) < maxWaits {
		d := b.NextBackOff()
		if d == backoff.Stop {
			break
		}
		waits = append(waits, d.Milliseconds())
	}
	return waits
}

// ScheduleBackOff replays a fixed schedule of offsets measured from the
// first attempt, then stops.
type ScheduleBackOff struct {
	offsets []time.Duration
	next    int
}

// NewScheduleBackOff creates a backoff over ascending offsets.
func NewScheduleBackOff(offsets ...time.Duration) *ScheduleBackOff {
	return &ScheduleBackOff{offsets: offsets}
}

// NextBackOff returns the wait until the next offset, or backoff.Stop.
func (s *ScheduleBackOff) NextBackOff() time.Duration {
	if s.next >= len(s.offsets) {
		return backoff.Stop
	}
	var prev time.Duration
	if s.next > 0 {
		prev = s.offsets[s.next-1]
	}
	wait := s.offsets[s.next] - prev
	s.next++
	if wait < 0 {
		wait = 0
	}
	return wait
}

// Reset rewinds the schedule.
func (s *ScheduleBackOff) Reset() { s.next = 0 }

// intervalBackOff returns each interval once, then stops.
type intervalBackOff struct {
	intervals []time.Duration
	next      int
}

func (b *intervalBackOff) NextBackOff() time.Duration {
	if b.next >= len(b.intervals) {
		return backoff.Stop
	}
	d := b.intervals[b.next]
	b.next++
	return d
}

func (b *intervalBackOff) Reset() { b.next = 0 }
