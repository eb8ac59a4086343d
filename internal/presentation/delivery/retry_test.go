package delivery

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
)

func TestScheduleBackOffReplaysOffsets(t *testing.T) {
	b := NewScheduleBackOff(50*time.Millisecond, 200*time.Millisecond, 500*time.Millisecond)

	assert.Equal(t, 50*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 150*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 300*time.Millisecond, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 50*time.Millisecond, b.NextBackOff())
}

func TestRetrierRunsOnScheduleUntilExhausted(t *testing.T) {
	clock := &manualClock{}
	var at []time.Duration
	exhausted := 0

	r := NewRetrier(clock, DefaultLoadPolicy().PollBackOff(), func(int) bool {
		at = append(at, clock.Elapsed())
		return false
	})
	r.OnExhausted(func() { exhausted++ })
	r.Start()
	assert.True(t, r.Pending())

	clock.Advance(5 * time.Second)

	assert.Equal(t, []time.Duration{
		50 * time.Millisecond,
		200 * time.Millisecond,
		500 * time.Millisecond,
		1000 * time.Millisecond,
		2000 * time.Millisecond,
	}, at)
	assert.Equal(t, 1, exhausted)
	assert.False(t, r.Pending())
	assert.Equal(t, 5, r.Attempts())
}

func TestRetrierStopsWhenAttemptSucceeds(t *testing.T) {
	clock := &manualClock{}
	exhausted := false
	r := NewRetrier(clock, DefaultLoadPolicy().PollBackOff(), func(n int) bool { return n == 2 })
	r.OnExhausted(func() { exhausted = true })

	r.Start()
	clock.Advance(5 * time.Second)

	assert.Equal(t, 2, r.Attempts())
	assert.False(t, exhausted)
	assert.Zero(t, clock.Pending())
}

func TestRetrierCancel(t *testing.T) {
	clock := &manualClock{}
	calls := 0
	r := NewRetrier(clock, NewScheduleBackOff(time.Second), func(int) bool { calls++; return false })

	r.Start()
	r.Cancel()
	clock.Advance(2 * time.Second)

	assert.Zero(t, calls)
	assert.False(t, r.Pending())
}

func TestRetrierWithStoppedPolicyExhaustsAtStart(t *testing.T) {
	clock := &manualClock{}
	exhausted := false
	r := NewRetrier(clock, &backoff.StopBackOff{}, func(int) bool { return false })
	r.OnExhausted(func() { exhausted = true })

	r.Start()

	assert.True(t, exhausted)
	assert.False(t, r.Pending())
}

func TestRetryBackOffIsSingleShot(t *testing.T) {
	b := DefaultLoadPolicy().RetryBackOff()
	assert.Equal(t, time.Second, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestPolicyScriptCarriesBackOffWaits(t *testing.T) {
	ps := DefaultLoadPolicy().script()
	assert.Equal(t, []int64{50, 150, 300, 500, 1000}, ps.PollWaits)
	assert.Equal(t, []int64{1000}, ps.RetryWaits)
	assert.Equal(t, 1, ps.MaxRetries)

	custom := LoadPolicy{PollDelays: []time.Duration{10 * time.Millisecond, 5 * time.Millisecond}}
	assert.Equal(t, []int64{10, 0}, custom.script().PollWaits)
}

func TestDrainBoundsEndlessPolicies(t *testing.T) {
	assert.Len(t, drain(backoff.NewConstantBackOff(time.Millisecond)), maxWaits)
	assert.Empty(t, drain(&backoff.StopBackOff{}))
}
