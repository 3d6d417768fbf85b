package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is the injectable clock used across the SDK tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	clock := newFakeClock()
	b := newCircuitBreaker(3, 30*time.Second, clock.Now)

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow(), "breaker open before reaching the threshold")

	b.RecordFailure()
	assert.False(t, b.Allow(), "breaker closed after hitting the threshold")
}

func TestBreakerHalfOpensAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	b := newCircuitBreaker(2, 30*time.Second, clock.Now)

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.Allow())

	clock.Advance(29 * time.Second)
	assert.False(t, b.Allow(), "breaker admitted a call before the cooldown elapsed")

	clock.Advance(2 * time.Second)
	assert.True(t, b.Allow(), "breaker did not half-open after the cooldown")
	assert.False(t, b.Allow(), "half-open breaker admitted a second probe")
}

func TestBreakerClosesOnHalfOpenSuccess(t *testing.T) {
	clock := newFakeClock()
	b := newCircuitBreaker(2, 30*time.Second, clock.Now)

	b.RecordFailure()
	b.RecordFailure()
	clock.Advance(31 * time.Second)
	assert.True(t, b.Allow())

	b.RecordSuccess()
	assert.True(t, b.Allow())
	assert.True(t, b.Allow(), "closed breaker should admit every call")
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	clock := newFakeClock()
	b := newCircuitBreaker(2, 30*time.Second, clock.Now)

	b.RecordFailure()
	b.RecordFailure()
	clock.Advance(31 * time.Second)
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.False(t, b.Allow(), "failed probe should reopen the breaker")

	// The new open period gets a full cooldown of its own.
	clock.Advance(29 * time.Second)
	assert.False(t, b.Allow())
	clock.Advance(2 * time.Second)
	assert.True(t, b.Allow())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	clock := newFakeClock()
	b := newCircuitBreaker(3, 30*time.Second, clock.Now)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// Two more failures stay under the threshold after the reset.
	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow())
}
