// Package breaker implements the shared circuit breaker guarding the
// external generation endpoint.
package breaker

import (
	"sync"
	"time"

	"github.com/smallbiznis/taskforge/internal/clock"
	"github.com/smallbiznis/taskforge/internal/config"
)

// Breaker counts consecutive failed attempt-sequences and, past the
// configured threshold, rejects calls outright until the open duration
// elapses. It is an injectable value, not process-global state: tests
// construct isolated instances.
type Breaker struct {
	mu    sync.Mutex
	clock clock.Clock
	cfg   *config.AIConfigHolder

	consecutiveFailures int
	openedAt            time.Time // zero means not open
}

func New(clk clock.Clock, cfg *config.AIConfigHolder) *Breaker {
	return &Breaker{clock: clk, cfg: cfg}
}

// Allow reports whether a call may proceed. While open and inside the
// cooldown window it returns false without any side effect; once the
// window elapses the next caller is let through as the probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openedAt.IsZero() {
		return true
	}
	if b.clock.Now().Sub(b.openedAt) < b.cfg.Get().OpenDuration {
		return false
	}
	return true
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	b.openedAt = time.Time{}
}

// RecordFailure counts one exhausted attempt-sequence and opens the
// breaker when the threshold is reached. Returns true when this failure
// opened it.
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.cfg.Get().FailureThreshold && b.openedAt.IsZero() {
		b.openedAt = b.clock.Now()
		return true
	}
	// while open, a failed probe restarts the cooldown
	if !b.openedAt.IsZero() {
		b.openedAt = b.clock.Now()
	}
	return false
}

// Open reports whether the breaker currently rejects calls.
func (b *Breaker) Open() bool {
	return !b.Allow()
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}
