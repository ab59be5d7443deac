package transport

import (
	"sync"
	"time"

	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
)

// Breaker opens after a run of consecutive send failures and closes again after the cooldown.
// Thresholds are read from the policy on every call so reloads apply immediately.
type Breaker struct {
	mu        sync.Mutex
	clock     clock.Clock
	policy    *config.PolicyHolder
	failures  int
	openUntil time.Time
}

func NewBreaker(c clock.Clock, policy *config.PolicyHolder) *Breaker {
	return &Breaker{clock: c, policy: policy}
}

// Open reports whether sends should be refused right now.
func (b *Breaker) Open() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clock.Now().Before(b.openUntil)
}

// Record feeds one send outcome and reports whether the breaker is open afterwards.
func (b *Breaker) Record(success bool) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	if success {
		b.failures = 0
		b.openUntil = time.Time{}
		return false
	}

	b.failures++
	p := b.policy.Get().SMS
	if b.failures >= p.BreakerThreshold {
		b.openUntil = now.Add(p.BreakerCooldown)
		b.failures = 0
	}
	return now.Before(b.openUntil)
}

func (b *Breaker) Failures() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
