package connection

import (
	"math"
	"sync"
	"time"
)

// Reconnect defaults.
const (
	DefaultMaxAttempts = 5
	DefaultRetryBase   = 1 * time.Second
	DefaultRetryMax    = 60 * time.Second
	DefaultMultiplier  = 2.0
)

// ReconnectPolicy counts consecutive failed attempts and derives the
// backoff for the next one. Attempts reset when a connection reaches Ready.
type ReconnectPolicy struct {
	// MaxAttempts is the number of failures allowed per candidate endpoint.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	// Linear grows the delay by BaseDelay per attempt instead of
	// multiplying it.
	Linear bool
	// Unlimited never gives up (server mode).
	Unlimited bool

	mu       sync.Mutex
	attempts int
}

// NewReconnectPolicy returns a policy with the default delays.
func NewReconnectPolicy(maxAttempts int, unlimited bool) *ReconnectPolicy {
	return &ReconnectPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   DefaultRetryBase,
		MaxDelay:    DefaultRetryMax,
		Multiplier:  DefaultMultiplier,
		Unlimited:   unlimited,
	}
}

// Fail records one failed attempt and returns the new count.
func (p *ReconnectPolicy) Fail() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	return p.attempts
}

// Attempts returns the number of consecutive failures.
func (p *ReconnectPolicy) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Reset zeroes the failure count.
func (p *ReconnectPolicy) Reset() {
	p.mu.Lock()
	p.attempts = 0
	p.mu.Unlock()
}

// Allows reports whether another attempt is permitted across candidates
// endpoints.
func (p *ReconnectPolicy) Allows(candidates int) bool {
	if p.Unlimited {
		return true
	}
	if candidates < 1 {
		candidates = 1
	}
	return p.Attempts() < p.MaxAttempts*candidates
}

// NextDelay returns the wait before the next attempt. It never decreases as
// attempts grow and never exceeds MaxDelay.
func (p *ReconnectPolicy) NextDelay() time.Duration {
	n := p.Attempts()
	if n == 0 || p.BaseDelay <= 0 {
		return 0
	}

	var d float64
	if p.Linear {
		d = float64(p.BaseDelay) * float64(n)
	} else {
		mult := p.Multiplier
		if mult < 1 {
			mult = 1
		}
		d = float64(p.BaseDelay) * math.Pow(mult, float64(n-1))
	}

	if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
