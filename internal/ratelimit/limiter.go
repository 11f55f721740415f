package ratelimit

import (
	"errors"
	"sync"
	"time"
)

var ErrTooManyAttempts = errors.New("too many attempts")

const (
	DefaultLimit  = 5
	DefaultWindow = 60 * time.Second
)

// Limiter counts attempts per client address within a trailing window.
// Old instants are pruned lazily on every check, so there is no
// background sweep. Addresses are never evicted.
type Limiter struct {
	mutex    sync.Mutex
	attempts map[string][]time.Time

	// ability to inject the clock for unit tests
	NowFunc func() time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{
		attempts: make(map[string][]time.Time),
		NowFunc:  time.Now,
	}
}

// Check records an attempt for the given address and reports whether it
// is admitted. An address with `limit` attempts still inside the window
// is rejected, and a rejected attempt is not recorded.
func (l *Limiter) Check(address string, limit int, window time.Duration) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.NowFunc()

	recent := l.attempts[address][:0]
	for _, instant := range l.attempts[address] {
		if now.Sub(instant) < window {
			recent = append(recent, instant)
		}
	}

	if len(recent) >= limit {
		l.attempts[address] = recent
		return ErrTooManyAttempts
	}

	l.attempts[address] = append(recent, now)
	return nil
}
