package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_FirstAttemptAlwaysAdmitted(t *testing.T) {
	limiter := NewLimiter()
	require.NotNil(t, limiter)

	assert.NoError(t, limiter.Check("83.12.53.65", DefaultLimit, DefaultWindow))
	assert.NoError(t, limiter.Check("91.35.21.5", 1, DefaultWindow))
}

func TestLimiter_RejectsAtLimitBoundary(t *testing.T) {
	now := time.Now()
	limiter := NewLimiter()
	limiter.NowFunc = func() time.Time { return now }

	// 5 attempts at t=0 all admitted
	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Check("83.12.53.65", 5, 60*time.Second))
	}

	// 6th at t=1 rejected, count == limit is a reject, not a pass
	now = now.Add(time.Second)
	err := limiter.Check("83.12.53.65", 5, 60*time.Second)
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// rejected attempts are not recorded, so the ledger stays at 5
	// and fully frees up once the window passes the initial burst
	now = now.Add(60 * time.Second)
	assert.NoError(t, limiter.Check("83.12.53.65", 5, 60*time.Second))
}

func TestLimiter_WindowSlides(t *testing.T) {
	now := time.Now()
	limiter := NewLimiter()
	limiter.NowFunc = func() time.Time { return now }

	require.NoError(t, limiter.Check("172.20.0.5", 2, 60*time.Second))

	now = now.Add(30 * time.Second)
	require.NoError(t, limiter.Check("172.20.0.5", 2, 60*time.Second))

	// t=31s: first attempt still in window, rejected
	now = now.Add(time.Second)
	assert.ErrorIs(t, limiter.Check("172.20.0.5", 2, 60*time.Second), ErrTooManyAttempts)

	// t=61s: the t=0 attempt dropped out, one slot free again
	now = now.Add(30 * time.Second)
	assert.NoError(t, limiter.Check("172.20.0.5", 2, 60*time.Second))

	// t=62s: attempts from t=30s and t=61s still held
	now = now.Add(time.Second)
	assert.ErrorIs(t, limiter.Check("172.20.0.5", 2, 60*time.Second), ErrTooManyAttempts)
}

func TestLimiter_InstantExactlyWindowOldIsPruned(t *testing.T) {
	now := time.Now()
	limiter := NewLimiter()
	limiter.NowFunc = func() time.Time { return now }

	require.NoError(t, limiter.Check("10.0.0.1", 1, 60*time.Second))

	// now - instant == window, pruned (>= comparison)
	now = now.Add(60 * time.Second)
	assert.NoError(t, limiter.Check("10.0.0.1", 1, 60*time.Second))
}

func TestLimiter_AddressesIndependent(t *testing.T) {
	now := time.Now()
	limiter := NewLimiter()
	limiter.NowFunc = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Check("83.12.53.65", 5, 60*time.Second))
	}
	assert.ErrorIs(t, limiter.Check("83.12.53.65", 5, 60*time.Second), ErrTooManyAttempts)

	// a different address has its own ledger
	assert.NoError(t, limiter.Check("84.13.54.66", 5, 60*time.Second))
}
