package kvcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabioDiCeglie/kvcache/clock"
)

func TestFixedWindowLimiter(t *testing.T) {
	mock := clock.NewMock(time.Now())
	s := openTestStore(t, testConfig(), WithClock(mock))

	lim, err := NewFixedWindowLimiter(s, 5, time.Minute)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		d, err := lim.Allow("client")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should pass", i+1)
		assert.Equal(t, int64(i+1), d.Current)
		assert.Equal(t, int64(5-i-1), d.Remaining)
	}

	// Sixth request in the same window is over the limit.
	d, err := lim.Allow("client")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(0), d.Remaining)
	assert.Greater(t, d.RetryAfter, time.Duration(0))

	// A different id has its own window.
	d, err = lim.Allow("other")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// The counter expires with the window and the count restarts.
	mock.Advance(61 * time.Second)
	d, err = lim.Allow("client")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Current)
}

func TestFixedWindowLimiter_InvalidConfig(t *testing.T) {
	s := openTestStore(t, testConfig())

	_, err := NewFixedWindowLimiter(s, 0, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewFixedWindowLimiter(s, 5, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSlidingWindowLimiter(t *testing.T) {
	mock := clock.NewMock(time.Now())
	s := openTestStore(t, testConfig(), WithClock(mock))

	lim, err := NewSlidingWindowLimiter(s, 3, time.Minute)
	require.NoError(t, err)

	// Three requests spread across the window all pass.
	for i := 0; i < 3; i++ {
		d, err := lim.Allow("client")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should pass", i+1)
		mock.Advance(10 * time.Second)
	}

	// 30s in: all three timestamps are still inside the window.
	d, err := lim.Allow("client")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(3), d.Current)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	// Once the oldest timestamp slides out, one slot frees up. The window
	// rolls; it does not reset wholesale.
	mock.Advance(31 * time.Second)
	d, err = lim.Allow("client")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = lim.Allow("client")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestSlidingWindowLimiter_InvalidConfig(t *testing.T) {
	s := openTestStore(t, testConfig())

	_, err := NewSlidingWindowLimiter(s, -1, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewSlidingWindowLimiter(s, 3, -time.Second)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
