package migrate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterReserve(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(3, time.Second)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		wait, ok := l.reserve()
		require.True(t, ok, "slot %d should be free", i)
		assert.Zero(t, wait)
	}

	wait, ok := l.reserve()
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	// Slide past the window; all slots free again.
	now = now.Add(1100 * time.Millisecond)
	_, ok = l.reserve()
	assert.True(t, ok)
}

func TestLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(2, time.Second)
	l.now = func() time.Time { return now }

	_, ok := l.reserve()
	require.True(t, ok)

	now = now.Add(600 * time.Millisecond)
	_, ok = l.reserve()
	require.True(t, ok)

	// Window still holds both starts.
	wait, ok := l.reserve()
	require.False(t, ok)
	assert.Equal(t, 400*time.Millisecond, wait)

	// First start leaves the window, second remains.
	now = now.Add(500 * time.Millisecond)
	_, ok = l.reserve()
	assert.True(t, ok)
}

func TestLimiterDisabled(t *testing.T) {
	assert.NoError(t, NewLimiter(0, time.Second).Wait(context.Background()))

	var nilLimiter *Limiter
	assert.NoError(t, nilLimiter.Wait(context.Background()))
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	l := NewLimiter(1, time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoffDelay(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	for attempt, floor := range map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		3: 400 * time.Millisecond,
		4: 800 * time.Millisecond,
		5: time.Second,
		9: time.Second,
	} {
		d := backoffDelay(attempt, base, max)
		assert.GreaterOrEqual(t, d, floor, "attempt %d", attempt)
		assert.LessOrEqual(t, d, floor+floor/4, "attempt %d jitter bound", attempt)
	}
}
