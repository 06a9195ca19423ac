package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucket(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	tb := NewTokenBucket(3, time.Minute)
	tb.now = clock.now
	tb.lastRefill = clock.t

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "token %d", i+1)
	}
	assert.False(t, tb.Allow())

	clock.advance(59 * time.Second)
	assert.False(t, tb.Allow())

	clock.advance(time.Second)
	assert.True(t, tb.Allow())

	tb.Reset()
	assert.Equal(t, tb.capacity, tb.tokens)
}

func TestSlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	sw := NewSlidingWindow(2, time.Minute)
	sw.now = clock.now

	assert.True(t, sw.Allow())
	clock.advance(30 * time.Second)
	assert.True(t, sw.Allow())
	assert.False(t, sw.Allow())

	clock.advance(31 * time.Second)
	assert.True(t, sw.Allow(), "first request slid out of the window")
	assert.False(t, sw.Allow())

	sw.Reset()
	assert.Empty(t, sw.requests)
}

func TestWaitHonoursCancellation(t *testing.T) {
	limiters := map[string]Limiter{
		"token_bucket":   NewTokenBucket(1, time.Hour),
		"sliding_window": NewSlidingWindow(1, time.Hour),
	}

	for name, l := range limiters {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, l.Wait(context.Background()))

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			start := time.Now()
			err := l.Wait(ctx)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Less(t, time.Since(start), time.Second)
		})
	}
}

func TestWaitReturnsWhenSlotFrees(t *testing.T) {
	tb := NewTokenBucket(1, 30*time.Millisecond)
	require.True(t, tb.Allow())

	start := time.Now()
	require.NoError(t, tb.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestNew(t *testing.T) {
	l, err := New(StrategyTokenBucket, 5)
	require.NoError(t, err)
	assert.IsType(t, &TokenBucket{}, l)

	l, err = New(StrategySlidingWindow, 5)
	require.NoError(t, err)
	assert.IsType(t, &SlidingWindow{}, l)

	l, err = New(StrategyTokenBucket, 0)
	require.NoError(t, err)
	assert.IsType(t, Unlimited{}, l)

	l, err = New(StrategyNone, 5)
	require.NoError(t, err)
	assert.True(t, l.Allow())

	_, err = New("leaky", 5)
	assert.Error(t, err)
}

func TestUnlimitedWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Unlimited{}.Wait(ctx), context.Canceled)
}
