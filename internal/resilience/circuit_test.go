package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/order-desk/internal/resilience"
)

type clock struct{ now time.Time }

func newClock() *clock {
	return &clock{now: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestBreakerOpensAndRecovers(t *testing.T) {
	clk := newClock()
	b := resilience.NewBreaker(2, 0.5, time.Minute)
	b.Now = clk.Now
	ctx := context.Background()

	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.Equal(t, resilience.Closed, b.State())
	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)

	require.Equal(t, resilience.Open, b.State())
	require.False(t, b.Allow(ctx))
	require.Equal(t, time.Minute, b.RetryAfter())

	clk.advance(40 * time.Second)
	require.False(t, b.Allow(ctx))
	require.Equal(t, 20*time.Second, b.RetryAfter())

	clk.advance(20 * time.Second)
	require.True(t, b.Allow(ctx))
	require.Equal(t, resilience.HalfOpen, b.State())
	require.False(t, b.Allow(ctx), "only one probe while half open")

	b.Report(ctx, true)
	require.Equal(t, resilience.Closed, b.State())
	require.Zero(t, b.RetryAfter())
	require.True(t, b.Allow(ctx))
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	clk := newClock()
	b := resilience.NewBreaker(1, 0.5, time.Second)
	b.Now = clk.Now
	ctx := context.Background()

	b.Report(ctx, false)
	clk.advance(time.Second)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.Equal(t, resilience.Open, b.State())
	require.False(t, b.Allow(ctx))
}

func TestBreakerStaysClosedBelowRatio(t *testing.T) {
	b := resilience.NewBreaker(4, 0.5, time.Second)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		b.Report(ctx, i%3 != 0)
	}
	require.Equal(t, resilience.Closed, b.State())
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, 4*base, resilience.Backoff(base, 3, 0))
	require.Equal(t, 100*time.Millisecond, resilience.Backoff(0, 0, 0))

	d := resilience.Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d, 160*time.Millisecond)
	require.LessOrEqual(t, d, 240*time.Millisecond)
}
