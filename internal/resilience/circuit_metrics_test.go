package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/order-desk/internal/resilience"
)

func TestBreakerPublishesTransitions(t *testing.T) {
	const target = "erp-metrics"
	clk := newClock()
	b := resilience.NewBreaker(1, 0.5, time.Second).WithTarget(target)
	b.Now = clk.Now
	ctx := context.Background()

	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues(target)))

	b.Report(ctx, false)
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues(target)))

	clk.advance(time.Second)
	require.True(t, b.Allow(ctx))
	require.Equal(t, 2.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues(target)))

	b.Report(ctx, true)
	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues(target)))

	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues(target)))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues(target, "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues(target, "open", "half_open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues(target, "half_open", "closed")))
}
