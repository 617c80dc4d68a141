package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/order-desk/internal/resilience"
)

// Probes checks the Redis connection and the ERP circuit breaker. A nil
// Redis client counts as healthy since the cache is optional.
type Probes struct {
	Redis   *redis.Client
	Breaker *resilience.Breaker
}

// PingRedis implements Checker.
func (p Probes) PingRedis(ctx context.Context, timeout time.Duration) error {
	if p.Redis == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Redis.Ping(ctx).Err()
}

// CheckERP implements Checker.
func (p Probes) CheckERP(context.Context) error {
	if p.Breaker == nil {
		return nil
	}
	if state := p.Breaker.State(); state == resilience.Open {
		return fmt.Errorf("circuit %s, retry in %s", state, p.Breaker.RetryAfter().Round(time.Second))
	}
	return nil
}
