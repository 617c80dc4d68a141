package shipping

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/order-desk/internal/cache"
)

// Cached memoises a Provider per company in Redis.
type Cached struct {
	Provider Provider
	Cache    *cache.Cache
}

// Metadata serves from cache when possible. Cache failures are logged and
// fall through to the provider.
func (c Cached) Metadata(ctx context.Context, company string) (Metadata, error) {
	key := cache.KeyShipping(company)
	var meta Metadata
	ok, err := c.Cache.GetJSON(ctx, key, &meta)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("company", company).Msg("shipping_cache_get_failed")
	}
	if ok {
		return meta, nil
	}
	meta, err = c.Provider.Metadata(ctx, company)
	if err != nil {
		return Metadata{}, err
	}
	if err := c.Cache.SetJSON(ctx, key, meta); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("company", company).Msg("shipping_cache_set_failed")
	}
	return meta, nil
}
