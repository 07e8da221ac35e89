package marketdata

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/redis"
)

// CachedFeed wraps a PriceFeed with a Redis read-through cache.
// Settled daily prices are effectively immutable so they get a long
// TTL; the latest-published marker moves daily and gets a short one.
// Concurrent misses for the same key are collapsed into one database
// read via singleflight.
type CachedFeed struct {
	inner contracts.PriceFeed
	cache *redis.Cache
	group singleflight.Group
}

// NewCachedFeed creates a caching wrapper around a price feed
func NewCachedFeed(inner contracts.PriceFeed, cache *redis.Cache) *CachedFeed {
	return &CachedFeed{
		inner: inner,
		cache: cache,
	}
}

type pricePoint struct {
	Price float64 `json:"price"`
	OK    bool    `json:"ok"`
}

// LatestPublishedDate returns the newest published day for the series
func (f *CachedFeed) LatestPublishedDate(ctx context.Context, symbol, priceType string) (time.Time, bool, error) {
	key := redis.LatestPublishedKey(symbol, priceType)

	var cached string
	found, err := f.cache.Get(ctx, key, &cached)
	if err == nil && found {
		if cached == "" {
			return time.Time{}, false, nil
		}
		d, err := time.Parse(contracts.DateOnly, cached)
		if err == nil {
			return d, true, nil
		}
	}

	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		d, ok, err := f.inner.LatestPublishedDate(ctx, symbol, priceType)
		if err != nil {
			return nil, err
		}

		value := ""
		if ok {
			value = d.Format(contracts.DateOnly)
		}
		// Cache failures only cost a re-read next time
		_ = f.cache.Set(ctx, key, value, redis.TTLShort)
		return value, nil
	})
	if err != nil {
		return time.Time{}, false, err
	}

	value := v.(string)
	if value == "" {
		return time.Time{}, false, nil
	}
	d, err := time.Parse(contracts.DateOnly, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid cached date %q: %w", value, err)
	}
	return d, true, nil
}

// PriceOn returns the price published for one day
func (f *CachedFeed) PriceOn(ctx context.Context, symbol, priceType string, day time.Time) (float64, bool, error) {
	day = contracts.Day(day)
	key := redis.PriceKey(symbol, priceType, day.Format(contracts.DateOnly))

	var cached pricePoint
	found, err := f.cache.Get(ctx, key, &cached)
	if err == nil && found {
		return cached.Price, cached.OK, nil
	}

	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		price, ok, err := f.inner.PriceOn(ctx, symbol, priceType, day)
		if err != nil {
			return nil, err
		}

		point := pricePoint{Price: price, OK: ok}
		// Published prices never change; absent days may fill in later
		ttl := redis.TTLDaily
		if !ok {
			ttl = redis.TTLShort
		}
		_ = f.cache.Set(ctx, key, point, ttl)
		return point, nil
	})
	if err != nil {
		return 0, false, err
	}

	point := v.(pricePoint)
	return point.Price, point.OK, nil
}

// SeriesBetween reads through to the inner feed. Range reads happen
// once per pipeline run, so caching them buys nothing.
func (f *CachedFeed) SeriesBetween(ctx context.Context, symbol, priceType string, from, to time.Time) ([]contracts.SettlementPrice, error) {
	return f.inner.SeriesBetween(ctx, symbol, priceType, from, to)
}

// InvalidateLatest drops the latest-published marker after new prices land
func (f *CachedFeed) InvalidateLatest(ctx context.Context, symbol, priceType string) error {
	return f.cache.Delete(ctx, redis.LatestPublishedKey(symbol, priceType))
}
