package marketdata

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/config"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/redis"
)

// fakeFeed serves a fixed daily series and counts reads
type fakeFeed struct {
	prices map[string]float64 // date -> price
	calls  atomic.Int64
	block  chan struct{} // when set, PriceOn blocks until closed
}

func (f *fakeFeed) LatestPublishedDate(ctx context.Context, symbol, priceType string) (time.Time, bool, error) {
	f.calls.Add(1)
	var latest time.Time
	for d := range f.prices {
		day, _ := time.Parse(contracts.DateOnly, d)
		if day.After(latest) {
			latest = day
		}
	}
	if latest.IsZero() {
		return time.Time{}, false, nil
	}
	return latest, true, nil
}

func (f *fakeFeed) PriceOn(ctx context.Context, symbol, priceType string, day time.Time) (float64, bool, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	p, ok := f.prices[day.Format(contracts.DateOnly)]
	return p, ok, nil
}

func (f *fakeFeed) SeriesBetween(ctx context.Context, symbol, priceType string, from, to time.Time) ([]contracts.SettlementPrice, error) {
	f.calls.Add(1)
	return nil, nil
}

// disabledCache builds a cache helper with Redis turned off, so only
// the singleflight layer is active.
func disabledCache(t *testing.T) *redis.Cache {
	t.Helper()
	client, err := redis.New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	return redis.NewCache(client, "hedge:test")
}

func TestCachedFeedPassThrough(t *testing.T) {
	feed := &fakeFeed{prices: map[string]float64{
		"2026-01-10": 2100,
		"2026-01-12": 2150,
	}}
	cached := NewCachedFeed(feed, disabledCache(t))
	ctx := context.Background()

	price, ok, err := cached.PriceOn(ctx, "LME_AL", "cash_settlement", time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2100.0, price)

	_, ok, err = cached.PriceOn(ctx, "LME_AL", "cash_settlement", time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok, "unpublished day should report ok=false, not an error")

	latest, ok, err := cached.LatestPublishedDate(ctx, "LME_AL", "cash_settlement")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), latest)
}

func TestCachedFeedLatestEmptySeries(t *testing.T) {
	feed := &fakeFeed{prices: map[string]float64{}}
	cached := NewCachedFeed(feed, disabledCache(t))

	_, ok, err := cached.LatestPublishedDate(context.Background(), "LME_AL", "cash_settlement")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedFeedSingleFlight(t *testing.T) {
	feed := &fakeFeed{
		prices: map[string]float64{"2026-01-10": 2100},
		block:  make(chan struct{}),
	}
	cached := NewCachedFeed(feed, disabledCache(t))

	ctx := context.Background()
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			price, ok, err := cached.PriceOn(ctx, "LME_AL", "cash_settlement", day)
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 2100.0, price)
		}()
	}

	// Let the goroutines pile onto the in-flight read, then release it
	time.Sleep(100 * time.Millisecond)
	close(feed.block)
	wg.Wait()

	assert.Equal(t, int64(1), feed.calls.Load(), "concurrent identical reads should collapse into one")
}
