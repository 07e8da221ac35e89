package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/config"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/logger"
)

// Syncer pulls newly published settlement prices from the feed into the
// local series. Safe to run repeatedly: the store ignores rows that
// already exist.
type Syncer struct {
	store    *Store
	client   *FeedClient
	cached   *CachedFeed
	logger   *logger.Logger
	symbol   string
	prType   string
	lookback int // days
}

// NewSyncer creates a price syncer
func NewSyncer(cfg *config.Config, store *Store, client *FeedClient, cached *CachedFeed, log *logger.Logger) *Syncer {
	return &Syncer{
		store:    store,
		client:   client,
		cached:   cached,
		logger:   log,
		symbol:   cfg.Feed.Symbol,
		prType:   cfg.Feed.PriceType,
		lookback: cfg.Feed.SyncLookback,
	}
}

// Sync fetches publications since the last known date and appends the
// new ones. Returns the number of rows inserted.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	today := contracts.Day(time.Now().UTC())

	from := today.AddDate(0, 0, -s.lookback)
	latest, ok, err := s.store.LatestPublishedDate(ctx, s.symbol, s.prType)
	if err != nil {
		return 0, fmt.Errorf("resolve latest published date: %w", err)
	}
	if ok && latest.After(from) {
		// Re-fetch the last known day too, in case the provider
		// back-fills late corrections as separate publications.
		from = latest
	}

	prices, err := s.client.FetchSettlements(ctx, from, today)
	if err != nil {
		return 0, fmt.Errorf("fetch settlements: %w", err)
	}

	inserted, err := s.store.InsertBatch(ctx, prices)
	if err != nil {
		return inserted, fmt.Errorf("insert settlements: %w", err)
	}

	if inserted > 0 && s.cached != nil {
		if err := s.cached.InvalidateLatest(ctx, s.symbol, s.prType); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate latest-published cache")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol":   s.symbol,
		"fetched":  len(prices),
		"inserted": inserted,
		"from":     from.Format(contracts.DateOnly),
		"to":       today.Format(contracts.DateOnly),
	}).Info("Settlement price sync completed")

	return inserted, nil
}
