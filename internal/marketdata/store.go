package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
)

// Store implements contracts.PriceFeed over Postgres.
// The settlement series is append-only: inserts never overwrite an
// existing (symbol, price_type, date) row.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new settlement price store
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// LatestPublishedDate returns the newest published day for the series
func (s *Store) LatestPublishedDate(ctx context.Context, symbol, priceType string) (time.Time, bool, error) {
	query := `
		SELECT price_date
		FROM market.settlement_prices
		WHERE symbol = $1 AND price_type = $2
		ORDER BY price_date DESC
		LIMIT 1
	`

	var d time.Time
	err := s.pool.QueryRow(ctx, query, symbol, priceType).Scan(&d)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest published date query failed: %w", err)
	}
	return contracts.Day(d), true, nil
}

// PriceOn returns the price published for one day
func (s *Store) PriceOn(ctx context.Context, symbol, priceType string, day time.Time) (float64, bool, error) {
	query := `
		SELECT price_usd
		FROM market.settlement_prices
		WHERE symbol = $1 AND price_type = $2 AND price_date = $3
	`

	var price float64
	err := s.pool.QueryRow(ctx, query, symbol, priceType, contracts.Day(day)).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("price query failed: %w", err)
	}
	return price, true, nil
}

// SeriesBetween returns all published prices in [from, to], ascending by date
func (s *Store) SeriesBetween(ctx context.Context, symbol, priceType string, from, to time.Time) ([]contracts.SettlementPrice, error) {
	query := `
		SELECT symbol, price_type, price_date, price_usd, source, created_at
		FROM market.settlement_prices
		WHERE symbol = $1 AND price_type = $2 AND price_date BETWEEN $3 AND $4
		ORDER BY price_date ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, priceType, contracts.Day(from), contracts.Day(to))
	if err != nil {
		return nil, fmt.Errorf("series query failed: %w", err)
	}
	defer rows.Close()

	var series []contracts.SettlementPrice
	for rows.Next() {
		var p contracts.SettlementPrice
		if err := rows.Scan(&p.Symbol, &p.PriceType, &p.Date, &p.PriceUSD, &p.Source, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Date = contracts.Day(p.Date)
		series = append(series, p)
	}
	return series, rows.Err()
}

// InsertBatch appends newly published prices. Rows whose (symbol,
// price_type, date) already exist are left untouched. Returns the number
// of rows actually inserted.
func (s *Store) InsertBatch(ctx context.Context, prices []contracts.SettlementPrice) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO market.settlement_prices (symbol, price_type, price_date, price_usd, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, price_type, price_date) DO NOTHING
	`

	inserted := 0
	for _, p := range prices {
		tag, err := s.pool.Exec(ctx, query,
			p.Symbol, p.PriceType, contracts.Day(p.Date), p.PriceUSD, p.Source,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert price %s/%s failed: %w", p.Symbol, p.Date.Format(contracts.DateOnly), err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
