package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
)

// Repository implements contracts.MtmSnapshotStore.
// Snapshot rows are immutable: an insert that collides on
// (contract_id, as_of_date, currency) is a silent no-op.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new MTM snapshot repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes a snapshot row, reporting whether it was actually inserted
func (r *Repository) Insert(ctx context.Context, snap *contracts.ContractMtmSnapshot) (bool, error) {
	query := `
		INSERT INTO snapshots.contract_mtm (
			contract_id, as_of_date, currency,
			average_usd, fixed_usd, quantity_mt, mtm_value_usd,
			window_start, window_end, priced_through, days_used, window_complete,
			methodology, quality_flags, inputs_hash
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (contract_id, as_of_date, currency) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		snap.ContractID, contracts.Day(snap.AsOfDate), snap.Currency,
		snap.AverageUSD, snap.FixedUSD, snap.QuantityMT, snap.MtmValueUSD,
		snap.WindowStart, snap.WindowEnd, snap.PricedThrough, snap.DaysUsed, snap.WindowComplete,
		snap.Methodology, snap.QualityFlags, snap.InputsHash,
	)
	if err != nil {
		return false, fmt.Errorf("insert mtm snapshot failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Get retrieves one snapshot by its natural key
func (r *Repository) Get(ctx context.Context, contractID string, asOf time.Time, currency string) (*contracts.ContractMtmSnapshot, error) {
	query := `
		SELECT id, contract_id, as_of_date, currency,
			average_usd, fixed_usd, quantity_mt, mtm_value_usd,
			window_start, window_end, priced_through, days_used, window_complete,
			methodology, quality_flags, inputs_hash, created_at
		FROM snapshots.contract_mtm
		WHERE contract_id = $1 AND as_of_date = $2 AND currency = $3
	`

	var snap contracts.ContractMtmSnapshot
	err := r.pool.QueryRow(ctx, query, contractID, contracts.Day(asOf), currency).Scan(
		&snap.ID, &snap.ContractID, &snap.AsOfDate, &snap.Currency,
		&snap.AverageUSD, &snap.FixedUSD, &snap.QuantityMT, &snap.MtmValueUSD,
		&snap.WindowStart, &snap.WindowEnd, &snap.PricedThrough, &snap.DaysUsed, &snap.WindowComplete,
		&snap.Methodology, &snap.QualityFlags, &snap.InputsHash, &snap.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mtm snapshot failed: %w", err)
	}
	return &snap, nil
}

// ListByDate retrieves all snapshots for one valuation date
func (r *Repository) ListByDate(ctx context.Context, asOf time.Time) ([]*contracts.ContractMtmSnapshot, error) {
	query := `
		SELECT id, contract_id, as_of_date, currency,
			average_usd, fixed_usd, quantity_mt, mtm_value_usd,
			window_start, window_end, priced_through, days_used, window_complete,
			methodology, quality_flags, inputs_hash, created_at
		FROM snapshots.contract_mtm
		WHERE as_of_date = $1
		ORDER BY contract_id ASC
	`

	rows, err := r.pool.Query(ctx, query, contracts.Day(asOf))
	if err != nil {
		return nil, fmt.Errorf("list mtm snapshots failed: %w", err)
	}
	defer rows.Close()

	var snaps []*contracts.ContractMtmSnapshot
	for rows.Next() {
		var snap contracts.ContractMtmSnapshot
		if err := rows.Scan(
			&snap.ID, &snap.ContractID, &snap.AsOfDate, &snap.Currency,
			&snap.AverageUSD, &snap.FixedUSD, &snap.QuantityMT, &snap.MtmValueUSD,
			&snap.WindowStart, &snap.WindowEnd, &snap.PricedThrough, &snap.DaysUsed, &snap.WindowComplete,
			&snap.Methodology, &snap.QualityFlags, &snap.InputsHash, &snap.CreatedAt,
		); err != nil {
			return nil, err
		}
		snaps = append(snaps, &snap)
	}
	return snaps, rows.Err()
}
