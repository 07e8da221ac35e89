package pnl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
)

// Repository implements contracts.PnlSnapshotStore. Rows are immutable:
// colliding inserts are silent no-ops, so a realized outcome written
// once can never be revised by a later run.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new PnL snapshot repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes a snapshot row, reporting whether it was actually inserted
func (r *Repository) Insert(ctx context.Context, snap *contracts.ContractPnlSnapshot) (bool, error) {
	query := `
		INSERT INTO snapshots.contract_pnl (
			contract_id, as_of_date, currency, kind,
			pnl_usd, average_usd, fixed_usd, quantity_mt,
			methodology, quality_flags, inputs_hash
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (contract_id, as_of_date, currency, kind) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		snap.ContractID, contracts.Day(snap.AsOfDate), snap.Currency, snap.Kind,
		snap.PnlUSD, snap.AverageUSD, snap.FixedUSD, snap.QuantityMT,
		snap.Methodology, snap.QualityFlags, snap.InputsHash,
	)
	if err != nil {
		return false, fmt.Errorf("insert pnl snapshot failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Get retrieves the snapshot for one contract and date, preferring the
// realized row when both kinds exist on the same date
func (r *Repository) Get(ctx context.Context, contractID string, asOf time.Time, currency string) (*contracts.ContractPnlSnapshot, error) {
	query := `
		SELECT id, contract_id, as_of_date, currency, kind,
			pnl_usd, average_usd, fixed_usd, quantity_mt,
			methodology, quality_flags, inputs_hash, created_at
		FROM snapshots.contract_pnl
		WHERE contract_id = $1 AND as_of_date = $2 AND currency = $3
		ORDER BY CASE kind WHEN 'realized' THEN 0 ELSE 1 END
		LIMIT 1
	`

	var snap contracts.ContractPnlSnapshot
	err := r.pool.QueryRow(ctx, query, contractID, contracts.Day(asOf), currency).Scan(
		&snap.ID, &snap.ContractID, &snap.AsOfDate, &snap.Currency, &snap.Kind,
		&snap.PnlUSD, &snap.AverageUSD, &snap.FixedUSD, &snap.QuantityMT,
		&snap.Methodology, &snap.QualityFlags, &snap.InputsHash, &snap.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pnl snapshot failed: %w", err)
	}
	return &snap, nil
}

// HasRealized reports whether a realized row already locks the contract
func (r *Repository) HasRealized(ctx context.Context, contractID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM snapshots.contract_pnl
			WHERE contract_id = $1 AND kind = 'realized'
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, contractID).Scan(&exists); err != nil {
		return false, fmt.Errorf("realized lookup failed: %w", err)
	}
	return exists, nil
}
