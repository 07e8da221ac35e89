package cashflow

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
)

// Repository implements contracts.CashflowStore
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new cashflow baseline repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes a baseline item, reporting whether it was actually inserted
func (r *Repository) Insert(ctx context.Context, item *contracts.CashflowBaselineItem) (bool, error) {
	query := `
		INSERT INTO snapshots.cashflow_baseline (
			contract_id, as_of_date, currency,
			projected_usd, final_usd, settlement_date,
			methodology, quality_flags, data_incomplete, inputs_hash
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (contract_id, as_of_date, currency) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		item.ContractID, contracts.Day(item.AsOfDate), item.Currency,
		item.ProjectedUSD, item.FinalUSD, item.SettlementDate,
		item.Methodology, item.QualityFlags, item.DataIncomplete, item.InputsHash,
	)
	if err != nil {
		return false, fmt.Errorf("insert cashflow item failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByDate retrieves the full baseline for one date
func (r *Repository) ListByDate(ctx context.Context, asOf time.Time) ([]*contracts.CashflowBaselineItem, error) {
	query := `
		SELECT id, contract_id, as_of_date, currency,
			projected_usd, final_usd, settlement_date,
			methodology, quality_flags, data_incomplete, inputs_hash, created_at
		FROM snapshots.cashflow_baseline
		WHERE as_of_date = $1
		ORDER BY contract_id ASC
	`

	rows, err := r.pool.Query(ctx, query, contracts.Day(asOf))
	if err != nil {
		return nil, fmt.Errorf("list cashflow items failed: %w", err)
	}
	defer rows.Close()

	var items []*contracts.CashflowBaselineItem
	for rows.Next() {
		var item contracts.CashflowBaselineItem
		if err := rows.Scan(
			&item.ID, &item.ContractID, &item.AsOfDate, &item.Currency,
			&item.ProjectedUSD, &item.FinalUSD, &item.SettlementDate,
			&item.Methodology, &item.QualityFlags, &item.DataIncomplete, &item.InputsHash, &item.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}
