package riskflags

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
)

// Repository implements contracts.RiskFlagStore
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new risk flag repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes a flag, reporting whether it was actually inserted.
// Re-raising the same flag for the same contract and date is a no-op.
func (r *Repository) Insert(ctx context.Context, flag *contracts.RiskFlag) (bool, error) {
	query := `
		INSERT INTO snapshots.risk_flags (
			contract_id, as_of_date, flag_type, severity, message, inputs_hash
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (contract_id, as_of_date, flag_type) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		flag.ContractID, contracts.Day(flag.AsOfDate), flag.FlagType,
		flag.Severity, flag.Message, flag.InputsHash,
	)
	if err != nil {
		return false, fmt.Errorf("insert risk flag failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByDate retrieves all flags raised for one date
func (r *Repository) ListByDate(ctx context.Context, asOf time.Time) ([]*contracts.RiskFlag, error) {
	query := `
		SELECT id, contract_id, as_of_date, flag_type, severity, message, inputs_hash, created_at
		FROM snapshots.risk_flags
		WHERE as_of_date = $1
		ORDER BY contract_id, flag_type ASC
	`

	rows, err := r.pool.Query(ctx, query, contracts.Day(asOf))
	if err != nil {
		return nil, fmt.Errorf("list risk flags failed: %w", err)
	}
	defer rows.Close()

	var flags []*contracts.RiskFlag
	for rows.Next() {
		var f contracts.RiskFlag
		if err := rows.Scan(
			&f.ID, &f.ContractID, &f.AsOfDate, &f.FlagType,
			&f.Severity, &f.Message, &f.InputsHash, &f.CreatedAt,
		); err != nil {
			return nil, err
		}
		flags = append(flags, &f)
	}
	return flags, rows.Err()
}
