package tradebook

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
)

// Repository implements contracts.ContractStore. Contracts are owned
// by the trade-capture side; the pipeline only reads them.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new contract repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const contractColumns = `
	id, reference, counterparty, status,
	symbol, price_type, pricing_mode, quantity_mt,
	fixed_price_usd, fixed_side, avg_start, avg_end, currency,
	settlement_date, created_at, updated_at
`

// Get retrieves one contract by id
func (r *Repository) Get(ctx context.Context, id string) (*contracts.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM hedge.contracts WHERE id = $1`

	c, err := scanContract(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("contract %s not found", id)
	}
	return c, nil
}

// ListInScope retrieves contracts matching the filters, all of them
// when the filters are empty. Cancelled contracts are excluded here so
// every caller sees the same scope rules.
func (r *Repository) ListInScope(ctx context.Context, filters contracts.ScopeFilters) ([]*contracts.Contract, error) {
	query := `SELECT ` + contractColumns + `
		FROM hedge.contracts
		WHERE status <> 'cancelled'
			AND ($1 = '' OR counterparty = $1)
			AND ($2 = '' OR symbol = $2)
			AND (cardinality($3::text[]) = 0 OR id = ANY($3::text[]))
		ORDER BY reference ASC
	`

	ids := filters.ContractIDs
	if ids == nil {
		ids = []string{}
	}

	rows, err := r.pool.Query(ctx, query, filters.Counterparty, filters.Symbol, ids)
	if err != nil {
		return nil, fmt.Errorf("list contracts failed: %w", err)
	}
	defer rows.Close()

	var out []*contracts.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContract(row pgx.Row) (*contracts.Contract, error) {
	var c contracts.Contract
	err := row.Scan(
		&c.ID, &c.Reference, &c.Counterparty, &c.Status,
		&c.Spec.Symbol, &c.Spec.PriceType, &c.Spec.PricingMode, &c.Spec.QuantityMT,
		&c.Spec.FixedPriceUSD, &c.Spec.FixedSide, &c.Spec.AvgStart, &c.Spec.AvgEnd, &c.Spec.Currency,
		&c.SettlementDate, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan contract failed: %w", err)
	}
	return &c, nil
}
