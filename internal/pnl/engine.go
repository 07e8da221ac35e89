package pnl

import (
	"context"
	"fmt"
	"time"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/valuation"
)

// Outcome is the result of one PnL computation. When Computable is
// false the snapshot is nil and Reason says why; the caller degrades
// that to a data-quality flag rather than failing.
type Outcome struct {
	Computable bool
	Reason     string
	Snapshot   *contracts.ContractPnlSnapshot
}

// Engine derives PnL snapshots from valuations. It never writes;
// persistence and idempotency belong to the caller.
type Engine struct {
	valuation *valuation.Engine
}

// NewEngine creates a PnL engine over a valuation engine
func NewEngine(v *valuation.Engine) *Engine {
	return &Engine{valuation: v}
}

// Unrealized computes the point-in-time PnL of an open contract as of a
// date. The number equals the mark-to-market value: what the contract
// would pay out if the realized average held through the window.
func (e *Engine) Unrealized(ctx context.Context, c *contracts.Contract, asOf time.Time, inputsHash string) (Outcome, error) {
	res, err := e.valuation.MarkToMarket(ctx, c.Spec, asOf)
	if err != nil {
		return Outcome{}, fmt.Errorf("mark to market %s: %w", c.ID, err)
	}
	if !res.Computable {
		return Outcome{Reason: res.Reason}, nil
	}

	return Outcome{
		Computable: true,
		Snapshot: &contracts.ContractPnlSnapshot{
			ContractID:  c.ID,
			AsOfDate:    contracts.Day(asOf),
			Currency:    c.Spec.Currency,
			Kind:        contracts.PnlUnrealized,
			PnlUSD:      res.ValueUSD,
			AverageUSD:  res.AverageUSD,
			FixedUSD:    c.Spec.FixedPriceUSD,
			QuantityMT:  c.Spec.QuantityMT,
			Methodology: contracts.MethodologyMtmProjection,
			InputsHash:  inputsHash,
		},
	}, nil
}

// Realized computes the locked settlement outcome of a contract whose
// averaging window has fully published. The snapshot is dated on the
// settlement date, not the pipeline's as-of date, so the locked row is
// the same no matter which run produces it.
func (e *Engine) Realized(ctx context.Context, c *contracts.Contract, inputsHash string) (Outcome, error) {
	if c.SettlementDate == nil {
		return Outcome{Reason: contracts.FlagMissingSettlementDate}, nil
	}

	res, err := e.valuation.FinalSettlement(ctx, c.Spec, *c.SettlementDate)
	if err != nil {
		return Outcome{}, fmt.Errorf("final settlement %s: %w", c.ID, err)
	}
	if !res.Computable {
		return Outcome{Reason: res.Reason}, nil
	}

	return Outcome{
		Computable: true,
		Snapshot: &contracts.ContractPnlSnapshot{
			ContractID:  c.ID,
			AsOfDate:    contracts.Day(*c.SettlementDate),
			Currency:    c.Spec.Currency,
			Kind:        contracts.PnlRealized,
			PnlUSD:      res.ValueUSD,
			AverageUSD:  res.AverageUSD,
			FixedUSD:    c.Spec.FixedPriceUSD,
			QuantityMT:  c.Spec.QuantityMT,
			Methodology: contracts.MethodologyRealizedLocked,
			InputsHash:  inputsHash,
		},
	}, nil
}
