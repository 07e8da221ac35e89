package cashflow

import (
	"time"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
)

// Engine assembles the daily cashflow baseline: one item per contract
// with the best available numbers. Missing upstream data degrades to
// quality flags on the item, it never produces an error: treasury
// needs the row either way.
type Engine struct{}

// NewEngine creates a cashflow baseline engine
func NewEngine() *Engine {
	return &Engine{}
}

// Build produces the baseline item for one contract. mtm and the PnL
// snapshots may be nil when the corresponding step could not compute
// them; the item records that as flags instead of failing.
func (e *Engine) Build(
	c *contracts.Contract,
	asOf time.Time,
	mtm *contracts.ContractMtmSnapshot,
	unrealized *contracts.ContractPnlSnapshot,
	realized *contracts.ContractPnlSnapshot,
	inputsHash string,
) *contracts.CashflowBaselineItem {
	asOf = contracts.Day(asOf)

	item := &contracts.CashflowBaselineItem{
		ContractID:     c.ID,
		AsOfDate:       asOf,
		Currency:       c.Spec.Currency,
		SettlementDate: c.SettlementDate,
		Methodology:    contracts.MethodologyAvgMtm,
		InputsHash:     inputsHash,
	}

	var flags []string

	if c.SettlementDate == nil {
		flags = append(flags, contracts.FlagMissingSettlementDate)
	}

	if mtm != nil {
		v := mtm.MtmValueUSD
		item.ProjectedUSD = &v
	} else {
		flags = append(flags, contracts.FlagMtmNotAvailable)
	}

	settled := c.IsSettledBy(asOf)
	if settled {
		if realized != nil {
			v := realized.PnlUSD
			item.FinalUSD = &v
			item.Methodology = contracts.MethodologyAvgFinal
		} else {
			flags = append(flags, contracts.FlagFinalNotAvailable)
		}
	} else if unrealized == nil {
		flags = append(flags, contracts.FlagPnlNotAvailable)
	}

	item.QualityFlags = flags
	item.DataIncomplete = len(flags) > 0
	return item
}
