package riskflags

import (
	"fmt"
	"time"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
)

// Engine evaluates per-contract risk conditions for one valuation date.
// Flags are advisory: raising them never blocks the pipeline.
type Engine struct {
	stalenessDays int
}

// NewEngine creates a risk flag engine. stalenessDays is how far the
// latest market publication may lag the valuation date before the data
// counts as stale.
func NewEngine(stalenessDays int) *Engine {
	return &Engine{stalenessDays: stalenessDays}
}

// Input is everything the engine needs to judge one contract
type Input struct {
	Contract        *contracts.Contract
	AsOf            time.Time
	MtmAvailable    bool
	LatestPublished time.Time
	HasPublished    bool
}

// Evaluate returns the flags raised for one contract, possibly none
func (e *Engine) Evaluate(in Input, inputsHash string) []*contracts.RiskFlag {
	c := in.Contract
	asOf := contracts.Day(in.AsOf)

	var flags []*contracts.RiskFlag
	raise := func(flagType contracts.RiskFlagType, severity contracts.RiskSeverity, msg string) {
		flags = append(flags, &contracts.RiskFlag{
			ContractID: c.ID,
			AsOfDate:   asOf,
			FlagType:   flagType,
			Severity:   severity,
			Message:    msg,
			InputsHash: inputsHash,
		})
	}

	// A contract past its settlement date but still marked active means
	// the back office has not confirmed the settlement.
	if c.Status == contracts.ContractActive && c.IsSettledBy(asOf) {
		overdue := int(asOf.Sub(contracts.Day(*c.SettlementDate)).Hours() / 24)
		severity := contracts.SeverityWarning
		if overdue > e.stalenessDays {
			severity = contracts.SeverityCritical
		}
		raise(contracts.RiskSettlementOverdue, severity,
			fmt.Sprintf("settlement date %s passed %d day(s) ago without confirmation",
				c.SettlementDate.Format(contracts.DateOnly), overdue))
	}

	// An open contract whose averaging window has started should be
	// valuable; if it is not, treasury is flying blind on it.
	if c.Status == contracts.ContractActive && !in.MtmAvailable &&
		!asOf.Before(contracts.Day(c.Spec.AvgStart)) {
		raise(contracts.RiskValuationUnavailable, contracts.SeverityWarning,
			"no mark-to-market value could be computed for this date")
	}

	if c.Status == contracts.ContractActive {
		if !in.HasPublished {
			raise(contracts.RiskStaleMarketData, contracts.SeverityCritical,
				fmt.Sprintf("no published prices at all for %s/%s", c.Spec.Symbol, c.Spec.PriceType))
		} else {
			lag := int(asOf.Sub(contracts.Day(in.LatestPublished)).Hours() / 24)
			if lag > e.stalenessDays {
				raise(contracts.RiskStaleMarketData, contracts.SeverityWarning,
					fmt.Sprintf("latest %s publication is %d day(s) old", c.Spec.Symbol, lag))
			}
		}
	}

	return flags
}
