package riskflags

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
)

func day(s string) time.Time {
	d, err := time.Parse(contracts.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

func activeContract(settlement *time.Time) *contracts.Contract {
	return &contracts.Contract{
		ID:             "HC-2026-0042",
		Status:         contracts.ContractActive,
		SettlementDate: settlement,
		Spec: contracts.TradeSpec{
			Symbol:        "LME_AL",
			PriceType:     "cash_settlement",
			PricingMode:   contracts.PricingAvg,
			QuantityMT:    500,
			FixedPriceUSD: 2000,
			FixedSide:     contracts.FixedBuy,
			AvgStart:      day("2026-01-10"),
			AvgEnd:        day("2026-01-20"),
			Currency:      "USD",
		},
	}
}

func flagTypes(flags []*contracts.RiskFlag) []contracts.RiskFlagType {
	types := make([]contracts.RiskFlagType, 0, len(flags))
	for _, f := range flags {
		types = append(types, f.FlagType)
	}
	return types
}

func TestEvaluateHealthyContract(t *testing.T) {
	settlement := day("2026-02-05")
	engine := NewEngine(3)

	flags := engine.Evaluate(Input{
		Contract:        activeContract(&settlement),
		AsOf:            day("2026-01-16"),
		MtmAvailable:    true,
		LatestPublished: day("2026-01-15"),
		HasPublished:    true,
	}, "hash")

	assert.Empty(t, flags)
}

func TestEvaluateSettlementOverdue(t *testing.T) {
	settlement := day("2026-01-10")
	engine := NewEngine(3)

	t.Run("recent overdue is a warning", func(t *testing.T) {
		flags := engine.Evaluate(Input{
			Contract:        activeContract(&settlement),
			AsOf:            day("2026-01-12"),
			MtmAvailable:    true,
			LatestPublished: day("2026-01-11"),
			HasPublished:    true,
		}, "hash")

		require.Len(t, flags, 1)
		assert.Equal(t, contracts.RiskSettlementOverdue, flags[0].FlagType)
		assert.Equal(t, contracts.SeverityWarning, flags[0].Severity)
	})

	t.Run("long overdue escalates to critical", func(t *testing.T) {
		flags := engine.Evaluate(Input{
			Contract:        activeContract(&settlement),
			AsOf:            day("2026-01-20"),
			MtmAvailable:    true,
			LatestPublished: day("2026-01-19"),
			HasPublished:    true,
		}, "hash")

		require.Len(t, flags, 1)
		assert.Equal(t, contracts.SeverityCritical, flags[0].Severity)
	})

	t.Run("settled contracts are not flagged", func(t *testing.T) {
		c := activeContract(&settlement)
		c.Status = contracts.ContractSettled

		flags := engine.Evaluate(Input{
			Contract:        c,
			AsOf:            day("2026-01-20"),
			MtmAvailable:    true,
			LatestPublished: day("2026-01-19"),
			HasPublished:    true,
		}, "hash")

		assert.Empty(t, flags)
	})
}

func TestEvaluateValuationUnavailable(t *testing.T) {
	settlement := day("2026-02-05")
	engine := NewEngine(3)

	flags := engine.Evaluate(Input{
		Contract:        activeContract(&settlement),
		AsOf:            day("2026-01-16"),
		MtmAvailable:    false,
		LatestPublished: day("2026-01-15"),
		HasPublished:    true,
	}, "hash")

	assert.Contains(t, flagTypes(flags), contracts.RiskValuationUnavailable)
}

func TestEvaluateValuationUnavailableBeforeWindow(t *testing.T) {
	// No valuation is expected before the averaging window opens
	settlement := day("2026-02-05")
	engine := NewEngine(3)

	flags := engine.Evaluate(Input{
		Contract:        activeContract(&settlement),
		AsOf:            day("2026-01-05"),
		MtmAvailable:    false,
		LatestPublished: day("2026-01-04"),
		HasPublished:    true,
	}, "hash")

	assert.NotContains(t, flagTypes(flags), contracts.RiskValuationUnavailable)
}

func TestEvaluateStaleMarketData(t *testing.T) {
	settlement := day("2026-02-05")
	engine := NewEngine(3)

	t.Run("within staleness budget", func(t *testing.T) {
		flags := engine.Evaluate(Input{
			Contract:        activeContract(&settlement),
			AsOf:            day("2026-01-16"),
			MtmAvailable:    true,
			LatestPublished: day("2026-01-13"),
			HasPublished:    true,
		}, "hash")

		assert.NotContains(t, flagTypes(flags), contracts.RiskStaleMarketData)
	})

	t.Run("beyond staleness budget", func(t *testing.T) {
		flags := engine.Evaluate(Input{
			Contract:        activeContract(&settlement),
			AsOf:            day("2026-01-16"),
			MtmAvailable:    true,
			LatestPublished: day("2026-01-10"),
			HasPublished:    true,
		}, "hash")

		require.Len(t, flags, 1)
		assert.Equal(t, contracts.RiskStaleMarketData, flags[0].FlagType)
		assert.Equal(t, contracts.SeverityWarning, flags[0].Severity)
	})

	t.Run("no publications at all", func(t *testing.T) {
		flags := engine.Evaluate(Input{
			Contract:     activeContract(&settlement),
			AsOf:         day("2026-01-16"),
			MtmAvailable: true,
			HasPublished: false,
		}, "hash")

		require.Len(t, flags, 1)
		assert.Equal(t, contracts.RiskStaleMarketData, flags[0].FlagType)
		assert.Equal(t, contracts.SeverityCritical, flags[0].Severity)
	})
}
