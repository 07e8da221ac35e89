package pnl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/valuation"
)

type memFeed struct {
	prices map[string]float64
}

func (f *memFeed) LatestPublishedDate(ctx context.Context, symbol, priceType string) (time.Time, bool, error) {
	var latest time.Time
	for d := range f.prices {
		day, _ := time.Parse(contracts.DateOnly, d)
		if day.After(latest) {
			latest = day
		}
	}
	if latest.IsZero() {
		return time.Time{}, false, nil
	}
	return latest, true, nil
}

func (f *memFeed) PriceOn(ctx context.Context, symbol, priceType string, day time.Time) (float64, bool, error) {
	p, ok := f.prices[day.Format(contracts.DateOnly)]
	return p, ok, nil
}

func (f *memFeed) SeriesBetween(ctx context.Context, symbol, priceType string, from, to time.Time) ([]contracts.SettlementPrice, error) {
	var series []contracts.SettlementPrice
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if p, ok := f.prices[d.Format(contracts.DateOnly)]; ok {
			series = append(series, contracts.SettlementPrice{Symbol: symbol, PriceType: priceType, Date: d, PriceUSD: p})
		}
	}
	return series, nil
}

func day(s string) time.Time {
	d, err := time.Parse(contracts.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

func testContract() *contracts.Contract {
	return &contracts.Contract{
		ID:           "HC-2026-0042",
		Counterparty: "Glencore",
		Status:       contracts.ContractActive,
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

func TestUnrealized(t *testing.T) {
	feed := &memFeed{prices: map[string]float64{
		"2026-01-10": 2100,
		"2026-01-12": 2150,
		"2026-01-15": 2050,
	}}
	engine := NewEngine(valuation.NewEngine(feed))

	out, err := engine.Unrealized(context.Background(), testContract(), day("2026-01-16"), "hash-1")
	require.NoError(t, err)

	require.True(t, out.Computable)
	snap := out.Snapshot
	assert.Equal(t, contracts.PnlUnrealized, snap.Kind)
	assert.InDelta(t, 50000.0, snap.PnlUSD, 1e-9)
	assert.InDelta(t, 2100.0, snap.AverageUSD, 1e-9)
	assert.Equal(t, day("2026-01-16"), snap.AsOfDate)
	assert.Equal(t, contracts.MethodologyMtmProjection, snap.Methodology)
	assert.Equal(t, "hash-1", snap.InputsHash)
}

func TestUnrealizedNotComputable(t *testing.T) {
	engine := NewEngine(valuation.NewEngine(&memFeed{prices: map[string]float64{}}))

	out, err := engine.Unrealized(context.Background(), testContract(), day("2026-01-16"), "hash-1")
	require.NoError(t, err)
	assert.False(t, out.Computable)
	assert.Equal(t, valuation.ReasonNoPublishedData, out.Reason)
	assert.Nil(t, out.Snapshot)
}

func TestRealized(t *testing.T) {
	prices := map[string]float64{}
	for d := day("2026-01-10"); !d.After(day("2026-01-20")); d = d.AddDate(0, 0, 1) {
		prices[d.Format(contracts.DateOnly)] = 2080
	}
	engine := NewEngine(valuation.NewEngine(&memFeed{prices: prices}))

	c := testContract()
	c.Status = contracts.ContractSettled
	settlement := day("2026-02-05")
	c.SettlementDate = &settlement

	out, err := engine.Realized(context.Background(), c, "hash-2")
	require.NoError(t, err)

	require.True(t, out.Computable)
	snap := out.Snapshot
	assert.Equal(t, contracts.PnlRealized, snap.Kind)
	assert.Equal(t, settlement, snap.AsOfDate, "realized row is dated on the settlement date")
	assert.InDelta(t, 40000.0, snap.PnlUSD, 1e-9) // (2080-2000)*500
	assert.Equal(t, contracts.MethodologyRealizedLocked, snap.Methodology)
}

func TestRealizedMissingSettlementDate(t *testing.T) {
	engine := NewEngine(valuation.NewEngine(&memFeed{prices: map[string]float64{}}))

	c := testContract()
	c.Status = contracts.ContractSettled

	out, err := engine.Realized(context.Background(), c, "hash-3")
	require.NoError(t, err)
	assert.False(t, out.Computable)
	assert.Equal(t, contracts.FlagMissingSettlementDate, out.Reason)
}

func TestRealizedIncompleteWindow(t *testing.T) {
	engine := NewEngine(valuation.NewEngine(&memFeed{prices: map[string]float64{
		"2026-01-10": 2100,
	}}))

	c := testContract()
	c.Status = contracts.ContractSettled
	settlement := day("2026-02-05")
	c.SettlementDate = &settlement

	out, err := engine.Realized(context.Background(), c, "hash-4")
	require.NoError(t, err)
	assert.False(t, out.Computable)
	assert.Equal(t, valuation.ReasonWindowIncomplete, out.Reason)
}
