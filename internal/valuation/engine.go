package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
)

// Not-computable reasons. These are outcomes, not errors: a contract
// whose averaging window has no published prices yet is in a normal
// state, and the caller decides what to do about it.
const (
	ReasonWindowNotStarted = "window_not_started"
	ReasonNoPublishedData  = "no_published_data"
	ReasonWindowIncomplete = "window_incomplete"
)

// Result is the outcome of one valuation. When Computable is false,
// Reason says why and the numeric fields are zero.
type Result struct {
	Computable     bool
	Reason         string
	AverageUSD     float64
	ValueUSD       float64
	WindowStart    time.Time
	WindowEnd      time.Time // clipped observation end actually used
	PricedThrough  time.Time // last published day included in the average
	DaysUsed       int
	WindowComplete bool
}

// Engine computes average-vs-fixed valuations. It only reads prices;
// persisting results is the caller's concern.
type Engine struct {
	feed contracts.PriceFeed
}

// NewEngine creates a valuation engine over a price feed
func NewEngine(feed contracts.PriceFeed) *Engine {
	return &Engine{feed: feed}
}

// MarkToMarket values a contract as of a date using prices published
// strictly before asOf. The observation window is the contract's
// averaging window clipped to min(window end, last published day,
// asOf-1); the realized average over that window is compared against
// the fixed price.
func (e *Engine) MarkToMarket(ctx context.Context, spec contracts.TradeSpec, asOf time.Time) (Result, error) {
	if err := spec.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid trade spec: %w", err)
	}

	asOf = contracts.Day(asOf)
	start := contracts.Day(spec.AvgStart)
	end := contracts.Day(spec.AvgEnd)

	// Only prices published before the valuation date count
	cutoff := asOf.AddDate(0, 0, -1)
	if cutoff.Before(end) {
		end = cutoff
	}

	if end.Before(start) {
		return Result{Reason: ReasonWindowNotStarted, WindowStart: start}, nil
	}

	latest, ok, err := e.feed.LatestPublishedDate(ctx, spec.Symbol, spec.PriceType)
	if err != nil {
		return Result{}, fmt.Errorf("resolve latest published date: %w", err)
	}
	if !ok || latest.Before(start) {
		return Result{Reason: ReasonNoPublishedData, WindowStart: start}, nil
	}
	if latest.Before(end) {
		end = latest
	}

	series, err := e.feed.SeriesBetween(ctx, spec.Symbol, spec.PriceType, start, end)
	if err != nil {
		return Result{}, fmt.Errorf("read settlement series: %w", err)
	}
	if len(series) == 0 {
		return Result{Reason: ReasonNoPublishedData, WindowStart: start, WindowEnd: end}, nil
	}

	sum := 0.0
	pricedThrough := series[0].Date
	for _, p := range series {
		sum += p.PriceUSD
		if p.Date.After(pricedThrough) {
			pricedThrough = p.Date
		}
	}
	avg := sum / float64(len(series))

	return Result{
		Computable:     true,
		AverageUSD:     avg,
		ValueUSD:       spec.PayoffSign() * spec.QuantityMT * (avg - spec.FixedPriceUSD),
		WindowStart:    start,
		WindowEnd:      end,
		PricedThrough:  pricedThrough,
		DaysUsed:       len(series),
		WindowComplete: !end.Before(contracts.Day(spec.AvgEnd)),
	}, nil
}

// FinalSettlement values a contract over its full averaging window.
// Unlike MarkToMarket it refuses to produce a number until the whole
// window has been published, because the result locks the contract's
// realized outcome.
func (e *Engine) FinalSettlement(ctx context.Context, spec contracts.TradeSpec, asOf time.Time) (Result, error) {
	if err := spec.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid trade spec: %w", err)
	}

	start := contracts.Day(spec.AvgStart)
	end := contracts.Day(spec.AvgEnd)

	latest, ok, err := e.feed.LatestPublishedDate(ctx, spec.Symbol, spec.PriceType)
	if err != nil {
		return Result{}, fmt.Errorf("resolve latest published date: %w", err)
	}
	if !ok || latest.Before(end) {
		return Result{Reason: ReasonWindowIncomplete, WindowStart: start, WindowEnd: end}, nil
	}

	series, err := e.feed.SeriesBetween(ctx, spec.Symbol, spec.PriceType, start, end)
	if err != nil {
		return Result{}, fmt.Errorf("read settlement series: %w", err)
	}
	if len(series) == 0 {
		return Result{Reason: ReasonNoPublishedData, WindowStart: start, WindowEnd: end}, nil
	}

	sum := 0.0
	for _, p := range series {
		sum += p.PriceUSD
	}
	avg := sum / float64(len(series))

	return Result{
		Computable:     true,
		AverageUSD:     avg,
		ValueUSD:       spec.PayoffSign() * spec.QuantityMT * (avg - spec.FixedPriceUSD),
		WindowStart:    start,
		WindowEnd:      end,
		PricedThrough:  series[len(series)-1].Date,
		DaysUsed:       len(series),
		WindowComplete: true,
	}, nil
}
