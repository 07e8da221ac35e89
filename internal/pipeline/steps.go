package pipeline

import (
	"context"
	"fmt"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/cashflow"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/exports"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/pnl"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/riskflags"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/valuation"
)

// Series identifies the daily price series the pipeline values against
type Series struct {
	Symbol    string
	PriceType string
}

// Handlers bundles everything the step handlers need
type Handlers struct {
	Series    Series
	Feed      contracts.PriceFeed
	Valuation *valuation.Engine
	Pnl       *pnl.Engine
	Cashflow  *cashflow.Engine
	Risk      *riskflags.Engine

	MtmStore      contracts.MtmSnapshotStore
	PnlStore      contracts.PnlSnapshotStore
	CashflowStore contracts.CashflowStore
	RiskStore     contracts.RiskFlagStore

	Exports *exports.Writer
}

// All returns the step handlers in no particular order; the
// orchestrator indexes them by name.
func (h *Handlers) All() []StepHandler {
	return []StepHandler{
		&marketResolveStep{h},
		&mtmStep{h},
		&pnlStep{h},
		&cashflowStep{h},
		&riskFlagsStep{h},
		&exportsStep{h},
	}
}

// marketResolveStep pins down how current the price series is. Later
// steps and the risk engine judge staleness against this.
type marketResolveStep struct{ deps *Handlers }

func (s *marketResolveStep) Name() contracts.StepName { return contracts.StepMarketSnapshotResolve }
func (s *marketResolveStep) Enabled(*Execution) bool  { return true }

func (s *marketResolveStep) Run(ctx context.Context, exec *Execution) (map[string]interface{}, error) {
	latest, ok, err := s.deps.Feed.LatestPublishedDate(ctx, s.deps.Series.Symbol, s.deps.Series.PriceType)
	if err != nil {
		return nil, fmt.Errorf("resolve market snapshot: %w", err)
	}

	exec.LatestPublished = latest
	exec.HasPublished = ok
	exec.MarketResolved = true

	artifacts := map[string]interface{}{
		"symbol":        s.deps.Series.Symbol,
		"price_type":    s.deps.Series.PriceType,
		"has_published": ok,
	}
	if ok {
		artifacts["latest_published"] = latest.Format(contracts.DateOnly)
	}
	return artifacts, nil
}

// resolveMarket rehydrates the market view when a resumed run skipped
// over an already-done market_snapshot_resolve step
func resolveMarket(ctx context.Context, deps *Handlers, exec *Execution) error {
	if exec.MarketResolved {
		return nil
	}
	latest, ok, err := deps.Feed.LatestPublishedDate(ctx, deps.Series.Symbol, deps.Series.PriceType)
	if err != nil {
		return err
	}
	exec.LatestPublished = latest
	exec.HasPublished = ok
	exec.MarketResolved = true
	return nil
}

// mtmStep values every active contract and persists the computable ones
type mtmStep struct{ deps *Handlers }

func (s *mtmStep) Name() contracts.StepName { return contracts.StepMtmSnapshot }
func (s *mtmStep) Enabled(*Execution) bool  { return true }

func (s *mtmStep) Run(ctx context.Context, exec *Execution) (map[string]interface{}, error) {
	computed, inserted, skipped := 0, 0, 0

	for _, c := range exec.Plan.Active {
		res, err := s.deps.Valuation.MarkToMarket(ctx, c.Spec, exec.Plan.AsOfDate)
		if err != nil {
			return nil, fmt.Errorf("mtm %s: %w", c.ID, err)
		}
		if !res.Computable {
			skipped++
			continue
		}

		snap := &contracts.ContractMtmSnapshot{
			ContractID:     c.ID,
			AsOfDate:       exec.Plan.AsOfDate,
			Currency:       c.Spec.Currency,
			AverageUSD:     res.AverageUSD,
			FixedUSD:       c.Spec.FixedPriceUSD,
			QuantityMT:     c.Spec.QuantityMT,
			MtmValueUSD:    res.ValueUSD,
			WindowStart:    res.WindowStart,
			WindowEnd:      res.WindowEnd,
			PricedThrough:  res.PricedThrough,
			DaysUsed:       res.DaysUsed,
			WindowComplete: res.WindowComplete,
			Methodology:    contracts.MethodologyAvgMtm,
			InputsHash:     exec.Plan.InputsHash,
		}
		wrote, err := s.deps.MtmStore.Insert(ctx, snap)
		if err != nil {
			return nil, fmt.Errorf("persist mtm %s: %w", c.ID, err)
		}
		if wrote {
			inserted++
		}
		computed++
		exec.Mtm[c.ID] = snap
	}

	return map[string]interface{}{
		"contracts":      len(exec.Plan.Active),
		"computed":       computed,
		"inserted":       inserted,
		"not_computable": skipped,
	}, nil
}

// pnlStep writes unrealized rows for active contracts and, exactly
// once per contract, the realized row for settled ones
type pnlStep struct{ deps *Handlers }

func (s *pnlStep) Name() contracts.StepName { return contracts.StepPnlSnapshot }
func (s *pnlStep) Enabled(*Execution) bool  { return true }

func (s *pnlStep) Run(ctx context.Context, exec *Execution) (map[string]interface{}, error) {
	unrealized, realized, skipped := 0, 0, 0

	for _, c := range exec.Plan.Active {
		out, err := s.deps.Pnl.Unrealized(ctx, c, exec.Plan.AsOfDate, exec.Plan.InputsHash)
		if err != nil {
			return nil, fmt.Errorf("unrealized pnl %s: %w", c.ID, err)
		}
		if !out.Computable {
			skipped++
			continue
		}

		// An existing row for this date wins: unrealized PnL is a
		// point-in-time fact that must not silently change.
		if _, err := s.deps.PnlStore.Insert(ctx, out.Snapshot); err != nil {
			return nil, fmt.Errorf("persist unrealized pnl %s: %w", c.ID, err)
		}
		exec.Unrealized[c.ID] = out.Snapshot
		unrealized++
	}

	for _, c := range exec.Plan.Settled {
		locked, err := s.deps.PnlStore.HasRealized(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("realized lookup %s: %w", c.ID, err)
		}
		if locked {
			if c.SettlementDate != nil {
				existing, err := s.deps.PnlStore.Get(ctx, c.ID, *c.SettlementDate, c.Spec.Currency)
				if err != nil {
					return nil, fmt.Errorf("load realized pnl %s: %w", c.ID, err)
				}
				if existing != nil && existing.Kind == contracts.PnlRealized {
					exec.Realized[c.ID] = existing
				}
			}
			continue
		}

		out, err := s.deps.Pnl.Realized(ctx, c, exec.Plan.InputsHash)
		if err != nil {
			return nil, fmt.Errorf("realized pnl %s: %w", c.ID, err)
		}
		if !out.Computable {
			skipped++
			continue
		}
		if _, err := s.deps.PnlStore.Insert(ctx, out.Snapshot); err != nil {
			return nil, fmt.Errorf("persist realized pnl %s: %w", c.ID, err)
		}
		exec.Realized[c.ID] = out.Snapshot
		realized++
	}

	return map[string]interface{}{
		"unrealized":     unrealized,
		"realized":       realized,
		"not_computable": skipped,
	}, nil
}

// cashflowStep assembles the daily baseline from the earlier steps'
// outputs, degrading missing data to quality flags
type cashflowStep struct{ deps *Handlers }

func (s *cashflowStep) Name() contracts.StepName { return contracts.StepCashflowBaseline }
func (s *cashflowStep) Enabled(*Execution) bool  { return true }

func (s *cashflowStep) Run(ctx context.Context, exec *Execution) (map[string]interface{}, error) {
	flagged := 0

	for _, c := range exec.Plan.Contracts() {
		mtm, err := lookupMtm(ctx, s.deps, exec, c)
		if err != nil {
			return nil, err
		}
		unreal, realized, err := s.lookupPnl(ctx, exec, c)
		if err != nil {
			return nil, err
		}

		item := s.deps.Cashflow.Build(c, exec.Plan.AsOfDate, mtm, unreal, realized, exec.Plan.InputsHash)
		if _, err := s.deps.CashflowStore.Insert(ctx, item); err != nil {
			return nil, fmt.Errorf("persist cashflow item %s: %w", c.ID, err)
		}
		exec.Baseline = append(exec.Baseline, item)
		if item.DataIncomplete {
			flagged++
		}
	}

	return map[string]interface{}{
		"items":   len(exec.Baseline),
		"flagged": flagged,
	}, nil
}

// lookupMtm prefers the in-memory snapshot from this execution and
// falls back to storage, which a resumed run relies on when the
// mtm step completed in an earlier attempt
func lookupMtm(ctx context.Context, deps *Handlers, exec *Execution, c *contracts.Contract) (*contracts.ContractMtmSnapshot, error) {
	if snap, ok := exec.Mtm[c.ID]; ok {
		return snap, nil
	}
	snap, err := deps.MtmStore.Get(ctx, c.ID, exec.Plan.AsOfDate, c.Spec.Currency)
	if err != nil {
		return nil, fmt.Errorf("load mtm %s: %w", c.ID, err)
	}
	if snap != nil {
		exec.Mtm[c.ID] = snap
	}
	return snap, nil
}

func (s *cashflowStep) lookupPnl(ctx context.Context, exec *Execution, c *contracts.Contract) (unreal, realized *contracts.ContractPnlSnapshot, err error) {
	unreal = exec.Unrealized[c.ID]
	realized = exec.Realized[c.ID]

	if unreal == nil && c.Status == contracts.ContractActive {
		snap, err := s.deps.PnlStore.Get(ctx, c.ID, exec.Plan.AsOfDate, c.Spec.Currency)
		if err != nil {
			return nil, nil, fmt.Errorf("load pnl %s: %w", c.ID, err)
		}
		if snap != nil && snap.Kind == contracts.PnlUnrealized {
			unreal = snap
			exec.Unrealized[c.ID] = snap
		}
	}

	if realized == nil && c.SettlementDate != nil {
		snap, err := s.deps.PnlStore.Get(ctx, c.ID, *c.SettlementDate, c.Spec.Currency)
		if err != nil {
			return nil, nil, fmt.Errorf("load realized pnl %s: %w", c.ID, err)
		}
		if snap != nil && snap.Kind == contracts.PnlRealized {
			realized = snap
			exec.Realized[c.ID] = snap
		}
	}

	return unreal, realized, nil
}

// riskFlagsStep raises advisory flags for contracts needing attention
type riskFlagsStep struct{ deps *Handlers }

func (s *riskFlagsStep) Name() contracts.StepName { return contracts.StepRiskFlags }
func (s *riskFlagsStep) Enabled(*Execution) bool  { return true }

func (s *riskFlagsStep) Run(ctx context.Context, exec *Execution) (map[string]interface{}, error) {
	if err := resolveMarket(ctx, s.deps, exec); err != nil {
		return nil, fmt.Errorf("resolve market for risk flags: %w", err)
	}

	raised := 0
	for _, c := range exec.Plan.Active {
		mtm, err := lookupMtm(ctx, s.deps, exec, c)
		if err != nil {
			return nil, err
		}

		flags := s.deps.Risk.Evaluate(riskflags.Input{
			Contract:        c,
			AsOf:            exec.Plan.AsOfDate,
			MtmAvailable:    mtm != nil,
			LatestPublished: exec.LatestPublished,
			HasPublished:    exec.HasPublished,
		}, exec.Plan.InputsHash)

		for _, flag := range flags {
			if _, err := s.deps.RiskStore.Insert(ctx, flag); err != nil {
				return nil, fmt.Errorf("persist risk flag %s/%s: %w", c.ID, flag.FlagType, err)
			}
			raised++
		}
	}

	return map[string]interface{}{"raised": raised}, nil
}

// exportsStep materializes the baseline as a CSV for treasury.
// Skipped by policy when the run disables exports.
type exportsStep struct{ deps *Handlers }

func (s *exportsStep) Name() contracts.StepName { return contracts.StepExports }

func (s *exportsStep) Enabled(exec *Execution) bool { return exec.Plan.EmitExports }

func (s *exportsStep) Run(ctx context.Context, exec *Execution) (map[string]interface{}, error) {
	items := exec.Baseline
	if items == nil {
		// Resumed run: the baseline step completed in an earlier attempt
		stored, err := s.deps.CashflowStore.ListByDate(ctx, exec.Plan.AsOfDate)
		if err != nil {
			return nil, fmt.Errorf("load cashflow baseline: %w", err)
		}
		items = stored
	}

	res, err := s.deps.Exports.WriteCashflowBaseline(ctx, exec.Plan.AsOfDate, items)
	if err != nil {
		return nil, fmt.Errorf("write cashflow export: %w", err)
	}

	return map[string]interface{}{
		"path": res.Path,
		"rows": res.Rows,
	}, nil
}
