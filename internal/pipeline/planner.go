package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
)

// ExecuteRequest is one pipeline invocation as the caller states it
type ExecuteRequest struct {
	AsOfDate        time.Time
	PipelineVersion string
	ScopeFilters    map[string]interface{}
	Mode            contracts.RunMode
	EmitExports     bool
	RequestedBy     string
}

// Plan is the resolved, read-only view of what a run would touch:
// the canonical hash plus the in-scope contracts split by status,
// since the engines treat active and settled contracts differently.
type Plan struct {
	InputsHash      string
	PipelineVersion string
	AsOfDate        time.Time
	ScopeFilters    map[string]interface{}
	Mode            contracts.RunMode
	EmitExports     bool
	RequestedBy     string

	Active  []*contracts.Contract
	Settled []*contracts.Contract
}

// Contracts returns all planned contracts, active first
func (p *Plan) Contracts() []*contracts.Contract {
	all := make([]*contracts.Contract, 0, len(p.Active)+len(p.Settled))
	all = append(all, p.Active...)
	all = append(all, p.Settled...)
	return all
}

// Planner resolves requests into plans without touching run state
type Planner struct {
	contracts contracts.ContractStore
}

// NewPlanner creates a run planner
func NewPlanner(store contracts.ContractStore) *Planner {
	return &Planner{contracts: store}
}

// Plan validates the request, computes its canonical hash, and
// enumerates the in-scope contracts. Never mutates storage.
func (p *Planner) Plan(ctx context.Context, req ExecuteRequest) (*Plan, error) {
	if req.AsOfDate.IsZero() {
		return nil, fmt.Errorf("as_of_date is required")
	}
	if req.PipelineVersion == "" {
		return nil, fmt.Errorf("pipeline_version is required")
	}
	if req.Mode != contracts.ModeDryRun && req.Mode != contracts.ModeMaterialize {
		return nil, fmt.Errorf("unknown run mode %q", req.Mode)
	}

	filters, err := contracts.ParseScopeFilters(req.ScopeFilters)
	if err != nil {
		return nil, fmt.Errorf("invalid scope filters: %w", err)
	}

	inputs := BuildRunInputs(req.PipelineVersion, req.AsOfDate, req.ScopeFilters, req.Mode, req.EmitExports)
	hash, err := CanonicalHash(inputs)
	if err != nil {
		return nil, err
	}

	inScope, err := p.contracts.ListInScope(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list contracts in scope: %w", err)
	}

	plan := &Plan{
		InputsHash:      hash,
		PipelineVersion: req.PipelineVersion,
		AsOfDate:        contracts.Day(req.AsOfDate),
		ScopeFilters:    req.ScopeFilters,
		Mode:            req.Mode,
		EmitExports:     req.EmitExports,
		RequestedBy:     req.RequestedBy,
	}
	for _, c := range inScope {
		switch c.Status {
		case contracts.ContractActive:
			plan.Active = append(plan.Active, c)
		case contracts.ContractSettled:
			plan.Settled = append(plan.Settled, c)
		default:
			// cancelled contracts are out of scope for valuation
		}
	}
	return plan, nil
}
