package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/riskflags"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/logger"
)

// StepInfo is the caller-facing view of one step's state
type StepInfo struct {
	Name      contracts.StepName     `json:"name"`
	Status    contracts.StepStatus   `json:"status"`
	ErrorCode string                 `json:"error_code,omitempty"`
	Artifacts map[string]interface{} `json:"artifacts,omitempty"`
}

// MaterializeResult is what a persisted (or replayed) run looks like to
// the caller
type MaterializeResult struct {
	RunID        string              `json:"run_id"`
	InputsHash   string              `json:"inputs_hash"`
	Status       contracts.RunStatus `json:"status"`
	ErrorCode    string              `json:"error_code,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Steps        []StepInfo          `json:"steps"`
	Reused       bool                `json:"reused"`
}

// DryRunResult is the no-write preview of what a materialize call with
// the same inputs would produce
type DryRunResult struct {
	InputsHash string    `json:"inputs_hash"`
	AsOfDate   time.Time `json:"as_of_date"`

	ActiveContracts  []string `json:"active_contracts"`
	SettledContracts []string `json:"settled_contracts"`

	Mtm        []*contracts.ContractMtmSnapshot  `json:"mtm,omitempty"`
	Unrealized []*contracts.ContractPnlSnapshot  `json:"unrealized,omitempty"`
	Realized   []*contracts.ContractPnlSnapshot  `json:"realized,omitempty"`
	Baseline   []*contracts.CashflowBaselineItem `json:"baseline,omitempty"`
	RiskFlags  []*contracts.RiskFlag             `json:"risk_flags,omitempty"`
}

// ExecuteResult carries exactly one of the two outcomes
type ExecuteResult struct {
	DryRun *DryRunResult      `json:"dry_run,omitempty"`
	Run    *MaterializeResult `json:"run,omitempty"`
}

// Service is the entry point for pipeline execution: it plans, then
// either previews (dry run) or hands the run to the orchestrator.
type Service struct {
	planner      *Planner
	orchestrator *Orchestrator
	runs         contracts.RunStore
	deps         *Handlers
	logger       *logger.Logger
}

// NewService creates the pipeline service
func NewService(planner *Planner, orch *Orchestrator, runs contracts.RunStore, deps *Handlers, log *logger.Logger) *Service {
	return &Service{
		planner:      planner,
		orchestrator: orch,
		runs:         runs,
		deps:         deps,
		logger:       log,
	}
}

// Execute plans and runs one pipeline request. Dry-run mode returns a
// preview and never writes; materialize mode converges on the single
// run row for the request's inputs hash and drives it to a terminal
// state. A request whose run already finished returns the cached
// result with zero recomputation; a failed run is returned as-is and
// only moves again through an explicit Resume.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	plan, err := s.planner.Plan(ctx, req)
	if err != nil {
		return nil, err
	}

	if plan.Mode == contracts.ModeDryRun {
		preview, err := s.dryRun(ctx, plan)
		if err != nil {
			return nil, err
		}
		return &ExecuteResult{DryRun: preview}, nil
	}

	result, err := s.materialize(ctx, plan)
	if err != nil {
		return nil, err
	}
	return &ExecuteResult{Run: result}, nil
}

func (s *Service) materialize(ctx context.Context, plan *Plan) (*MaterializeResult, error) {
	run, created, err := s.runs.CreateOrGetRun(ctx, &contracts.PipelineRun{
		PipelineVersion: plan.PipelineVersion,
		AsOfDate:        plan.AsOfDate,
		ScopeFilters:    plan.ScopeFilters,
		Mode:            plan.Mode,
		EmitExports:     plan.EmitExports,
		InputsHash:      plan.InputsHash,
		RequestedBy:     plan.RequestedBy,
	})
	if err != nil {
		return nil, err
	}

	if !created {
		switch run.Status {
		case contracts.RunDone:
			// Full idempotent replay: nothing recomputed
			return s.runResult(ctx, run, true)
		case contracts.RunFailed:
			// Failed runs only move via explicit resume
			return s.runResult(ctx, run, true)
		case contracts.RunRunning:
			// Another caller is the single writer; report its progress
			return s.runResult(ctx, run, true)
		}
		// Queued: adopt the row and execute it
	}

	s.logger.WithFields(map[string]interface{}{
		"run_id":      run.ID,
		"inputs_hash": run.InputsHash,
		"as_of_date":  plan.AsOfDate.Format(contracts.DateOnly),
		"created":     created,
	}).Info("Materializing pipeline run")

	run, err = s.orchestrator.Execute(ctx, run, plan, false)
	if err != nil {
		return nil, err
	}
	return s.runResult(ctx, run, false)
}

// Resume re-executes a failed run from its first non-terminal step.
// Steps already done or skipped stay untouched.
func (s *Service) Resume(ctx context.Context, runID string) (*MaterializeResult, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if run.Status != contracts.RunFailed {
		return nil, fmt.Errorf("run %s is %s; only failed runs can be resumed", runID, run.Status)
	}

	plan, err := s.planner.Plan(ctx, ExecuteRequest{
		AsOfDate:        run.AsOfDate,
		PipelineVersion: run.PipelineVersion,
		ScopeFilters:    run.ScopeFilters,
		Mode:            run.Mode,
		EmitExports:     run.EmitExports,
		RequestedBy:     run.RequestedBy,
	})
	if err != nil {
		return nil, err
	}
	if plan.InputsHash != run.InputsHash {
		return nil, fmt.Errorf("replanned hash %s does not match run hash %s", plan.InputsHash, run.InputsHash)
	}

	s.logger.WithFields(map[string]interface{}{
		"run_id":      run.ID,
		"inputs_hash": run.InputsHash,
	}).Info("Resuming pipeline run")

	run, err = s.orchestrator.Execute(ctx, run, plan, true)
	if err != nil {
		return nil, err
	}
	return s.runResult(ctx, run, false)
}

// LookupByHash retrieves a previous run by its inputs hash, nil when
// no run exists for it
func (s *Service) LookupByHash(ctx context.Context, inputsHash string) (*MaterializeResult, error) {
	run, err := s.runs.GetRunByHash(ctx, inputsHash)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}
	return s.runResult(ctx, run, true)
}

// GetRun retrieves a run by id, nil when absent
func (s *Service) GetRun(ctx context.Context, runID string) (*MaterializeResult, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}
	return s.runResult(ctx, run, true)
}

func (s *Service) runResult(ctx context.Context, run *contracts.PipelineRun, reused bool) (*MaterializeResult, error) {
	steps, err := s.runs.ListSteps(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	infos := make([]StepInfo, 0, len(steps))
	for _, st := range steps {
		infos = append(infos, StepInfo{
			Name:      st.Name,
			Status:    st.Status,
			ErrorCode: st.ErrorCode,
			Artifacts: st.Artifacts,
		})
	}

	return &MaterializeResult{
		RunID:        run.ID,
		InputsHash:   run.InputsHash,
		Status:       run.Status,
		ErrorCode:    run.ErrorCode,
		ErrorMessage: run.ErrorMessage,
		Steps:        infos,
		Reused:       reused,
	}, nil
}

// dryRun previews every engine's output for the plan without touching
// run state or snapshot tables
func (s *Service) dryRun(ctx context.Context, plan *Plan) (*DryRunResult, error) {
	result := &DryRunResult{
		InputsHash: plan.InputsHash,
		AsOfDate:   plan.AsOfDate,
	}
	for _, c := range plan.Active {
		result.ActiveContracts = append(result.ActiveContracts, c.ID)
	}
	for _, c := range plan.Settled {
		result.SettledContracts = append(result.SettledContracts, c.ID)
	}

	latest, hasPublished, err := s.deps.Feed.LatestPublishedDate(ctx, s.deps.Series.Symbol, s.deps.Series.PriceType)
	if err != nil {
		return nil, fmt.Errorf("resolve market snapshot: %w", err)
	}

	mtmByContract := make(map[string]*contracts.ContractMtmSnapshot)
	unrealByContract := make(map[string]*contracts.ContractPnlSnapshot)
	realByContract := make(map[string]*contracts.ContractPnlSnapshot)

	for _, c := range plan.Active {
		res, err := s.deps.Valuation.MarkToMarket(ctx, c.Spec, plan.AsOfDate)
		if err != nil {
			return nil, fmt.Errorf("mtm %s: %w", c.ID, err)
		}
		if res.Computable {
			snap := &contracts.ContractMtmSnapshot{
				ContractID:     c.ID,
				AsOfDate:       plan.AsOfDate,
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
				InputsHash:     plan.InputsHash,
			}
			mtmByContract[c.ID] = snap
			result.Mtm = append(result.Mtm, snap)
		}

		out, err := s.deps.Pnl.Unrealized(ctx, c, plan.AsOfDate, plan.InputsHash)
		if err != nil {
			return nil, fmt.Errorf("unrealized pnl %s: %w", c.ID, err)
		}
		if out.Computable {
			unrealByContract[c.ID] = out.Snapshot
			result.Unrealized = append(result.Unrealized, out.Snapshot)
		}
	}

	for _, c := range plan.Settled {
		out, err := s.deps.Pnl.Realized(ctx, c, plan.InputsHash)
		if err != nil {
			return nil, fmt.Errorf("realized pnl %s: %w", c.ID, err)
		}
		if out.Computable {
			realByContract[c.ID] = out.Snapshot
			result.Realized = append(result.Realized, out.Snapshot)
		}
	}

	for _, c := range plan.Contracts() {
		item := s.deps.Cashflow.Build(c, plan.AsOfDate,
			mtmByContract[c.ID], unrealByContract[c.ID], realByContract[c.ID], plan.InputsHash)
		result.Baseline = append(result.Baseline, item)
	}

	for _, c := range plan.Active {
		flags := s.deps.Risk.Evaluate(riskflags.Input{
			Contract:        c,
			AsOf:            plan.AsOfDate,
			MtmAvailable:    mtmByContract[c.ID] != nil,
			LatestPublished: latest,
			HasPublished:    hasPublished,
		}, plan.InputsHash)
		result.RiskFlags = append(result.RiskFlags, flags...)
	}

	return result, nil
}
