package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/logger"
)

// Error codes recorded on failed runs and steps
const (
	ErrCodeEngineException = "engine_exception"
	ErrCodeStepMissing     = "step_implementation_missing"
)

// maxErrorLen bounds the error text stored on runs and steps
const maxErrorLen = 500

// Execution is the in-memory state one run's steps share. Each step
// leaves its output here for later steps, so cashflow_baseline can
// consume mtm_snapshot's results without re-querying the engines.
type Execution struct {
	Run  *contracts.PipelineRun
	Plan *Plan

	// market_snapshot_resolve
	LatestPublished time.Time
	HasPublished    bool
	MarketResolved  bool

	// mtm_snapshot / pnl_snapshot, keyed by contract id
	Mtm        map[string]*contracts.ContractMtmSnapshot
	Unrealized map[string]*contracts.ContractPnlSnapshot
	Realized   map[string]*contracts.ContractPnlSnapshot

	// cashflow_baseline
	Baseline []*contracts.CashflowBaselineItem
}

func newExecution(run *contracts.PipelineRun, plan *Plan) *Execution {
	return &Execution{
		Run:        run,
		Plan:       plan,
		Mtm:        make(map[string]*contracts.ContractMtmSnapshot),
		Unrealized: make(map[string]*contracts.ContractPnlSnapshot),
		Realized:   make(map[string]*contracts.ContractPnlSnapshot),
	}
}

// StepHandler executes one named pipeline step. Handlers own their
// idempotent writes; the orchestrator owns state transitions.
type StepHandler interface {
	Name() contracts.StepName

	// Enabled reports whether the step should run at all for this
	// execution. A disabled step is marked skipped, not failed.
	Enabled(exec *Execution) bool

	// Run performs the step and returns its artifacts map
	Run(ctx context.Context, exec *Execution) (map[string]interface{}, error)
}

// Orchestrator drives one run through its steps in fixed order,
// persisting every state transition before emitting events about it.
type Orchestrator struct {
	runs     contracts.RunStore
	emitter  contracts.TimelineEmitter
	logger   *logger.Logger
	handlers map[contracts.StepName]StepHandler
}

// NewOrchestrator creates an orchestrator with the given step handlers
func NewOrchestrator(runs contracts.RunStore, emitter contracts.TimelineEmitter, log *logger.Logger, handlers []StepHandler) *Orchestrator {
	byName := make(map[contracts.StepName]StepHandler, len(handlers))
	for _, h := range handlers {
		byName[h.Name()] = h
	}
	return &Orchestrator{
		runs:     runs,
		emitter:  emitter,
		logger:   log,
		handlers: byName,
	}
}

// Execute walks the run's steps sequentially. The returned run carries
// the final status; an error is returned only for infrastructure
// failures, not for a run that ended in failed.
func (o *Orchestrator) Execute(ctx context.Context, run *contracts.PipelineRun, plan *Plan, resume bool) (*contracts.PipelineRun, error) {
	if err := contracts.ValidateRunTransition(run.Status, contracts.RunRunning, resume); err != nil {
		return nil, err
	}
	if err := o.runs.SetRunStatus(ctx, run.ID, contracts.RunRunning, "", ""); err != nil {
		return nil, err
	}
	run.Status = contracts.RunRunning
	run.ErrorCode, run.ErrorMessage = "", ""

	startEvent := contracts.EventRunStarted
	eventKey := fmt.Sprintf("run:%s:started", run.ID)
	if resume {
		startEvent = contracts.EventRunResumed
		eventKey = fmt.Sprintf("run:%s:resumed", run.ID)
	}
	o.emit(ctx, run, startEvent, eventKey, nil)

	if err := o.runs.EnsureSteps(ctx, run.ID, contracts.StepOrder()); err != nil {
		return nil, err
	}
	steps, err := o.runs.ListSteps(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	byName := make(map[contracts.StepName]*contracts.PipelineStep, len(steps))
	for _, s := range steps {
		byName[s.Name] = s
	}

	exec := newExecution(run, plan)

	for _, name := range contracts.StepOrder() {
		step, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("step %s missing from run %s", name, run.ID)
		}

		// Resume leaves completed work untouched
		if step.Status == contracts.StepDone || step.Status == contracts.StepSkipped {
			continue
		}

		handler, ok := o.handlers[name]
		if !ok {
			return o.failRun(ctx, run, step, ErrCodeStepMissing,
				fmt.Sprintf("no handler registered for step %s", name), resume)
		}

		if step.Status == contracts.StepPending && !handler.Enabled(exec) {
			if err := o.runs.SetStepStatus(ctx, run.ID, name, contracts.StepSkipped, "", ""); err != nil {
				return nil, err
			}
			step.Status = contracts.StepSkipped
			o.logger.WithFields(map[string]interface{}{
				"run_id": run.ID,
				"step":   string(name),
			}).Info("Step skipped by policy")
			continue
		}

		if err := contracts.ValidateStepTransition(step.Status, contracts.StepRunning, resume); err != nil {
			return nil, err
		}
		if err := o.runs.SetStepStatus(ctx, run.ID, name, contracts.StepRunning, "", ""); err != nil {
			return nil, err
		}
		step.Status = contracts.StepRunning

		o.logger.WithFields(map[string]interface{}{
			"run_id": run.ID,
			"step":   string(name),
		}).Info("Step started")
		startedAt := time.Now()

		artifacts, stepErr := handler.Run(ctx, exec)
		if stepErr != nil {
			return o.failRun(ctx, run, step, ErrCodeEngineException, stepErr.Error(), resume)
		}

		// Artifacts land before the step is marked done, so a crash
		// between the two re-runs the step instead of losing its trace
		if artifacts != nil {
			if err := o.runs.SetStepArtifacts(ctx, run.ID, name, artifacts); err != nil {
				return nil, err
			}
		}
		if err := o.runs.SetStepStatus(ctx, run.ID, name, contracts.StepDone, "", ""); err != nil {
			return nil, err
		}
		step.Status = contracts.StepDone

		o.logger.WithFields(map[string]interface{}{
			"run_id":   run.ID,
			"step":     string(name),
			"duration": time.Since(startedAt),
		}).Info("Step completed")
	}

	if err := o.runs.SetRunStatus(ctx, run.ID, contracts.RunDone, "", ""); err != nil {
		return nil, err
	}
	run.Status = contracts.RunDone
	o.emit(ctx, run, contracts.EventRunCompleted, fmt.Sprintf("run:%s:completed", run.ID), map[string]interface{}{
		"as_of_date": run.AsOfDate.Format(contracts.DateOnly),
	})

	return run, nil
}

// failRun records a step failure on both the step and the run, halting
// execution with no automatic retry
func (o *Orchestrator) failRun(ctx context.Context, run *contracts.PipelineRun, step *contracts.PipelineStep, code, msg string, resume bool) (*contracts.PipelineRun, error) {
	msg = truncateError(msg)

	if step.Status == contracts.StepPending {
		// A step can only fail from running
		if err := o.runs.SetStepStatus(ctx, run.ID, step.Name, contracts.StepRunning, "", ""); err != nil {
			return nil, err
		}
		step.Status = contracts.StepRunning
	}
	if err := o.runs.SetStepStatus(ctx, run.ID, step.Name, contracts.StepFailed, code, msg); err != nil {
		return nil, err
	}
	step.Status = contracts.StepFailed

	if err := o.runs.SetRunStatus(ctx, run.ID, contracts.RunFailed, code, msg); err != nil {
		return nil, err
	}
	run.Status = contracts.RunFailed
	run.ErrorCode, run.ErrorMessage = code, msg

	o.logger.WithFields(map[string]interface{}{
		"run_id":     run.ID,
		"step":       string(step.Name),
		"error_code": code,
		"error":      msg,
	}).Error("Run failed")

	o.emit(ctx, run, contracts.EventRunFailed, fmt.Sprintf("run:%s:failed:%s", run.ID, step.Name), map[string]interface{}{
		"step":       string(step.Name),
		"error_code": code,
	})

	return run, nil
}

// emit records a lifecycle event after its state change is durable.
// Event recording is best-effort: the audit trail must never take a
// finished run down with it.
func (o *Orchestrator) emit(ctx context.Context, run *contracts.PipelineRun, eventType, idempotencyKey string, payload map[string]interface{}) {
	event := contracts.TimelineEvent{
		EventType:      eventType,
		Subject:        fmt.Sprintf("pipeline_run:%s", run.ID),
		CorrelationID:  run.InputsHash,
		IdempotencyKey: idempotencyKey,
		Payload:        payload,
		OccurredAt:     time.Now().UTC(),
	}
	if err := o.emitter.Emit(ctx, event); err != nil {
		o.logger.WithError(err).WithField("event_type", eventType).Warn("Failed to emit timeline event")
	}
}

func truncateError(msg string) string {
	if len(msg) <= maxErrorLen {
		return msg
	}
	return msg[:maxErrorLen]
}
