package contracts

import (
	"fmt"
	"time"
)

// RunMode selects between a read-only preview and a persisted run
type RunMode string

const (
	ModeDryRun      RunMode = "dry_run"
	ModeMaterialize RunMode = "materialize"
)

// RunStatus is the lifecycle status of a pipeline run
type RunStatus string

const (
	RunQueued  RunStatus = "queued"
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// IsTerminal reports whether no further transition is expected
// without an explicit resume.
func (s RunStatus) IsTerminal() bool {
	return s == RunDone || s == RunFailed
}

// StepStatus is the lifecycle status of a single pipeline step
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// IsTerminal reports whether the step needs no further work
func (s StepStatus) IsTerminal() bool {
	return s == StepDone || s == StepFailed || s == StepSkipped
}

// StepName identifies a pipeline step
type StepName string

const (
	StepMarketSnapshotResolve StepName = "market_snapshot_resolve"
	StepMtmSnapshot           StepName = "mtm_snapshot"
	StepPnlSnapshot           StepName = "pnl_snapshot"
	StepCashflowBaseline      StepName = "cashflow_baseline"
	StepRiskFlags             StepName = "risk_flags"
	StepExports               StepName = "exports"
)

// StepOrder returns all pipeline steps in execution order.
// The order is fixed: later steps consume earlier steps' output
// (cashflow_baseline reads the mtm_snapshot rows, for example).
func StepOrder() []StepName {
	return []StepName{
		StepMarketSnapshotResolve,
		StepMtmSnapshot,
		StepPnlSnapshot,
		StepCashflowBaseline,
		StepRiskFlags,
		StepExports,
	}
}

// IsValidStep checks if a step name is one of the configured steps
func IsValidStep(name string) bool {
	for _, s := range StepOrder() {
		if string(s) == name {
			return true
		}
	}
	return false
}

// PipelineRun is one orchestrated execution of the daily pipeline.
// At most one run exists per inputs hash; concurrent creators converge
// on the same row. Runs are never deleted.
type PipelineRun struct {
	ID              string                 `json:"id"`
	PipelineVersion string                 `json:"pipeline_version"`
	AsOfDate        time.Time              `json:"as_of_date"`
	ScopeFilters    map[string]interface{} `json:"scope_filters,omitempty"`
	Mode            RunMode                `json:"mode"`
	EmitExports     bool                   `json:"emit_exports"`
	InputsHash      string                 `json:"inputs_hash"`
	Status          RunStatus              `json:"status"`
	ErrorCode       string                 `json:"error_code,omitempty"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
	RequestedBy     string                 `json:"requested_by,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	StartedAt       *time.Time             `json:"started_at,omitempty"`
	FinishedAt      *time.Time             `json:"finished_at,omitempty"`
}

// PipelineStep is one step of a run. Unique per (run_id, step_name).
type PipelineStep struct {
	ID           int64                  `json:"id"`
	RunID        string                 `json:"run_id"`
	Name         StepName               `json:"step_name"`
	Status       StepStatus             `json:"status"`
	ErrorCode    string                 `json:"error_code,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Artifacts    map[string]interface{} `json:"artifacts,omitempty"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	FinishedAt   *time.Time             `json:"finished_at,omitempty"`
}

// ValidateRunTransition enforces the run state machine:
// queued → running → {done, failed}; failed → running only as an
// explicit resume, which callers signal with resume=true.
func ValidateRunTransition(from, to RunStatus, resume bool) error {
	switch {
	case from == RunQueued && to == RunRunning:
		return nil
	case from == RunRunning && (to == RunDone || to == RunFailed):
		return nil
	case from == RunFailed && to == RunRunning && resume:
		return nil
	}
	return fmt.Errorf("illegal run transition %s -> %s (resume=%t)", from, to, resume)
}

// ValidateStepTransition enforces the step state machine:
// pending → running → {done, failed}; pending → skipped (policy);
// failed → running only as an explicit resume.
func ValidateStepTransition(from, to StepStatus, resume bool) error {
	switch {
	case from == StepPending && (to == StepRunning || to == StepSkipped):
		return nil
	case from == StepRunning && (to == StepDone || to == StepFailed):
		return nil
	case from == StepFailed && to == StepRunning && resume:
		return nil
	}
	return fmt.Errorf("illegal step transition %s -> %s (resume=%t)", from, to, resume)
}
