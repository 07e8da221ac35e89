package contracts

import (
	"context"
	"time"
)

// Repository interfaces are defined here so engines and the
// orchestrator depend on behavior, not on pgx.

// ContractStore reads hedge contracts. Contracts are owned by trade
// capture; this core never writes them.
type ContractStore interface {
	Get(ctx context.Context, id string) (*Contract, error)
	ListInScope(ctx context.Context, filters ScopeFilters) ([]*Contract, error)
}

// PriceFeed exposes the append-only daily settlement series
type PriceFeed interface {
	// LatestPublishedDate returns the newest published day for the
	// series, or ok=false when nothing has been published at all.
	LatestPublishedDate(ctx context.Context, symbol, priceType string) (time.Time, bool, error)

	// PriceOn returns the price published for one day, ok=false when
	// that day has no publication (weekend, holiday, not yet out).
	PriceOn(ctx context.Context, symbol, priceType string, day time.Time) (float64, bool, error)

	// SeriesBetween returns all published prices in [from, to], ordered
	// by date ascending.
	SeriesBetween(ctx context.Context, symbol, priceType string, from, to time.Time) ([]SettlementPrice, error)
}

// RunStore persists pipeline runs and their steps. Only the
// orchestrator calls the mutating methods.
type RunStore interface {
	// CreateOrGetRun inserts a queued run, or returns the existing run
	// when another caller already created one for the same inputs hash.
	CreateOrGetRun(ctx context.Context, run *PipelineRun) (*PipelineRun, bool, error)
	GetRun(ctx context.Context, id string) (*PipelineRun, error)
	GetRunByHash(ctx context.Context, inputsHash string) (*PipelineRun, error)
	SetRunStatus(ctx context.Context, id string, status RunStatus, errorCode, errorMessage string) error

	// EnsureSteps inserts a pending row per configured step, leaving
	// existing rows untouched so resume sees prior progress.
	EnsureSteps(ctx context.Context, runID string, names []StepName) error
	ListSteps(ctx context.Context, runID string) ([]*PipelineStep, error)
	SetStepStatus(ctx context.Context, runID string, name StepName, status StepStatus, errorCode, errorMessage string) error
	SetStepArtifacts(ctx context.Context, runID string, name StepName, artifacts map[string]interface{}) error
}

// MtmSnapshotStore persists mark-to-market snapshots.
// Insert reports inserted=false when the natural key already exists;
// existing rows are never updated.
type MtmSnapshotStore interface {
	Insert(ctx context.Context, snap *ContractMtmSnapshot) (bool, error)
	Get(ctx context.Context, contractID string, asOf time.Time, currency string) (*ContractMtmSnapshot, error)
	ListByDate(ctx context.Context, asOf time.Time) ([]*ContractMtmSnapshot, error)
}

// PnlSnapshotStore persists PnL snapshots with the same no-overwrite policy
type PnlSnapshotStore interface {
	Insert(ctx context.Context, snap *ContractPnlSnapshot) (bool, error)
	Get(ctx context.Context, contractID string, asOf time.Time, currency string) (*ContractPnlSnapshot, error)
	// HasRealized reports whether a realized row already locks the
	// contract's outcome, regardless of date.
	HasRealized(ctx context.Context, contractID string) (bool, error)
}

// CashflowStore persists cashflow baseline items
type CashflowStore interface {
	Insert(ctx context.Context, item *CashflowBaselineItem) (bool, error)
	ListByDate(ctx context.Context, asOf time.Time) ([]*CashflowBaselineItem, error)
}

// RiskFlagStore persists raised risk flags
type RiskFlagStore interface {
	Insert(ctx context.Context, flag *RiskFlag) (bool, error)
	ListByDate(ctx context.Context, asOf time.Time) ([]*RiskFlag, error)
}

// TimelineEmitter records lifecycle events for audit visibility,
// at most once per idempotency key.
type TimelineEmitter interface {
	Emit(ctx context.Context, event TimelineEvent) error
}
