package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
)

// Repository implements contracts.RunStore over Postgres.
// Run identity comes from the unique index on inputs_hash: a colliding
// insert means another caller created the run first, and we adopt
// their row instead of erroring.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new run repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const runColumns = `
	id, pipeline_version, as_of_date, scope_filters, mode, emit_exports,
	inputs_hash, status, error_code, error_message, requested_by,
	created_at, started_at, finished_at
`

// CreateOrGetRun inserts a queued run, or returns the run another
// caller already created for the same inputs hash. The bool reports
// whether this call created the row.
func (r *Repository) CreateOrGetRun(ctx context.Context, run *contracts.PipelineRun) (*contracts.PipelineRun, bool, error) {
	query := `
		INSERT INTO pipeline.runs (
			pipeline_version, as_of_date, scope_filters, mode, emit_exports,
			inputs_hash, status, requested_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (inputs_hash) DO NOTHING
		RETURNING id, created_at
	`

	created := *run
	created.Status = contracts.RunQueued
	err := r.pool.QueryRow(ctx, query,
		run.PipelineVersion, contracts.Day(run.AsOfDate), run.ScopeFilters, run.Mode, run.EmitExports,
		run.InputsHash, contracts.RunQueued, run.RequestedBy,
	).Scan(&created.ID, &created.CreatedAt)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("create run failed: %w", err)
	}

	// Lost the race: the hash already has a run
	existing, err := r.GetRunByHash(ctx, run.InputsHash)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("run for hash %s vanished after conflicting insert", run.InputsHash)
	}
	return existing, false, nil
}

// GetRun retrieves one run by id
func (r *Repository) GetRun(ctx context.Context, id string) (*contracts.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline.runs WHERE id = $1`
	return r.scanRun(r.pool.QueryRow(ctx, query, id))
}

// GetRunByHash retrieves the run for one inputs hash, nil when absent
func (r *Repository) GetRunByHash(ctx context.Context, inputsHash string) (*contracts.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline.runs WHERE inputs_hash = $1`
	return r.scanRun(r.pool.QueryRow(ctx, query, inputsHash))
}

func (r *Repository) scanRun(row pgx.Row) (*contracts.PipelineRun, error) {
	var run contracts.PipelineRun
	err := row.Scan(
		&run.ID, &run.PipelineVersion, &run.AsOfDate, &run.ScopeFilters, &run.Mode, &run.EmitExports,
		&run.InputsHash, &run.Status, &run.ErrorCode, &run.ErrorMessage, &run.RequestedBy,
		&run.CreatedAt, &run.StartedAt, &run.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan run failed: %w", err)
	}
	return &run, nil
}

// SetRunStatus transitions a run, maintaining its lifecycle timestamps
func (r *Repository) SetRunStatus(ctx context.Context, id string, status contracts.RunStatus, errorCode, errorMessage string) error {
	query := `
		UPDATE pipeline.runs
		SET status = $2,
			error_code = $3,
			error_message = $4,
			started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN now() ELSE started_at END,
			finished_at = CASE WHEN $2 IN ('done', 'failed') THEN now() ELSE NULL END
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id, status, errorCode, errorMessage)
	if err != nil {
		return fmt.Errorf("set run status failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// EnsureSteps inserts a pending row per step, leaving existing rows
// untouched so a resumed run sees its prior progress
func (r *Repository) EnsureSteps(ctx context.Context, runID string, names []contracts.StepName) error {
	query := `
		INSERT INTO pipeline.steps (run_id, step_name, step_index, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, step_name) DO NOTHING
	`

	for i, name := range names {
		if _, err := r.pool.Exec(ctx, query, runID, name, i, contracts.StepPending); err != nil {
			return fmt.Errorf("ensure step %s failed: %w", name, err)
		}
	}
	return nil
}

// ListSteps retrieves a run's steps in execution order
func (r *Repository) ListSteps(ctx context.Context, runID string) ([]*contracts.PipelineStep, error) {
	query := `
		SELECT id, run_id, step_name, status, error_code, error_message, artifacts, started_at, finished_at
		FROM pipeline.steps
		WHERE run_id = $1
		ORDER BY step_index ASC
	`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps failed: %w", err)
	}
	defer rows.Close()

	var steps []*contracts.PipelineStep
	for rows.Next() {
		var s contracts.PipelineStep
		if err := rows.Scan(
			&s.ID, &s.RunID, &s.Name, &s.Status, &s.ErrorCode, &s.ErrorMessage,
			&s.Artifacts, &s.StartedAt, &s.FinishedAt,
		); err != nil {
			return nil, err
		}
		steps = append(steps, &s)
	}
	return steps, rows.Err()
}

// SetStepStatus transitions one step of a run
func (r *Repository) SetStepStatus(ctx context.Context, runID string, name contracts.StepName, status contracts.StepStatus, errorCode, errorMessage string) error {
	query := `
		UPDATE pipeline.steps
		SET status = $3,
			error_code = $4,
			error_message = $5,
			started_at = CASE WHEN $3 = 'running' AND started_at IS NULL THEN now() ELSE started_at END,
			finished_at = CASE WHEN $3 IN ('done', 'failed', 'skipped') THEN now() ELSE NULL END
		WHERE run_id = $1 AND step_name = $2
	`

	tag, err := r.pool.Exec(ctx, query, runID, name, status, errorCode, errorMessage)
	if err != nil {
		return fmt.Errorf("set step status failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("step %s of run %s not found", name, runID)
	}
	return nil
}

// SetStepArtifacts replaces the artifacts map of one step
func (r *Repository) SetStepArtifacts(ctx context.Context, runID string, name contracts.StepName, artifacts map[string]interface{}) error {
	query := `
		UPDATE pipeline.steps
		SET artifacts = $3
		WHERE run_id = $1 AND step_name = $2
	`

	tag, err := r.pool.Exec(ctx, query, runID, name, artifacts)
	if err != nil {
		return fmt.Errorf("set step artifacts failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("step %s of run %s not found", name, runID)
	}
	return nil
}
