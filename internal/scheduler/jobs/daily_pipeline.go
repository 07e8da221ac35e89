package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/pipeline"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/config"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/logger"
)

// DailyPipelineJob materializes the snapshot pipeline for today every
// morning. Thanks to the inputs hash, a second firing on the same day
// converges on the run that already exists instead of recomputing.
type DailyPipelineJob struct {
	service *pipeline.Service
	config  *config.Config
	logger  *logger.Logger
}

// NewDailyPipelineJob creates a new daily pipeline job
func NewDailyPipelineJob(svc *pipeline.Service, cfg *config.Config, log *logger.Logger) *DailyPipelineJob {
	return &DailyPipelineJob{
		service: svc,
		config:  cfg,
		logger:  log,
	}
}

// Name returns the job name
func (j *DailyPipelineJob) Name() string {
	return "daily_pipeline"
}

// Schedule returns the cron schedule (daily at the configured hour)
func (j *DailyPipelineJob) Schedule() string {
	return fmt.Sprintf("0 0 %d * * *", j.config.Pipeline.RunHour)
}

// Run executes today's pipeline run
func (j *DailyPipelineJob) Run(ctx context.Context) error {
	asOf := contracts.Day(time.Now().UTC())
	j.logger.WithField("as_of_date", asOf.Format(contracts.DateOnly)).Info("Starting scheduled pipeline run")

	res, err := j.service.Execute(ctx, pipeline.ExecuteRequest{
		AsOfDate:        asOf,
		PipelineVersion: j.config.Pipeline.Version,
		Mode:            contracts.ModeMaterialize,
		EmitExports:     true,
		RequestedBy:     "scheduler",
	})
	if err != nil {
		return fmt.Errorf("execute pipeline: %w", err)
	}

	run := res.Run
	j.logger.WithFields(map[string]interface{}{
		"run_id": run.RunID,
		"status": string(run.Status),
		"reused": run.Reused,
	}).Info("Scheduled pipeline run finished")

	if run.Status == contracts.RunFailed {
		return fmt.Errorf("pipeline run %s failed: %s", run.RunID, run.ErrorMessage)
	}
	return nil
}
