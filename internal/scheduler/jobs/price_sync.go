package jobs

import (
	"context"
	"fmt"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/marketdata"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/logger"
)

// PriceSyncJob pulls newly published settlement prices into the local
// series every weekday evening, after the exchange publishes.
type PriceSyncJob struct {
	syncer *marketdata.Syncer
	logger *logger.Logger
}

// NewPriceSyncJob creates a new price sync job
func NewPriceSyncJob(syncer *marketdata.Syncer, log *logger.Logger) *PriceSyncJob {
	return &PriceSyncJob{
		syncer: syncer,
		logger: log,
	}
}

// Name returns the job name
func (j *PriceSyncJob) Name() string {
	return "price_sync"
}

// Schedule returns the cron schedule (weekdays at 8 PM UTC, after the
// LME publishes its daily settlements)
func (j *PriceSyncJob) Schedule() string {
	return "0 0 20 * * MON-FRI"
}

// Run executes the price sync
func (j *PriceSyncJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled settlement price sync")

	inserted, err := j.syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync settlement prices: %w", err)
	}

	j.logger.WithField("inserted", inserted).Info("Scheduled price sync finished")
	return nil
}
