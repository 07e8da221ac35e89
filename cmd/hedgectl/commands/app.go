package commands

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/cashflow"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/exports"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/marketdata"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/pipeline"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/pnl"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/riskflags"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/timeline"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/tradebook"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/valuation"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/config"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/database"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/httputil"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/logger"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/redis"
)

// app bundles the fully wired dependencies a CLI invocation needs.
// Every command builds one, uses it, and closes it.
type app struct {
	cfg *config.Config
	log *logger.Logger

	db    *database.DB
	redis *redis.Client

	syncer   *marketdata.Syncer
	feed     *marketdata.CachedFeed
	pipeline *pipeline.Service
	timeline *timeline.Emitter
}

// newApp loads config and wires the full dependency graph
func newApp() (*app, error) {
	// 1. Load config
	if configFile != "" {
		_ = godotenv.Load(configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 4. Connect to Redis (no-op when disabled)
	rdb, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(rdb, "hedge")

	// 5. Create HTTP client; the feed budget is shared across processes
	// so a scheduler instance and an ad-hoc CLI sync count together
	httpClient := httputil.NewWithTimeout(cfg, log, cfg.Feed.RequestTimeout).
		WithRateLimiter(redis.NewRateLimiter(rdb, "hedge"), redis.RateLimitConfig{
			Key:    "settlement_feed",
			Limit:  cfg.Feed.RatePerMinute,
			Window: time.Minute,
		})

	// 6. Market data: local store fronted by the cache, fed by the syncer
	priceStore := marketdata.NewStore(db.Pool)
	feedClient := marketdata.NewFeedClient(cfg, httpClient, log)
	cachedFeed := marketdata.NewCachedFeed(priceStore, cache)
	syncer := marketdata.NewSyncer(cfg, priceStore, feedClient, cachedFeed, log)

	// 7. Engines
	valuationEngine := valuation.NewEngine(cachedFeed)
	pnlEngine := pnl.NewEngine(valuationEngine)
	cashflowEngine := cashflow.NewEngine()
	riskEngine := riskflags.NewEngine(cfg.Pipeline.StalenessDays)

	// 8. Step handler dependencies
	deps := &pipeline.Handlers{
		Series: pipeline.Series{
			Symbol:    cfg.Feed.Symbol,
			PriceType: cfg.Feed.PriceType,
		},
		Feed:      cachedFeed,
		Valuation: valuationEngine,
		Pnl:       pnlEngine,
		Cashflow:  cashflowEngine,
		Risk:      riskEngine,

		MtmStore:      valuation.NewRepository(db.Pool),
		PnlStore:      pnl.NewRepository(db.Pool),
		CashflowStore: cashflow.NewRepository(db.Pool),
		RiskStore:     riskflags.NewRepository(db.Pool),

		Exports: exports.NewWriter(cfg.Pipeline.ExportDir, log),
	}

	// 9. Pipeline service
	runs := pipeline.NewRepository(db.Pool)
	emitter := timeline.NewEmitter(db.Pool, log)
	orch := pipeline.NewOrchestrator(runs, emitter, log, deps.All())
	planner := pipeline.NewPlanner(tradebook.NewRepository(db.Pool))
	svc := pipeline.NewService(planner, orch, runs, deps, log)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    rdb,
		syncer:   syncer,
		feed:     cachedFeed,
		pipeline: svc,
		timeline: emitter,
	}, nil
}

// Close releases the connections the app holds
func (a *app) Close() {
	_ = a.redis.Close()
	a.db.Close()
}
