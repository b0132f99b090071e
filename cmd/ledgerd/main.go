package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/accounting/accounts"
	"github.com/ledgerline/ledgerline/internal/accounting/balances"
	"github.com/ledgerline/ledgerline/internal/accounting/journals"
	"github.com/ledgerline/ledgerline/internal/accounting/mappings"
	"github.com/ledgerline/ledgerline/internal/accounting/periods"
	"github.com/ledgerline/ledgerline/internal/accounting/reports"
	"github.com/ledgerline/ledgerline/internal/ap"
	"github.com/ledgerline/ledgerline/internal/app"
	"github.com/ledgerline/ledgerline/internal/ar"
	"github.com/ledgerline/ledgerline/internal/integration"
	"github.com/ledgerline/ledgerline/internal/observability"
	"github.com/ledgerline/ledgerline/internal/platform/cache"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	internalShared "github.com/ledgerline/ledgerline/internal/shared"
	"github.com/ledgerline/ledgerline/jobs"
)

// metricsPublisher feeds posting counters from journal events.
type metricsPublisher struct {
	metrics *observability.Metrics
}

func (p metricsPublisher) JournalPosted(_ context.Context, evt journals.PostedEvent) error {
	source := evt.Source
	if source == "" {
		source = "manual"
	}
	p.metrics.CountJournalPosting(source)
	return nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := db.MigrateUp(cfg.MigrationsURL, cfg.PGDSN); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied")
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var checkpoints *balances.CheckpointStore
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("redis unavailable, balance checkpoints disabled", slog.Any("error", err))
	} else {
		checkpoints = balances.NewCheckpointStore(redisClient, cfg.CheckpointTTL)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := internalShared.NewAuditLogger(pool)

	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo, auditLogger)
	accountsHandler := accounts.NewHandler(logger, accountsService)

	periodsRepo := periods.NewRepository(pool)
	periodsService := periods.NewService(periodsRepo)
	periodsHandler := periods.NewHandler(logger, periodsService)

	journalsRepo := journals.NewRepository(pool)
	journalsService := journals.NewService(journalsRepo, auditLogger, metricsPublisher{metrics: metrics}, checkpoints)
	journalsHandler := journals.NewHandler(logger, journalsService)

	mappingsRepo := mappings.NewRepository(pool)
	resolver := mappings.NewResolver(mappingsRepo, accountsService, nil)

	balancesRepo := balances.NewRepository(pool)
	engine := balances.NewEngine(balancesRepo, checkpoints)

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	hooks := integration.NewHooks(journalsService, resolver, accountsService, jobs.NewNotifyPublisher(queueClient), logger)

	capabilities := cfg.Capabilities()
	arRepo := ar.NewRepository(pool)
	arService := ar.NewService(arRepo, hooks, auditLogger, capabilities, logger)
	arHandler := ar.NewHandler(logger, arService)

	apRepo := ap.NewRepository(pool)
	apService := ap.NewService(apRepo, hooks, auditLogger, capabilities, logger)
	apHandler := ap.NewHandler(logger, apService)

	reportsService := reports.NewService(engine, accountsService, arService, apService)
	reportsHandler := reports.NewHandler(logger, reportsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AccountsHandler: accountsHandler,
		PeriodsHandler:  periodsHandler,
		JournalsHandler: journalsHandler,
		ReportsHandler:  reportsHandler,
		ARHandler:       arHandler,
		APHandler:       apHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
