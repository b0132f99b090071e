package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/accounting/balances"
	"github.com/ledgerline/ledgerline/internal/app"
	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
	"github.com/ledgerline/ledgerline/internal/platform/cache"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	metrics := jobmetrics.NewMetrics(nil)

	balancesRepo := balances.NewRepository(pool)
	engine := balances.NewEngine(balancesRepo, checkpoints)

	integrityJob := jobs.NewIntegrityScanJob(pool, logger, metrics)
	warmupJob := jobs.NewCheckpointWarmupJob(engine, balancesRepo, logger, metrics)
	notifyJob := jobs.NewDocumentNotifyJob(logger, metrics)

	integrityTask, err := jobs.NewIntegrityScanTask("")
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewCheckpointWarmupTask("")
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrityScan, Handler: integrityJob.Handle},
			{Type: jobs.TaskCheckpointWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskDocumentNotify, Handler: notifyJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 1 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
