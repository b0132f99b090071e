package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/ledgerline/internal/accounting/balances"
	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
)

// CheckpointWarmupJob precomputes month-end balances for every leaf
// account so the first report of the day does not pay the scan cost.
type CheckpointWarmupJob struct {
	Engine  *balances.Engine
	Repo    balances.Repository
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewCheckpointWarmupJob wires dependencies for the warmup handler.
func NewCheckpointWarmupJob(engine *balances.Engine, repo balances.Repository, logger *slog.Logger, metrics *jobmetrics.Metrics) *CheckpointWarmupJob {
	return &CheckpointWarmupJob{
		Engine:  engine,
		Repo:    repo,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes checkpoint warmup tasks.
func (j *CheckpointWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Engine == nil || j.Repo == nil {
		return errors.New("checkpoint warmup: handler not configured")
	}
	var payload CheckpointWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskCheckpointWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	asOf := j.now()
	if payload.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", payload.AsOf)
		if err != nil {
			return asynq.SkipRetry
		}
		asOf = parsed
	}

	logger := j.logger()
	accounts, err := j.Repo.ListLeafAccounts(ctx)
	if err != nil {
		resultErr = err
		logger.Error("list leaf accounts", slog.Any("error", err))
		return resultErr
	}

	start := time.Now()
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(8)
	for _, account := range accounts {
		account := account
		group.Go(func() error {
			// BalanceAt writes the prior month-end checkpoint as a side
			// effect when the store misses.
			_, err := j.Engine.BalanceAt(groupCtx, account.ID, asOf)
			return err
		})
	}
	if err := group.Wait(); err != nil {
		resultErr = err
		logger.Error("warm balance checkpoints", slog.Any("error", err))
		return resultErr
	}

	logger.Info("balance checkpoints warmed",
		slog.Int("accounts", len(accounts)),
		slog.String("as_of", asOf.Format("2006-01-02")),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *CheckpointWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCheckpointWarmup))
	}
	return slog.Default().With(slog.String("job", TaskCheckpointWarmup))
}

func (j *CheckpointWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CheckpointWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
