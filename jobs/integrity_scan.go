package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/accounting/shared"
	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// IntegrityScanJob verifies that every posted entry set balances per
// period. An imbalance is reported, never repaired.
type IntegrityScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIntegrityScanJob wires dependencies for the scan handler.
func NewIntegrityScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{Pool: pool, Logger: logger, Metrics: metrics}
}

type periodTotals struct {
	PeriodID int64
	Code     string
	Debit    float64
	Credit   float64
}

// Handle processes integrity scan tasks.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskLedgerIntegrityScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()
	totals, err := j.fetchTotals(ctx, payload.PeriodCode)
	if err != nil {
		resultErr = err
		logger.Error("load period totals", slog.Any("error", err))
		return resultErr
	}

	broken := 0
	for _, p := range totals {
		if shared.AmountsEqual(p.Debit, p.Credit) {
			continue
		}
		broken++
		j.metrics().AddImbalance(p.Code)
		logger.Error("period out of balance",
			slog.Int64("period_id", p.PeriodID),
			slog.String("period", p.Code),
			slog.Float64("debit", p.Debit),
			slog.Float64("credit", p.Credit),
			slog.Float64("difference", shared.Round2(p.Debit-p.Credit)))
	}
	if broken > 0 {
		resultErr = fmt.Errorf("integrity scan: %d period(s) out of balance", broken)
		return resultErr
	}

	logger.Info("ledger integrity verified",
		slog.Int("periods", len(totals)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *IntegrityScanJob) fetchTotals(ctx context.Context, periodCode string) ([]periodTotals, error) {
	if j.Pool == nil {
		return nil, errors.New("integrity scan: pool not configured")
	}
	query := `SELECT p.id, p.code, COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM periods p
JOIN journal_entries e ON e.period_id = p.id AND e.status='POSTED'
JOIN journal_lines l ON l.je_id = e.id
GROUP BY p.id, p.code ORDER BY p.start_date`
	args := []any{}
	if periodCode != "" {
		query = `SELECT p.id, p.code, COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM periods p
JOIN journal_entries e ON e.period_id = p.id AND e.status='POSTED'
JOIN journal_lines l ON l.je_id = e.id
WHERE p.code=$1
GROUP BY p.id, p.code ORDER BY p.start_date`
		args = append(args, periodCode)
	}
	rows, err := j.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]periodTotals, 0)
	for rows.Next() {
		var p periodTotals
		if err := rows.Scan(&p.PeriodID, &p.Code, &p.Debit, &p.Credit); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrityScan))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrityScan))
}

func (j *IntegrityScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
