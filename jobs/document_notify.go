package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/integration"
	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
)

// NotifyPublisher implements integration.Publisher by enqueueing a
// notification task, so document posting never blocks on listeners.
type NotifyPublisher struct {
	client *Client
}

// NewNotifyPublisher wraps the queue client as an event publisher.
func NewNotifyPublisher(client *Client) *NotifyPublisher {
	return &NotifyPublisher{client: client}
}

// DocumentPosted enqueues the event for asynchronous fanout.
func (p *NotifyPublisher) DocumentPosted(ctx context.Context, evt integration.DocumentPostedEvent) error {
	if p == nil || p.client == nil {
		return nil
	}
	task, err := NewDocumentNotifyTask(DocumentNotifyPayload{
		EntryID:      evt.EntryID,
		EntryNumber:  evt.EntryNumber,
		DocumentType: evt.DocumentType,
		DocumentID:   evt.DocumentID,
		Amount:       evt.Amount,
		Date:         evt.Date.Format("2006-01-02"),
	})
	if err != nil {
		return err
	}
	_, err = p.client.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// DocumentNotifyJob consumes document-posted notifications. The current
// fanout is a structured log line; downstream consumers subscribe here.
type DocumentNotifyJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewDocumentNotifyJob wires dependencies for the notify handler.
func NewDocumentNotifyJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *DocumentNotifyJob {
	return &DocumentNotifyJob{Logger: logger, Metrics: metrics}
}

// Handle processes document notification tasks.
func (j *DocumentNotifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("document notify: handler not configured")
	}
	var payload DocumentNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskDocumentNotify)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	j.logger().Info("document posted to ledger",
		slog.String("document", payload.DocumentType),
		slog.Int64("document_id", payload.DocumentID),
		slog.Int64("entry_id", payload.EntryID),
		slog.String("entry_number", payload.EntryNumber),
		slog.Float64("amount", payload.Amount),
		slog.String("date", payload.Date))
	return resultErr
}

func (j *DocumentNotifyJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDocumentNotify))
	}
	return slog.Default().With(slog.String("job", TaskDocumentNotify))
}

func (j *DocumentNotifyJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
