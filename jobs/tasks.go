package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrityScan verifies that posted entries balance per period.
	TaskLedgerIntegrityScan = "ledger:integrity_scan"
	// TaskCheckpointWarmup precomputes month-end balance checkpoints.
	TaskCheckpointWarmup = "ledger:checkpoint_warmup"
	// TaskDocumentNotify fans a document-posted event out to listeners.
	TaskDocumentNotify = "ledger:document_notify"
)

// IntegrityScanPayload scopes the integrity scan. An empty PeriodCode
// scans every period with posted entries.
type IntegrityScanPayload struct {
	PeriodCode string `json:"period_code,omitempty"`
}

// NewIntegrityScanTask constructs an integrity scan task.
func NewIntegrityScanTask(periodCode string) (*asynq.Task, error) {
	data, err := json.Marshal(IntegrityScanPayload{PeriodCode: periodCode})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityScan, data), nil
}

// CheckpointWarmupPayload scopes the checkpoint warmup run.
type CheckpointWarmupPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// NewCheckpointWarmupTask constructs a checkpoint warmup task. asOf may
// be empty to warm up to the prior month end.
func NewCheckpointWarmupTask(asOf string) (*asynq.Task, error) {
	data, err := json.Marshal(CheckpointWarmupPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCheckpointWarmup, data), nil
}

// DocumentNotifyPayload mirrors integration.DocumentPostedEvent on the wire.
type DocumentNotifyPayload struct {
	EntryID      int64   `json:"entry_id"`
	EntryNumber  string  `json:"entry_number"`
	DocumentType string  `json:"document_type"`
	DocumentID   int64   `json:"document_id"`
	Amount       float64 `json:"amount"`
	Date         string  `json:"date"`
}

// NewDocumentNotifyTask constructs a document notification task.
func NewDocumentNotifyTask(payload DocumentNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDocumentNotify, data), nil
}
