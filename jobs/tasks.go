package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockIntegrity re-checks the inventory bookkeeping identity.
	TaskStockIntegrity = "integrity:stock"
	// TaskLedgerIntegrity re-checks credit account bounds and sale amounts.
	TaskLedgerIntegrity = "integrity:ledger"
)

// StockIntegrityPayload bounds one stock scan.
type StockIntegrityPayload struct {
	// Limit caps the number of rows reported per run. Zero means all.
	Limit int `json:"limit"`
}

// LedgerIntegrityPayload bounds one ledger scan.
type LedgerIntegrityPayload struct {
	Limit int `json:"limit"`
}

// NewStockIntegrityTask constructs a stock scan task.
func NewStockIntegrityTask(payload StockIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockIntegrity, data), nil
}

// NewLedgerIntegrityTask constructs a ledger scan task.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}
