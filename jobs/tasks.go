package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskAgingRefresh rebuilds the agent aging snapshot.
	TaskAgingRefresh = "aging:refresh"
	// TaskAgingAutoBlock blocks agents with overdue collection balances.
	TaskAgingAutoBlock = "aging:autoblock"
	// TaskLedgerIntegrity recomputes account balances from posted lines.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskRevenueBackfill posts missing revenue entries for delivered orders.
	TaskRevenueBackfill = "ledger:backfill_revenue"
)

// RevenueBackfillPayload bounds one backfill run.
type RevenueBackfillPayload struct {
	Limit int `json:"limit"`
}

// NewAgingRefreshTask constructs the aging refresh task.
func NewAgingRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskAgingRefresh, nil)
}

// NewAgingAutoBlockTask constructs the auto-block sweep task.
func NewAgingAutoBlockTask() *asynq.Task {
	return asynq.NewTask(TaskAgingAutoBlock, nil)
}

// NewLedgerIntegrityTask constructs the balance integrity task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// NewRevenueBackfillTask constructs a backfill task.
func NewRevenueBackfillTask(payload RevenueBackfillPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRevenueBackfill, data), nil
}
