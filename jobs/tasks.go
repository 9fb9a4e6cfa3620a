package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskFXWarmup pre-loads the FX rate cache for the active currency pairs.
	TaskFXWarmup = "fx:warmup"
	// TaskSettlementIntegrity cross-checks settlement batch invariants.
	TaskSettlementIntegrity = "settlement:integrity"
)

// FXWarmupPayload selects the rate date to warm. A zero Date means today.
type FXWarmupPayload struct {
	Date time.Time `json:"date"`
}

// NewFXWarmupTask constructs an Asynq task.
func NewFXWarmupTask(payload FXWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFXWarmup, data), nil
}

// SettlementIntegrityPayload bounds the scan window. Zero values scan the
// last 7 days.
type SettlementIntegrityPayload struct {
	FromDate time.Time `json:"fromDate"`
	ToDate   time.Time `json:"toDate"`
}

// NewSettlementIntegrityTask constructs an Asynq task.
func NewSettlementIntegrityTask(payload SettlementIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSettlementIntegrity, data), nil
}
