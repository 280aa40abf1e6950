package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsWarmup pre-builds the trial balance cache.
	TaskReportsWarmup = "reports:warmup"
)

// ReportsWarmupPayload scopes the warmup run. An empty AsOf means
// today.
type ReportsWarmupPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// NewReportsWarmupTask constructs the warmup task.
func NewReportsWarmupTask(asOf string) (*asynq.Task, error) {
	data, err := json.Marshal(ReportsWarmupPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, data), nil
}
