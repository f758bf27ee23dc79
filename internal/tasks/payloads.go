package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Task types shared by producers and the worker.
const (
	TypeStagingReap = "staging:reap"
)

// StagingReapPayload names the upload session to check.
type StagingReapPayload struct {
	SessionID     string `json:"session_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewStagingReapTask schedules a reap check after delay.
func NewStagingReapTask(sessionID, correlationID string, delay time.Duration) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(StagingReapPayload{
		SessionID:     sessionID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{
		asynq.ProcessIn(delay),
		asynq.MaxRetry(3),
		asynq.TaskID("reap:" + sessionID),
	}
	return asynq.NewTask(TypeStagingReap, payload), opts, nil
}

// TypeStagingSweep is the periodic catch-all for sessions whose reap task was lost.
const TypeStagingSweep = "staging:sweep"

// NewStagingSweepTask builds the periodic sweep task.
func NewStagingSweepTask() *asynq.Task {
	return asynq.NewTask(TypeStagingSweep, nil)
}
