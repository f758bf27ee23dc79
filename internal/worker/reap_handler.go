package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"syllabusai/internal/analysis"
	"syllabusai/internal/metrics"
	"syllabusai/internal/tasks"
)

// ReapTaskHandler consumes staging:reap and staging:sweep tasks.
type ReapTaskHandler struct {
	reaper *analysis.Reaper
	logger *slog.Logger
}

// NewReapTaskHandler creates the handler.
func NewReapTaskHandler(reaper *analysis.Reaper, logger *slog.Logger) *ReapTaskHandler {
	return &ReapTaskHandler{reaper: reaper, logger: logger}
}

// ProcessTask implements asynq.Handler for staging:reap.
func (h *ReapTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.StagingReapPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal reap payload failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.SessionID == "" {
		return fmt.Errorf("%w: empty session id", asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("session_id", payload.SessionID),
	)

	outcome, err := h.reaper.Reap(ctx, payload.SessionID)
	if errors.Is(err, analysis.ErrSessionActive) {
		metrics.ObserveReap(string(outcome))
		if isFinalAsynqAttempt(ctx) {
			log.Warn("session still active after final attempt, leaving it to the sweep")
			return nil
		}
		log.Info("session still active, retrying later")
		return err
	}
	if err != nil {
		log.Error("reap staged upload failed", slog.Any("error", err))
		return err
	}

	metrics.ObserveReap(string(outcome))
	switch outcome {
	case analysis.ReapMissing:
		log.Warn("upload session not found, skipping task")
	case analysis.ReapAbandoned:
		log.Info("staged upload abandoned")
	default:
		log.Debug("upload session already finished")
	}
	return nil
}

// ProcessSweep implements the staging:sweep task.
func (h *ReapTaskHandler) ProcessSweep(ctx context.Context, _ *asynq.Task) error {
	n, err := h.reaper.Sweep(ctx)
	if err != nil {
		h.logger.Error("sweep staged uploads failed", slog.Any("error", err))
		return err
	}
	if n > 0 {
		h.logger.Info("swept abandoned uploads", slog.Int("count", n))
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
