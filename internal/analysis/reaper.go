package analysis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"syllabusai/internal/errcode"
	"syllabusai/internal/notify"
	"syllabusai/internal/storage"
	"syllabusai/internal/uploads"
)

// ReapOutcome is what Reap decided for a session.
type ReapOutcome string

// Reap outcomes.
const (
	ReapMissing   ReapOutcome = "missing"
	ReapFinished  ReapOutcome = "finished"
	ReapActive    ReapOutcome = "active"
	ReapAbandoned ReapOutcome = "abandoned"
)

// ErrSessionActive is returned when a session was touched too recently to reap.
var ErrSessionActive = errors.New("upload session still active")

// Reaper removes staged files whose session never reached a terminal state.
type Reaper struct {
	sessions *uploads.Store
	stager   storage.Stager
	logger   *slog.Logger
	notifier notify.Publisher
	idle     time.Duration
	now      func() time.Time
}

// NewReaper builds a Reaper. Sessions updated less than idle ago are left alone.
func NewReaper(db *gorm.DB, stager storage.Stager, logger *slog.Logger, idle time.Duration) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		sessions: uploads.NewStore(db),
		stager:   stager,
		logger:   logger,
		idle:     idle,
		now:      time.Now,
	}
}

// WithNotifier makes the reaper tell the owner when an upload is abandoned.
func (r *Reaper) WithNotifier(p notify.Publisher) *Reaper {
	r.notifier = p
	return r
}

// Reap abandons one session. Terminal sessions get a second best-effort delete
// of their staged file in case the first one failed.
func (r *Reaper) Reap(ctx context.Context, sessionID string) (ReapOutcome, error) {
	sess, err := r.sessions.Get(ctx, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ReapMissing, nil
	}
	if err != nil {
		return "", err
	}

	log := r.logger.With(slog.String("session_id", sess.ID), slog.String("state", sess.State))

	if uploads.State(sess.State).Terminal() {
		if err := r.stager.Delete(ctx, sess.StagedKey); err != nil {
			log.Warn("delete staged file of finished session", slog.String("error", err.Error()))
		}
		return ReapFinished, nil
	}

	if r.now().Sub(sess.UpdatedAt) < r.idle {
		return ReapActive, ErrSessionActive
	}

	if err := r.stager.Delete(ctx, sess.StagedKey); err != nil {
		return "", err
	}
	_, err = r.sessions.Transition(ctx, sess.ID, uploads.Change{
		To:     uploads.Abandoned,
		Detail: map[string]any{"idle_seconds": int(r.now().Sub(sess.UpdatedAt).Seconds())},
	})
	var te *uploads.TransitionError
	if errors.As(err, &te) || errors.Is(err, uploads.ErrConflict) {
		// Finished between the read and the write.
		return ReapFinished, nil
	}
	if err != nil {
		return "", err
	}
	log.Info("abandoned staged upload")
	if r.notifier != nil {
		if err := r.notifier.Publish(ctx, sess.UserID, notify.Message{
			Status:       notify.StatusError,
			Stage:        string(uploads.Abandoned),
			SessionID:    sess.ID,
			ErrorCode:    errcode.SystemError,
			ErrorMessage: "upload expired, please upload the file again",
		}); err != nil {
			log.Warn("publish abandon notice", slog.String("error", err.Error()))
		}
	}
	return ReapAbandoned, nil
}

// Sweep reaps every open session idle since before the cutoff. It backs up
// the per-session tasks when the queue lost them.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	open, err := r.sessions.ListOpen(ctx, r.now().Add(-r.idle))
	if err != nil {
		return 0, err
	}
	reaped := 0
	for _, sess := range open {
		outcome, err := r.Reap(ctx, sess.ID)
		if err != nil {
			r.logger.Warn("sweep session", slog.String("session_id", sess.ID), slog.String("error", err.Error()))
			continue
		}
		if outcome == ReapAbandoned {
			reaped++
		}
	}
	return reaped, nil
}
