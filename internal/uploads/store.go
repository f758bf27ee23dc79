package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"syllabusai/internal/database"
)

// ErrConflict means another writer moved the session first.
var ErrConflict = errors.New("upload session changed concurrently")

// Change describes one transition.
type Change struct {
	To       State
	Error    string
	ResultID *uint
	Detail   map[string]any
}

// Store reads and writes upload sessions.
type Store struct {
	db *gorm.DB
}

// NewStore wraps db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create inserts a session in FileStaged together with its first transition.
func (s *Store) Create(ctx context.Context, sess *database.UploadSession, detail map[string]any) error {
	if sess.ID == "" || sess.UserID == 0 {
		return errors.New("upload session id and owner are required")
	}
	sess.State = string(FileStaged)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sess).Error; err != nil {
			return fmt.Errorf("create upload session: %w", err)
		}
		return recordTransition(tx, sess.ID, NoFile, FileStaged, detail)
	})
}

// Get loads a session by id.
func (s *Store) Get(ctx context.Context, id string) (*database.UploadSession, error) {
	var sess database.UploadSession
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sess).Error; err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetForUser loads a session owned by userID; other owners see gorm.ErrRecordNotFound.
func (s *Store) GetForUser(ctx context.Context, id string, userID uint) (*database.UploadSession, error) {
	var sess database.UploadSession
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&sess).Error; err != nil {
		return nil, err
	}
	return &sess, nil
}

// Transition moves a session to change.To. The state update and the
// transition record commit together.
func (s *Store) Transition(ctx context.Context, id string, change Change) (*database.UploadSession, error) {
	var updated database.UploadSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&updated).Error; err != nil {
			return err
		}
		from := State(updated.State)
		if !CanTransition(from, change.To) {
			return &TransitionError{From: from, To: change.To}
		}

		fields := map[string]any{
			"state":      string(change.To),
			"updated_at": time.Now().UTC(),
		}
		if change.Error != "" {
			fields["error"] = truncate(change.Error, 1024)
		}
		if change.ResultID != nil {
			fields["result_id"] = *change.ResultID
		}

		res := tx.Model(&database.UploadSession{}).
			Where("id = ? AND state = ?", id, string(from)).
			Updates(fields)
		if res.Error != nil {
			return fmt.Errorf("update upload session: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrConflict
		}

		if err := recordTransition(tx, id, from, change.To, change.Detail); err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// History returns the transitions of a session in the order they happened.
func (s *Store) History(ctx context.Context, id string) ([]database.SessionTransition, error) {
	var rows []database.SessionTransition
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", id).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return rows, nil
}

// ListOpen returns non-terminal sessions untouched since before cutoff.
func (s *Store) ListOpen(ctx context.Context, cutoff time.Time) ([]database.UploadSession, error) {
	var rows []database.UploadSession
	open := []string{string(FileStaged), string(Validated), string(Analyzed), string(Persisted)}
	if err := s.db.WithContext(ctx).
		Where("state IN ? AND updated_at < ?", open, cutoff.UTC()).
		Order("updated_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}
	return rows, nil
}

// CountByState groups sessions by state for the admin overview.
func (s *Store) CountByState(ctx context.Context) (map[State]int64, error) {
	var rows []struct {
		State string
		Count int64
	}
	if err := s.db.WithContext(ctx).
		Model(&database.UploadSession{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	out := make(map[State]int64, len(rows))
	for _, r := range rows {
		out[State(r.State)] = r.Count
	}
	return out, nil
}

func recordTransition(tx *gorm.DB, sessionID string, from, to State, detail map[string]any) error {
	row := database.SessionTransition{
		SessionID: sessionID,
		FromState: string(from),
		ToState:   string(to),
	}
	if len(detail) > 0 {
		raw, err := json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("marshal transition detail: %w", err)
		}
		row.Detail = datatypes.JSON(raw)
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
