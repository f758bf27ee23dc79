package analysis_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syllabusai/internal/analysis"
	"syllabusai/internal/database"
	"syllabusai/internal/dbtest"
	"syllabusai/internal/notify"
	"syllabusai/internal/storage"
	"syllabusai/internal/uploads"
)

func stageRaw(t *testing.T, store *uploads.Store, stager storage.Stager, userID uint) *database.UploadSession {
	t.Helper()
	id := uuid.NewString()
	key := uploads.StagedKey("alice", id, "syllabus.pdf")
	require.NoError(t, stager.Save(context.Background(), key, bytes.NewReader([]byte("x")), 1, "application/pdf"))
	sess := &database.UploadSession{ID: id, UserID: userID, StagedKey: key, Extension: "pdf"}
	require.NoError(t, store.Create(context.Background(), sess, nil))
	return sess
}

func TestReaperAbandonsIdleSession(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	alice := dbtest.User(t, db, "alice")
	stager, err := storage.NewLocalStager(t.TempDir())
	require.NoError(t, err)
	store := uploads.NewStore(db)
	sess := stageRaw(t, store, stager, alice.ID)

	recorder := &notify.Recorder{}
	reaper := analysis.NewReaper(db, stager, nil, 0).WithNotifier(recorder)
	outcome, err := reaper.Reap(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, analysis.ReapAbandoned, outcome)
	require.Len(t, recorder.Messages, 1)
	assert.Equal(t, string(uploads.Abandoned), recorder.Messages[0].Stage)
	assert.Equal(t, sess.ID, recorder.Messages[0].SessionID)

	_, err = stager.Open(ctx, sess.StagedKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, string(uploads.Abandoned), got.State)

	outcome, err = reaper.Reap(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, analysis.ReapFinished, outcome)
	assert.Len(t, recorder.Messages, 1)
}

func TestReaperLeavesActiveSession(t *testing.T) {
	db := dbtest.New(t)
	alice := dbtest.User(t, db, "alice")
	stager, err := storage.NewLocalStager(t.TempDir())
	require.NoError(t, err)
	sess := stageRaw(t, uploads.NewStore(db), stager, alice.ID)

	reaper := analysis.NewReaper(db, stager, nil, time.Hour)
	outcome, err := reaper.Reap(context.Background(), sess.ID)
	assert.ErrorIs(t, err, analysis.ErrSessionActive)
	assert.Equal(t, analysis.ReapActive, outcome)

	_, err = stager.Open(context.Background(), sess.StagedKey)
	assert.NoError(t, err)
}

func TestReaperSkipsMissingSession(t *testing.T) {
	db := dbtest.New(t)
	stager, err := storage.NewLocalStager(t.TempDir())
	require.NoError(t, err)

	outcome, err := analysis.NewReaper(db, stager, nil, 0).Reap(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, analysis.ReapMissing, outcome)
}

func TestSweepReapsOpenSessions(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	alice := dbtest.User(t, db, "alice")
	stager, err := storage.NewLocalStager(t.TempDir())
	require.NoError(t, err)
	store := uploads.NewStore(db)
	stageRaw(t, store, stager, alice.ID)
	stageRaw(t, store, stager, alice.ID)

	reaper := analysis.NewReaper(db, stager, nil, -time.Minute)
	n, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
