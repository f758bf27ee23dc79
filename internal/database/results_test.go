package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"syllabusai/internal/database"
	"syllabusai/internal/dbtest"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestResultRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	owner := dbtest.User(t, db, "alice")

	calendar := []byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n")
	in := database.Result{
		UserID:            owner.ID,
		CourseName:        "CS 101",
		Summary:           "Course covers X, Y, Z",
		Resources:         "- a\n- b\n- c",
		SemesterStartDate: date(2024, time.January, 8),
		SemesterEndDate:   date(2024, time.May, 3),
		Calendar:          calendar,
	}
	require.NoError(t, database.CreateResult(ctx, db, &in))
	require.NotZero(t, in.ID)
	assert.False(t, in.CreatedAt.IsZero())

	got, err := database.GetResultForUser(ctx, db, in.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "CS 101", got.CourseName)
	assert.Equal(t, in.Summary, got.Summary)
	assert.Equal(t, in.Resources, got.Resources)
	assert.Equal(t, calendar, got.Calendar)
	require.NotNil(t, got.SemesterStartDate)
	require.NotNil(t, got.SemesterEndDate)
	assert.True(t, in.SemesterStartDate.Equal(*got.SemesterStartDate))
	assert.True(t, in.SemesterEndDate.Equal(*got.SemesterEndDate))

	list, err := database.ListResults(ctx, db, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, in.ID, list[0].ID)
}

func TestResultWithoutOptionalFields(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	owner := dbtest.User(t, db, "alice")

	in := database.Result{UserID: owner.ID, CourseName: "History", Summary: "s", Resources: "r"}
	require.NoError(t, database.CreateResult(ctx, db, &in))

	got, err := database.GetResultForUser(ctx, db, in.ID, owner.ID)
	require.NoError(t, err)
	assert.Nil(t, got.SemesterStartDate)
	assert.Nil(t, got.SemesterEndDate)
	assert.False(t, got.HasCalendar())
}

func TestGetResultForOtherOwnerIsNotFound(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	alice := dbtest.User(t, db, "alice")
	bob := dbtest.User(t, db, "bob")

	in := database.Result{UserID: alice.ID, CourseName: "Math"}
	require.NoError(t, database.CreateResult(ctx, db, &in))

	_, err := database.GetResultForUser(ctx, db, in.ID, bob.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestListResultsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	owner := dbtest.User(t, db, "alice")

	var ids []uint
	for _, name := range []string{"first", "second", "third"} {
		r := database.Result{UserID: owner.ID, CourseName: name}
		require.NoError(t, database.CreateResult(ctx, db, &r))
		ids = append(ids, r.ID)
	}

	list, err := database.ListResults(ctx, db, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].CourseName)
	assert.Equal(t, "first", list[2].CourseName)

	latest, err := database.LatestResult(ctx, db, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, ids[2], latest.ID)
}

func TestCreateResultRequiresOwner(t *testing.T) {
	db := dbtest.New(t)
	err := database.CreateResult(context.Background(), db, &database.Result{CourseName: "x"})
	require.Error(t, err)
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)

	_, err := database.CreateUser(ctx, db, "alice", "hash", "")
	require.NoError(t, err)

	_, err = database.CreateUser(ctx, db, "alice", "other", "")
	require.ErrorIs(t, err, database.ErrUsernameTaken)

	var count int64
	require.NoError(t, db.Model(&database.User{}).Where("username = ?", "alice").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUniqueUsernameViolationIsTranslated(t *testing.T) {
	db := dbtest.New(t)
	dbtest.User(t, db, "alice")

	err := db.Create(&database.User{Username: "alice", PasswordHash: "x", Role: database.RoleUser}).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
