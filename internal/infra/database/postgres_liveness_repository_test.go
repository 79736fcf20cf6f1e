// internal/infra/database/postgres_liveness_repository_test.go
package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLivenessMock(t *testing.T) (*PostgresLivenessRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresLivenessRepository(db), mock
}

// Only the first responder consumes a token; the second update matches no
// row because responded_at is no longer NULL.
func TestMarkRecordRespondedFirstResponderWins(t *testing.T) {
	repo, mock := setupLivenessMock(t)
	now := time.Now()

	mock.ExpectExec("UPDATE check_in_records").
		WithArgs(now, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE check_in_records").
		WithArgs(now, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := repo.MarkRecordResponded(context.Background(), 7, now)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.MarkRecordResponded(context.Background(), 7, now)
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecordByTokenNotFound(t *testing.T) {
	repo, mock := setupLivenessMock(t)

	mock.ExpectQuery("SELECT (.+) FROM check_in_records").
		WithArgs("no-such-token").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "checked_in_at", "next_check_in",
			"status", "response_token", "responded_at", "created_at",
		}))

	_, err := repo.GetRecordByToken(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOverdueSchedules(t *testing.T) {
	repo, mock := setupLivenessMock(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"user_id", "frequency_days", "grace_period_days", "next_check_in", "enabled", "created_at", "updated_at",
	}).
		AddRow("user-1", 30, 7, now.AddDate(0, 0, -10), true, now, now).
		AddRow("user-2", 7, 2, now.AddDate(0, 0, -5), true, now, now)
	mock.ExpectQuery("SELECT (.+) FROM check_in_schedules").
		WithArgs(now).
		WillReturnRows(rows)

	schedules, err := repo.ListOverdueSchedules(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, schedules, 2)
	assert.Equal(t, "user-1", schedules[0].UserID)
	assert.Equal(t, 30, schedules[0].FrequencyDays)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceScheduleUnknownUser(t *testing.T) {
	repo, mock := setupLivenessMock(t)
	next := time.Now().AddDate(0, 0, 30)

	mock.ExpectQuery("UPDATE check_in_schedules").
		WithArgs(next, "missing-user").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))

	err := repo.AdvanceSchedule(context.Background(), "missing-user", next)
	assert.ErrorIs(t, err, ErrScheduleNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
