// internal/infra/database/postgres_retention_repository_test.go
package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"estate_lifecycle_engine/internal/domain/retention"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRetentionMock(t *testing.T) (*PostgresRetentionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRetentionRepository(db), mock
}

func TestRecordNotificationTierAdvances(t *testing.T) {
	repo, mock := setupRetentionMock(t)

	mock.ExpectExec("UPDATE monitoring_records").
		WithArgs(3, "item-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	won, err := repo.RecordNotificationTier(context.Background(), "item-1", 3)
	require.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The stored tier only moves up; a repeated or lower tier from an
// overlapping scan affects zero rows.
func TestRecordNotificationTierRejectsStaleTier(t *testing.T) {
	repo, mock := setupRetentionMock(t)

	mock.ExpectExec("UPDATE monitoring_records").
		WithArgs(2, "item-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := repo.RecordNotificationTier(context.Background(), "item-1", 2)
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDeletionPendingHandsOffOnce(t *testing.T) {
	repo, mock := setupRetentionMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE monitoring_records").
		WithArgs(now, "item-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE content_items").
		WithArgs("item-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	won, err := repo.MarkDeletionPending(context.Background(), "item-1", now)
	require.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDeletionPendingLosesToEarlierScan(t *testing.T) {
	repo, mock := setupRetentionMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE monitoring_records").
		WithArgs(now, "item-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	won, err := repo.MarkDeletionPending(context.Background(), "item-1", now)
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMonitoringDuplicate(t *testing.T) {
	repo, mock := setupRetentionMock(t)

	mock.ExpectQuery("INSERT INTO monitoring_records").
		WillReturnError(fmt.Errorf(`pq: duplicate key value violates unique constraint "monitoring_records_pkey"`))

	rec := &retention.MonitoringRecord{
		ItemID:           "item-1",
		UserID:           "user-1",
		MonitoringStatus: retention.ItemActive,
	}
	err := repo.CreateMonitoring(context.Background(), rec)
	assert.ErrorIs(t, err, ErrMonitoringExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteItemCascadeRemovesDependentRows(t *testing.T) {
	repo, mock := setupRetentionMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM item_documents").WithArgs("item-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM item_beneficiaries").WithArgs("item-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM item_executors").WithArgs("item-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM content_items").WithArgs("item-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE monitoring_records").WithArgs("item-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteItemCascade(context.Background(), "item-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetItemNotFound(t *testing.T) {
	repo, mock := setupRetentionMock(t)

	mock.ExpectQuery("SELECT (.+) FROM content_items").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "kind", "title", "storage_path",
			"status", "grace_period_end", "created_at", "updated_at",
		}))

	_, err := repo.GetItem(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
