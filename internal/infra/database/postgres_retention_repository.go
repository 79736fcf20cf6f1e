// internal/infra/database/postgres_retention_repository.go
package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"estate_lifecycle_engine/internal/domain/retention"
)

type PostgresRetentionRepository struct {
	db *sql.DB
}

func NewPostgresRetentionRepository(db *sql.DB) *PostgresRetentionRepository {
	return &PostgresRetentionRepository{db: db}
}

// --- ContentItem methods ---

func (r *PostgresRetentionRepository) GetItem(ctx context.Context, itemID string) (*retention.ContentItem, error) {
	query := `SELECT id, user_id, kind, title, storage_path, status, grace_period_end, created_at, updated_at
               FROM content_items WHERE id = $1`
	item := retention.ContentItem{}
	err := r.db.QueryRowContext(ctx, query, itemID).Scan(
		&item.ID, &item.UserID, &item.Kind, &item.Title, &item.StoragePath, &item.Status, &item.GracePeriodEnd, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrItemNotFound
		}
		return nil, transient("get content item", err)
	}
	return &item, nil
}

func (r *PostgresRetentionRepository) ListItemsByUserAndKind(ctx context.Context, userID string, kind retention.ItemKind) ([]*retention.ContentItem, error) {
	query := `SELECT id, user_id, kind, title, storage_path, status, grace_period_end, created_at, updated_at
               FROM content_items
               WHERE user_id = $1 AND kind = $2 AND status != 'deleted'
               ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, userID, kind)
	if err != nil {
		return nil, transient("list content items", err)
	}
	defer rows.Close()

	items := make([]*retention.ContentItem, 0)
	for rows.Next() {
		item := retention.ContentItem{}
		if err := rows.Scan(&item.ID, &item.UserID, &item.Kind, &item.Title, &item.StoragePath, &item.Status, &item.GracePeriodEnd, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, transient("scan content item row", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("iterate content items", err)
	}
	return items, nil
}

// --- MonitoringRecord methods ---

func (r *PostgresRetentionRepository) CreateMonitoring(ctx context.Context, rec *retention.MonitoringRecord) error {
	query := `INSERT INTO monitoring_records (content_item_id, user_id, monitoring_status, scheduled_deletion, notifications_sent)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, rec.ItemID, rec.UserID, rec.MonitoringStatus, rec.ScheduledDeletion, rec.NotificationsSent).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "monitoring_records_pkey") {
			// Monitoring already started for this item; a second
			// BeginMonitoring call is a no-op upstream.
			return ErrMonitoringExists
		}
		return transient("create monitoring record", err)
	}
	return nil
}

func (r *PostgresRetentionRepository) GetMonitoring(ctx context.Context, itemID string) (*retention.MonitoringRecord, error) {
	query := `SELECT content_item_id, user_id, monitoring_status, scheduled_deletion, notifications_sent, created_at, updated_at
               FROM monitoring_records WHERE content_item_id = $1`
	rec := retention.MonitoringRecord{}
	err := r.db.QueryRowContext(ctx, query, itemID).Scan(
		&rec.ItemID, &rec.UserID, &rec.MonitoringStatus, &rec.ScheduledDeletion, &rec.NotificationsSent, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMonitoringNotFound
		}
		return nil, transient("get monitoring record", err)
	}
	return &rec, nil
}

func scanMonitoringRecords(rows *sql.Rows) ([]*retention.MonitoringRecord, error) {
	records := make([]*retention.MonitoringRecord, 0)
	for rows.Next() {
		rec := retention.MonitoringRecord{}
		if err := rows.Scan(&rec.ItemID, &rec.UserID, &rec.MonitoringStatus, &rec.ScheduledDeletion, &rec.NotificationsSent, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, transient("scan monitoring record row", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("iterate monitoring records", err)
	}
	return records, nil
}

func (r *PostgresRetentionRepository) ListMonitored(ctx context.Context) ([]*retention.MonitoringRecord, error) {
	query := `SELECT content_item_id, user_id, monitoring_status, scheduled_deletion, notifications_sent, created_at, updated_at
               FROM monitoring_records
               WHERE monitoring_status IN ('active', 'grace_period')
               ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, transient("list monitored records", err)
	}
	defer rows.Close()
	return scanMonitoringRecords(rows)
}

func (r *PostgresRetentionRepository) ListDueForDeletion(ctx context.Context, now time.Time) ([]*retention.MonitoringRecord, error) {
	query := `SELECT content_item_id, user_id, monitoring_status, scheduled_deletion, notifications_sent, created_at, updated_at
               FROM monitoring_records
               WHERE monitoring_status = 'deletion_pending' AND scheduled_deletion <= $1
               ORDER BY scheduled_deletion ASC`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, transient("list records due for deletion", err)
	}
	defer rows.Close()
	return scanMonitoringRecords(rows)
}

// --- State transitions ---

func (r *PostgresRetentionRepository) SetGracePeriod(ctx context.Context, itemID string, end time.Time) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return transient("begin transaction for grace period", err)
	}
	defer txn.Rollback()

	if _, err := txn.ExecContext(ctx,
		`UPDATE content_items SET status = 'grace_period', grace_period_end = $1, updated_at = NOW()
          WHERE id = $2 AND status = 'active'`, end, itemID); err != nil {
		return transient("set item grace period", err)
	}
	if _, err := txn.ExecContext(ctx,
		`UPDATE monitoring_records SET monitoring_status = 'grace_period', updated_at = NOW()
          WHERE content_item_id = $1 AND monitoring_status = 'active'`, itemID); err != nil {
		return transient("set monitoring grace period", err)
	}

	if err := txn.Commit(); err != nil {
		return transient("commit grace period", err)
	}
	return nil
}

func (r *PostgresRetentionRepository) RecordNotificationTier(ctx context.Context, itemID string, tier int) (bool, error) {
	// Monotonic bookkeeping: the stored tier only moves up, so a lower or
	// repeated tier from an overlapping scan affects zero rows.
	query := `UPDATE monitoring_records
               SET notifications_sent = $1, updated_at = NOW()
               WHERE content_item_id = $2 AND notifications_sent < $1`
	res, err := r.db.ExecContext(ctx, query, tier, itemID)
	if err != nil {
		return false, transient("record notification tier", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, transient("record notification tier (rows affected)", err)
	}
	return affected == 1, nil
}

func (r *PostgresRetentionRepository) MarkDeletionPending(ctx context.Context, itemID string, scheduledAt time.Time) (bool, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, transient("begin transaction for deletion pending", err)
	}
	defer txn.Rollback()

	res, err := txn.ExecContext(ctx,
		`UPDATE monitoring_records SET monitoring_status = 'deletion_pending', scheduled_deletion = $1, updated_at = NOW()
          WHERE content_item_id = $2 AND monitoring_status IN ('active', 'grace_period')`, scheduledAt, itemID)
	if err != nil {
		return false, transient("mark monitoring deletion pending", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, transient("mark monitoring deletion pending (rows affected)", err)
	}
	if affected == 0 {
		// Another scan already handed the item off.
		return false, nil
	}

	if _, err := txn.ExecContext(ctx,
		`UPDATE content_items SET status = 'deletion_pending', updated_at = NOW()
          WHERE id = $1 AND status IN ('active', 'grace_period')`, itemID); err != nil {
		return false, transient("mark item deletion pending", err)
	}

	if err := txn.Commit(); err != nil {
		return false, transient("commit deletion pending", err)
	}
	return true, nil
}

func (r *PostgresRetentionRepository) ResetToActive(ctx context.Context, itemID string) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return transient("begin transaction for subscription reset", err)
	}
	defer txn.Rollback()

	if _, err := txn.ExecContext(ctx,
		`UPDATE content_items SET status = 'active', grace_period_end = NULL, updated_at = NOW()
          WHERE id = $1 AND status != 'deleted'`, itemID); err != nil {
		return transient("reset item to active", err)
	}
	if _, err := txn.ExecContext(ctx,
		`UPDATE monitoring_records SET monitoring_status = 'active', scheduled_deletion = NULL, notifications_sent = 0, updated_at = NOW()
          WHERE content_item_id = $1 AND monitoring_status != 'deleted'`, itemID); err != nil {
		return transient("reset monitoring to active", err)
	}

	if err := txn.Commit(); err != nil {
		return transient("commit subscription reset", err)
	}
	return nil
}

// --- Deletion ---

func (r *PostgresRetentionRepository) ListItemStoragePaths(ctx context.Context, itemID string) ([]string, error) {
	query := `SELECT storage_path FROM content_items WHERE id = $1 AND storage_path IS NOT NULL
               UNION ALL
               SELECT storage_path FROM item_documents WHERE content_item_id = $1`
	rows, err := r.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, transient("list item storage paths", err)
	}
	defer rows.Close()

	paths := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, transient("scan storage path row", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("iterate storage paths", err)
	}
	return paths, nil
}

func (r *PostgresRetentionRepository) DeleteItemCascade(ctx context.Context, itemID string) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return transient("begin transaction for cascade delete", err)
	}
	defer txn.Rollback()

	// Dependent metadata first, then the item row. The monitoring record
	// survives with monitoring_status = 'deleted' as the tombstone.
	for _, q := range []string{
		`DELETE FROM item_documents WHERE content_item_id = $1`,
		`DELETE FROM item_beneficiaries WHERE content_item_id = $1`,
		`DELETE FROM item_executors WHERE content_item_id = $1`,
		`DELETE FROM content_items WHERE id = $1`,
	} {
		if _, err := txn.ExecContext(ctx, q, itemID); err != nil {
			return transient("cascade delete item rows", err)
		}
	}

	if _, err := txn.ExecContext(ctx,
		`UPDATE monitoring_records SET monitoring_status = 'deleted', updated_at = NOW()
          WHERE content_item_id = $1`, itemID); err != nil {
		return transient("mark monitoring deleted", err)
	}

	if err := txn.Commit(); err != nil {
		return transient("commit cascade delete", err)
	}
	return nil
}
