// internal/infra/database/postgres_liveness_repository.go
package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"estate_lifecycle_engine/internal/domain/liveness"
)

type PostgresLivenessRepository struct {
	db *sql.DB
}

func NewPostgresLivenessRepository(db *sql.DB) *PostgresLivenessRepository {
	return &PostgresLivenessRepository{db: db}
}

// --- Schedule methods ---

func (r *PostgresLivenessRepository) GetSchedule(ctx context.Context, userID string) (*liveness.CheckInSchedule, error) {
	query := `SELECT user_id, frequency_days, grace_period_days, next_check_in, enabled, created_at, updated_at
               FROM check_in_schedules WHERE user_id = $1`
	s := liveness.CheckInSchedule{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&s.UserID, &s.FrequencyDays, &s.GracePeriodDays, &s.NextCheckIn, &s.Enabled, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrScheduleNotFound
		}
		return nil, transient("get check-in schedule", err)
	}
	return &s, nil
}

func (r *PostgresLivenessRepository) ListOverdueSchedules(ctx context.Context, now time.Time) ([]*liveness.CheckInSchedule, error) {
	// The deadline is next_check_in pushed out by the per-user grace
	// period; the comparison happens in SQL so the scan sees one
	// consistent snapshot.
	query := `SELECT user_id, frequency_days, grace_period_days, next_check_in, enabled, created_at, updated_at
               FROM check_in_schedules
               WHERE enabled = TRUE
                 AND next_check_in + make_interval(days => grace_period_days) < $1
               ORDER BY next_check_in ASC`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, transient("list overdue schedules", err)
	}
	defer rows.Close()

	schedules := make([]*liveness.CheckInSchedule, 0)
	for rows.Next() {
		s := liveness.CheckInSchedule{}
		if err := rows.Scan(&s.UserID, &s.FrequencyDays, &s.GracePeriodDays, &s.NextCheckIn, &s.Enabled, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, transient("scan overdue schedule row", err)
		}
		schedules = append(schedules, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("iterate overdue schedules", err)
	}
	return schedules, nil
}

func (r *PostgresLivenessRepository) AdvanceSchedule(ctx context.Context, userID string, nextCheckIn time.Time) error {
	query := `UPDATE check_in_schedules
               SET next_check_in = $1, updated_at = NOW()
               WHERE user_id = $2
               RETURNING updated_at`
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, query, nextCheckIn, userID).Scan(&updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrScheduleNotFound
		}
		return transient("advance check-in schedule", err)
	}
	return nil
}

// --- Record methods ---

func (r *PostgresLivenessRepository) CreateRecord(ctx context.Context, rec *liveness.CheckInRecord) error {
	query := `INSERT INTO check_in_records (user_id, checked_in_at, next_check_in, status, response_token)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, rec.UserID, rec.CheckedInAt, rec.NextCheckIn, rec.Status, rec.ResponseToken).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "check_in_records_response_token_key") {
			// Token collision; callers regenerate and retry.
			return transient("create check-in record (token collision)", err)
		}
		return transient("create check-in record", err)
	}
	return nil
}

func (r *PostgresLivenessRepository) GetRecordByToken(ctx context.Context, token string) (*liveness.CheckInRecord, error) {
	query := `SELECT id, user_id, checked_in_at, next_check_in, status, response_token, responded_at, created_at
               FROM check_in_records WHERE response_token = $1`
	rec := liveness.CheckInRecord{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&rec.ID, &rec.UserID, &rec.CheckedInAt, &rec.NextCheckIn, &rec.Status, &rec.ResponseToken, &rec.RespondedAt, &rec.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, transient("get check-in record by token", err)
	}
	return &rec, nil
}

func (r *PostgresLivenessRepository) MarkRecordResponded(ctx context.Context, recordID int64, respondedAt time.Time) (bool, error) {
	// Conditional update: only the first responder wins.
	query := `UPDATE check_in_records
               SET responded_at = $1
               WHERE id = $2 AND responded_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, respondedAt, recordID)
	if err != nil {
		return false, transient("mark check-in record responded", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, transient("mark check-in record responded (rows affected)", err)
	}
	return affected == 1, nil
}

func (r *PostgresLivenessRepository) LatestRecord(ctx context.Context, userID string) (*liveness.CheckInRecord, error) {
	query := `SELECT id, user_id, checked_in_at, next_check_in, status, response_token, responded_at, created_at
               FROM check_in_records WHERE user_id = $1
               ORDER BY created_at DESC, id DESC LIMIT 1`
	rec := liveness.CheckInRecord{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&rec.ID, &rec.UserID, &rec.CheckedInAt, &rec.NextCheckIn, &rec.Status, &rec.ResponseToken, &rec.RespondedAt, &rec.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, transient("get latest check-in record", err)
	}
	return &rec, nil
}
