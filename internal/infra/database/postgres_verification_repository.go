// internal/infra/database/postgres_verification_repository.go
package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"estate_lifecycle_engine/internal/domain/verification"
)

type PostgresVerificationRepository struct {
	db *sql.DB
}

func NewPostgresVerificationRepository(db *sql.DB) *PostgresVerificationRepository {
	return &PostgresVerificationRepository{db: db}
}

// --- Request methods ---

func (r *PostgresVerificationRepository) CreateRequest(ctx context.Context, req *verification.Request) error {
	// The verification_requests table carries a partial unique index on
	// user_id WHERE status IN ('pending','initiated'). A concurrent scan
	// that tries to escalate the same user loses the insert race here.
	query := `INSERT INTO verification_requests (id, user_id, status, source, initiated_by, expires_at, downloaded)
               VALUES ($1, $2, $3, $4, $5, $6, FALSE)
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, req.ID, req.UserID, req.Status, req.Source, req.InitiatedBy, req.ExpiresAt).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "verification_requests_one_open_per_user") {
			return ErrOpenRequestExists
		}
		return transient("create verification request", err)
	}
	return nil
}

func (r *PostgresVerificationRepository) GetRequest(ctx context.Context, id string) (*verification.Request, error) {
	query := `SELECT id, user_id, status, source, initiated_by, expires_at, downloaded, created_at, updated_at
               FROM verification_requests WHERE id = $1`
	req := verification.Request{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID, &req.UserID, &req.Status, &req.Source, &req.InitiatedBy, &req.ExpiresAt, &req.Downloaded, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, transient("get verification request", err)
	}
	return &req, nil
}

func (r *PostgresVerificationRepository) GetOpenRequestByUser(ctx context.Context, userID string) (*verification.Request, error) {
	query := `SELECT id, user_id, status, source, initiated_by, expires_at, downloaded, created_at, updated_at
               FROM verification_requests
               WHERE user_id = $1 AND status IN ('pending', 'initiated')
               LIMIT 1`
	req := verification.Request{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&req.ID, &req.UserID, &req.Status, &req.Source, &req.InitiatedBy, &req.ExpiresAt, &req.Downloaded, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, transient("get open verification request", err)
	}
	return &req, nil
}

func (r *PostgresVerificationRepository) ListRequestsForEscalation(ctx context.Context, createdBefore time.Time) ([]*verification.Request, error) {
	query := `SELECT id, user_id, status, source, initiated_by, expires_at, downloaded, created_at, updated_at
               FROM verification_requests
               WHERE status = 'pending' AND created_at <= $1
               ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, createdBefore)
	if err != nil {
		return nil, transient("list requests for escalation", err)
	}
	defer rows.Close()

	requests := make([]*verification.Request, 0)
	for rows.Next() {
		req := verification.Request{}
		if err := rows.Scan(&req.ID, &req.UserID, &req.Status, &req.Source, &req.InitiatedBy, &req.ExpiresAt, &req.Downloaded, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, transient("scan escalation request row", err)
		}
		requests = append(requests, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("iterate escalation requests", err)
	}
	return requests, nil
}

func (r *PostgresVerificationRepository) TransitionRequest(ctx context.Context, id string, from, to verification.RequestStatus) (bool, error) {
	query := `UPDATE verification_requests
               SET status = $1, updated_at = NOW()
               WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, transient("transition verification request", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, transient("transition verification request (rows affected)", err)
	}
	return affected == 1, nil
}

func (r *PostgresVerificationRepository) MarkDownloaded(ctx context.Context, id string) (bool, error) {
	// At-most-once package retrieval: the flag flips only for a
	// quorum-satisfied (completed or verified), not-yet-downloaded request.
	query := `UPDATE verification_requests
               SET downloaded = TRUE, updated_at = NOW()
               WHERE id = $1 AND status IN ('completed', 'verified') AND downloaded = FALSE`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, transient("mark request downloaded", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, transient("mark request downloaded (rows affected)", err)
	}
	return affected == 1, nil
}

func (r *PostgresVerificationRepository) ExpireOpenRequests(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE verification_requests
               SET status = 'expired', updated_at = NOW()
               WHERE status IN ('pending', 'initiated') AND expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, transient("expire open verification requests", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, transient("expire open verification requests (rows affected)", err)
	}
	return affected, nil
}

// --- ExecutorVerification methods ---

func (r *PostgresVerificationRepository) CreateExecutorVerification(ctx context.Context, ev *verification.ExecutorVerification) error {
	query := `INSERT INTO executor_verifications (id, user_id, verification_request_id, pins_required, pins_received, status, expires_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, ev.ID, ev.UserID, ev.RequestID, ev.PinsRequired, ev.PinsReceived, ev.Status, ev.ExpiresAt).Scan(&ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return transient("create executor verification", err)
	}
	return nil
}

func (r *PostgresVerificationRepository) GetExecutorVerificationByRequest(ctx context.Context, requestID string) (*verification.ExecutorVerification, error) {
	query := `SELECT id, user_id, verification_request_id, pins_required, pins_received, status, expires_at, created_at, updated_at
               FROM executor_verifications WHERE verification_request_id = $1`
	ev := verification.ExecutorVerification{}
	err := r.db.QueryRowContext(ctx, query, requestID).Scan(
		&ev.ID, &ev.UserID, &ev.RequestID, &ev.PinsRequired, &ev.PinsReceived, &ev.Status, &ev.ExpiresAt, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrExecutorVerificationNotFound
		}
		return nil, transient("get executor verification", err)
	}
	return &ev, nil
}

func (r *PostgresVerificationRepository) IncrementPinsReceived(ctx context.Context, id string) (int, int, bool, error) {
	// pins_received only increases, and only while the verification is
	// still pending. The RETURNING clause gives the caller the count it
	// needs for the quorum check without a second read.
	query := `UPDATE executor_verifications
               SET pins_received = pins_received + 1, updated_at = NOW()
               WHERE id = $1 AND status = 'pending'
               RETURNING pins_received, pins_required`
	var received, required int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&received, &required)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, false, nil // Not pending anymore; lost the race
		}
		return 0, 0, false, transient("increment pins received", err)
	}
	return received, required, true, nil
}

func (r *PostgresVerificationRepository) CompleteExecutorVerification(ctx context.Context, id string) (bool, error) {
	query := `UPDATE executor_verifications
               SET status = 'completed', updated_at = NOW()
               WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, transient("complete executor verification", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, transient("complete executor verification (rows affected)", err)
	}
	return affected == 1, nil
}

func (r *PostgresVerificationRepository) ExpirePendingVerifications(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE executor_verifications
               SET status = 'expired', updated_at = NOW()
               WHERE status = 'pending' AND expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, transient("expire pending executor verifications", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, transient("expire pending executor verifications (rows affected)", err)
	}
	return affected, nil
}
