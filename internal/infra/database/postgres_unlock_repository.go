// internal/infra/database/postgres_unlock_repository.go
package database

import (
	"context"
	"database/sql"
	"time"

	"estate_lifecycle_engine/internal/domain/unlock"
)

type PostgresUnlockRepository struct {
	db *sql.DB
}

func NewPostgresUnlockRepository(db *sql.DB) *PostgresUnlockRepository {
	return &PostgresUnlockRepository{db: db}
}

func (r *PostgresUnlockRepository) BulkCreateCodes(ctx context.Context, codes []*unlock.Code) error {
	if len(codes) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return transient("begin transaction for code issuance", err)
	}
	defer txn.Rollback() // Rollback if not committed

	stmt, err := txn.PrepareContext(ctx, `INSERT INTO unlock_codes (code, user_id, verification_request_id, assigned_contact_id, used, expires_at)
                                         VALUES ($1, $2, $3, $4, FALSE, $5)`)
	if err != nil {
		return transient("prepare statement for code issuance", err)
	}
	defer stmt.Close()

	for _, c := range codes {
		if _, err := stmt.ExecContext(ctx, c.Code, c.UserID, c.RequestID, c.AssignedContactID, c.ExpiresAt); err != nil {
			return transient("insert unlock code", err)
		}
	}

	if err := txn.Commit(); err != nil {
		return transient("commit code issuance", err)
	}
	return nil
}

func (r *PostgresUnlockRepository) GetCode(ctx context.Context, code string) (*unlock.Code, error) {
	query := `SELECT code, user_id, verification_request_id, assigned_contact_id, used, used_by, used_at, expires_at, created_at
               FROM unlock_codes WHERE code = $1`
	c := unlock.Code{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&c.Code, &c.UserID, &c.RequestID, &c.AssignedContactID, &c.Used, &c.UsedBy, &c.UsedAt, &c.ExpiresAt, &c.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCodeNotFound
		}
		return nil, transient("get unlock code", err)
	}
	return &c, nil
}

func (r *PostgresUnlockRepository) MarkCodeUsed(ctx context.Context, code string, usedBy string, now time.Time) (bool, error) {
	// Single-use guarantee: the update is predicated on used = FALSE, so
	// of two concurrent redemptions exactly one affects a row.
	query := `UPDATE unlock_codes
               SET used = TRUE, used_by = $1, used_at = $2
               WHERE code = $3 AND used = FALSE AND expires_at > $2`
	res, err := r.db.ExecContext(ctx, query, usedBy, now, code)
	if err != nil {
		return false, transient("mark unlock code used", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, transient("mark unlock code used (rows affected)", err)
	}
	return affected == 1, nil
}
