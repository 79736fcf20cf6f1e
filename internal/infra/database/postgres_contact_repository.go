// internal/infra/database/postgres_contact_repository.go
package database

import (
	"context"
	"database/sql"

	"estate_lifecycle_engine/internal/domain/contact"
)

type PostgresContactRepository struct {
	db *sql.DB
}

func NewPostgresContactRepository(db *sql.DB) *PostgresContactRepository {
	return &PostgresContactRepository{db: db}
}

func (r *PostgresContactRepository) GetByID(ctx context.Context, id string) (*contact.TrustedContact, error) {
	query := `SELECT id, user_id, full_name, email, role, confirmed, created_at
               FROM trusted_contacts WHERE id = $1`
	c := contact.TrustedContact{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.UserID, &c.FullName, &c.Email, &c.Role, &c.Confirmed, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrContactNotFound
		}
		return nil, transient("get trusted contact", err)
	}
	return &c, nil
}

func scanContacts(rows *sql.Rows) ([]*contact.TrustedContact, error) {
	contacts := make([]*contact.TrustedContact, 0)
	for rows.Next() {
		c := contact.TrustedContact{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.FullName, &c.Email, &c.Role, &c.Confirmed, &c.CreatedAt); err != nil {
			return nil, transient("scan trusted contact row", err)
		}
		contacts = append(contacts, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("iterate trusted contacts", err)
	}
	return contacts, nil
}

func (r *PostgresContactRepository) ListConfirmed(ctx context.Context, userID string) ([]*contact.TrustedContact, error) {
	query := `SELECT id, user_id, full_name, email, role, confirmed, created_at
               FROM trusted_contacts
               WHERE user_id = $1 AND confirmed = TRUE
               ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, transient("list confirmed contacts", err)
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (r *PostgresContactRepository) ListConfirmedByRole(ctx context.Context, userID string, role contact.Role) ([]*contact.TrustedContact, error) {
	query := `SELECT id, user_id, full_name, email, role, confirmed, created_at
               FROM trusted_contacts
               WHERE user_id = $1 AND confirmed = TRUE AND role = $2
               ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, userID, role)
	if err != nil {
		return nil, transient("list confirmed contacts by role", err)
	}
	defer rows.Close()
	return scanContacts(rows)
}
