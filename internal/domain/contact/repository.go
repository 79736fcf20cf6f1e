// internal/domain/contact/repository.go
package contact

import "context"

// Repository defines read operations over a user's trusted-contact roster.
// Roster CRUD belongs to the surrounding application; the engine only ever
// reads it.
type Repository interface {
	GetByID(ctx context.Context, id string) (*TrustedContact, error)
	// ListConfirmed returns the user's confirmed contacts in every role.
	ListConfirmed(ctx context.Context, userID string) ([]*TrustedContact, error)
	// ListConfirmedByRole narrows ListConfirmed to a single role, e.g. the
	// executors that receive high-priority deceased-report alerts.
	ListConfirmedByRole(ctx context.Context, userID string, role Role) ([]*TrustedContact, error)
}
