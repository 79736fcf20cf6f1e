// internal/domain/contact/contact.go
package contact

import "time"

// Role describes how a trusted contact participates in the estate workflow.
type Role string

const (
	RoleTrustedContact Role = "trusted_contact"
	RoleExecutor       Role = "executor"
	RoleBeneficiary    Role = "beneficiary"
)

// TrustedContact is a person the user has designated to take part in
// verification and unlock. Only confirmed contacts are eligible PIN
// recipients.
// Corresponds to the 'trusted_contacts' table.
type TrustedContact struct {
	ID        string // UUID
	UserID    string
	FullName  string
	Email     string
	Role      Role
	Confirmed bool
	CreatedAt time.Time
}
