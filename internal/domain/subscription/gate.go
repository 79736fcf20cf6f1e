// internal/domain/subscription/gate.go
package subscription

import "context"

// Status mirrors the billing system's view of a user. The engine never
// writes it.
type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusNone     Status = "none"
)

// Enforced reports whether retention/verification enforcement applies.
// Active and trialing subscribers are exempt.
func (s Status) Enforced() bool {
	return s != StatusActive && s != StatusTrialing
}

// Gate is the read-only subscription lookup both engines consult before
// every enforcement decision.
type Gate interface {
	IsActive(ctx context.Context, userID string) (bool, error)
}
