// internal/domain/verification/executor_verification.go
package verification

import "time"

// QuorumStatus is the lifecycle state of an ExecutorVerification.
type QuorumStatus string

const (
	QuorumPending   QuorumStatus = "pending"
	QuorumCompleted QuorumStatus = "completed"
	QuorumExpired   QuorumStatus = "expired"
)

// ExecutorVerification tracks quorum progress for one verification request:
// how many distinct single-use PINs have been redeemed out of how many are
// required. PinsReceived only ever increases, and Status flips to completed
// exactly when PinsReceived reaches PinsRequired; it never regresses.
// Corresponds to the 'executor_verifications' table.
type ExecutorVerification struct {
	ID           string // UUID
	UserID       string
	RequestID    string
	PinsRequired int
	PinsReceived int
	Status       QuorumStatus
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
