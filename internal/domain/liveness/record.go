// internal/domain/liveness/record.go
package liveness

import (
	"database/sql"
	"time"
)

// RecordStatus represents where a user sits in the dead-man's-switch
// workflow as of their latest check-in record.
type RecordStatus string

const (
	StatusPending                 RecordStatus = "pending"
	StatusTrustedContactsNotified RecordStatus = "trusted_contacts_notified"
	StatusVerificationTriggered   RecordStatus = "verification_triggered"
)

// CheckInRecord is an append-only history entry. A new record is written on
// every successful check-in and on every escalation step; the latest record
// for a user is authoritative for the state machine.
// Corresponds to the 'check_in_records' table.
type CheckInRecord struct {
	ID            int64
	UserID        string
	CheckedInAt   time.Time
	NextCheckIn   time.Time
	Status        RecordStatus
	ResponseToken string       // Opaque token embedded in liveness notifications
	RespondedAt   sql.NullTime // Set exactly once when the token is consumed
	CreatedAt     time.Time
}
