// internal/domain/verification/request.go
package verification

import (
	"database/sql"
	"time"
)

// RequestStatus is the lifecycle state of a VerificationRequest.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"   // Created, user not yet escalated to contacts
	RequestInitiated RequestStatus = "initiated" // Codes issued to trusted contacts
	RequestCompleted RequestStatus = "completed" // Quorum satisfied
	RequestVerified  RequestStatus = "verified"  // Terminal; package generable
	RequestExpired   RequestStatus = "expired"   // Timed out; requires manual re-initiation
)

// RequestSource records what started a verification workflow.
type RequestSource string

const (
	SourceMissedCheckIn  RequestSource = "missed_checkin"
	SourceDeceasedReport RequestSource = "deceased_report"
)

// Request is a single dead-man's-switch verification workflow for a user.
// At most one request with status pending or initiated may exist per user
// at a time; the 'verification_requests' table enforces this with a partial
// unique index so that concurrent scans cannot double-escalate.
type Request struct {
	ID          string // UUID
	UserID      string
	Status      RequestStatus
	Source      RequestSource
	InitiatedBy sql.NullString // Contact or system actor that reported, when applicable
	ExpiresAt   time.Time
	Downloaded  bool // Set once generatePackage has released the export
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Open reports whether the request still occupies the per-user uniqueness
// slot (i.e. blocks creation of another request).
func (r *Request) Open() bool {
	return r.Status == RequestPending || r.Status == RequestInitiated
}
