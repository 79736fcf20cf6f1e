// internal/domain/unlock/code.go
package unlock

import (
	"database/sql"
	"time"
)

// Code is a single-use unlock PIN issued to one trusted contact when a
// verification request escalates. It is consumed exactly once: redemption
// is a compare-and-set on used=false, so concurrent attempts against the
// same code resolve to one winner.
// Corresponds to the 'unlock_codes' table.
type Code struct {
	Code              string // The PIN itself; primary key
	UserID            string
	RequestID         string
	AssignedContactID string
	Used              bool
	UsedBy            sql.NullString // Free-form identity supplied at redemption
	UsedAt            sql.NullTime
	ExpiresAt         time.Time
	CreatedAt         time.Time
}

// Expired reports whether the code can no longer be redeemed on time
// grounds alone.
func (c *Code) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
