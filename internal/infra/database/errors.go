// internal/infra/database/errors.go
package database

import (
	"errors"
	"fmt"
)

// Sentinel not-found errors. Services compare against these to distinguish
// "row missing" from an I/O failure.
var ErrScheduleNotFound = fmt.Errorf("check-in schedule not found")
var ErrRecordNotFound = fmt.Errorf("check-in record not found")
var ErrRequestNotFound = fmt.Errorf("verification request not found")
var ErrOpenRequestExists = fmt.Errorf("an open verification request already exists for this user")
var ErrExecutorVerificationNotFound = fmt.Errorf("executor verification not found")
var ErrContactNotFound = fmt.Errorf("trusted contact not found")
var ErrCodeNotFound = fmt.Errorf("unlock code not found")
var ErrItemNotFound = fmt.Errorf("content item not found")
var ErrMonitoringNotFound = fmt.Errorf("monitoring record not found")
var ErrMonitoringExists = fmt.Errorf("monitoring record already exists for this item")

// TransientStoreError wraps an unexpected datastore failure. Batch scans
// catch it per item and keep going; it is never shown to end users.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store failure during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientStoreError.
func IsTransient(err error) bool {
	var t *TransientStoreError
	return errors.As(err, &t)
}

func transient(op string, err error) error {
	return &TransientStoreError{Op: op, Err: err}
}
