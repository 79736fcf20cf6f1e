// internal/app/errors.go
package app

import "fmt"

// Validation errors returned to callers for user-facing display. The HTTP
// layer collapses the code-related ones into a single generic message so
// that callers cannot probe account state, but the engine keeps them
// distinct internally.
var ErrInvalidToken = fmt.Errorf("liveness token is unknown or does not match a pending notification")
var ErrAlreadyResponded = fmt.Errorf("liveness notification has already been responded to")
var ErrInvalidOrExpiredCode = fmt.Errorf("unlock code is invalid or expired")
var ErrCodeAlreadyUsed = fmt.Errorf("unlock code has already been used")
var ErrAlreadyDownloaded = fmt.Errorf("will package has already been downloaded")
var ErrVerificationIncomplete = fmt.Errorf("verification request has not reached the required quorum")
var ErrNotFound = fmt.Errorf("requested user or item does not exist")
