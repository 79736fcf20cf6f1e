// internal/domain/verification/repository.go
package verification

import (
	"context"
	"time"
)

// Repository defines persistence operations for verification requests and
// their quorum tracking records.
type Repository interface {
	// Request methods
	// CreateRequest inserts a new request. When an open (pending/initiated)
	// request already exists for the user the partial unique index rejects
	// the insert and ErrOpenRequestExists is returned.
	CreateRequest(ctx context.Context, req *Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)
	GetOpenRequestByUser(ctx context.Context, userID string) (*Request, error)
	// ListRequestsForEscalation returns pending requests created at or
	// before the cutoff, i.e. those whose user-facing warning window has
	// elapsed without a liveness response.
	ListRequestsForEscalation(ctx context.Context, createdBefore time.Time) ([]*Request, error)
	// TransitionRequest performs a compare-and-set status update. It
	// returns false when the request was not in the expected status, which
	// callers treat as having lost the race.
	TransitionRequest(ctx context.Context, id string, from, to RequestStatus) (bool, error)
	// MarkDownloaded flips the downloaded flag, conditional on the request
	// being completed or verified and not yet downloaded. False means the
	// export was already retrieved.
	MarkDownloaded(ctx context.Context, id string) (bool, error)
	// ExpireOpenRequests marks every pending/initiated request whose
	// expires_at lies before now as expired, returning how many rows were
	// affected.
	ExpireOpenRequests(ctx context.Context, now time.Time) (int64, error)

	// ExecutorVerification methods
	CreateExecutorVerification(ctx context.Context, ev *ExecutorVerification) error
	GetExecutorVerificationByRequest(ctx context.Context, requestID string) (*ExecutorVerification, error)
	// IncrementPinsReceived adds one to pins_received conditional on the
	// verification still being pending, returning the updated counters.
	// ok is false when the verification was not pending (expired or
	// already completed).
	IncrementPinsReceived(ctx context.Context, id string) (received int, required int, ok bool, err error)
	// CompleteExecutorVerification flips pending to completed.
	CompleteExecutorVerification(ctx context.Context, id string) (bool, error)
	// ExpirePendingVerifications marks timed-out pending verifications as
	// expired, returning how many rows were affected.
	ExpirePendingVerifications(ctx context.Context, now time.Time) (int64, error)
}
