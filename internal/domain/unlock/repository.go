// internal/domain/unlock/repository.go
package unlock

import (
	"context"
	"time"
)

// Repository defines persistence operations for unlock codes.
type Repository interface {
	BulkCreateCodes(ctx context.Context, codes []*Code) error
	// GetCode fetches a code regardless of its used/expired state so the
	// service can report the precise failure category.
	GetCode(ctx context.Context, code string) (*Code, error)
	// MarkCodeUsed consumes the code under the condition used=false and
	// expires_at>now. Returns false when the code was already consumed or
	// lapsed between lookup and update.
	MarkCodeUsed(ctx context.Context, code string, usedBy string, now time.Time) (bool, error)
}
