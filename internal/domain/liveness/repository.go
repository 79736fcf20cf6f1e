// internal/domain/liveness/repository.go
package liveness

import (
	"context"
	"time"
)

// Repository defines persistence operations for CheckInSchedule and
// CheckInRecord.
type Repository interface {
	// Schedule methods
	GetSchedule(ctx context.Context, userID string) (*CheckInSchedule, error)
	// ListOverdueSchedules returns enabled schedules whose deadline
	// (next_check_in + grace_period_days) lies before now.
	ListOverdueSchedules(ctx context.Context, now time.Time) ([]*CheckInSchedule, error)
	// AdvanceSchedule moves next_check_in forward after a successful
	// check-in response.
	AdvanceSchedule(ctx context.Context, userID string, nextCheckIn time.Time) error

	// Record methods
	CreateRecord(ctx context.Context, rec *CheckInRecord) error
	GetRecordByToken(ctx context.Context, token string) (*CheckInRecord, error)
	// MarkRecordResponded sets responded_at under the condition that it is
	// still NULL. Returns false when another caller already consumed the
	// token (lost the race or a repeated submission).
	MarkRecordResponded(ctx context.Context, recordID int64, respondedAt time.Time) (bool, error)
	LatestRecord(ctx context.Context, userID string) (*CheckInRecord, error)
}
