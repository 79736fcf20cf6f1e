// internal/domain/retention/repository.go
package retention

import (
	"context"
	"time"
)

// Repository defines persistence operations for content items and their
// monitoring records.
type Repository interface {
	GetItem(ctx context.Context, itemID string) (*ContentItem, error)
	// ListItemsByUserAndKind is used by package generation to collect the
	// user's wills for export.
	ListItemsByUserAndKind(ctx context.Context, userID string, kind ItemKind) ([]*ContentItem, error)

	CreateMonitoring(ctx context.Context, rec *MonitoringRecord) error
	GetMonitoring(ctx context.Context, itemID string) (*MonitoringRecord, error)
	// ListMonitored returns monitoring records still subject to evaluation
	// (status active or grace_period).
	ListMonitored(ctx context.Context) ([]*MonitoringRecord, error)
	// ListDueForDeletion returns records with monitoring_status =
	// deletion_pending whose scheduled_deletion lies at or before now.
	ListDueForDeletion(ctx context.Context, now time.Time) ([]*MonitoringRecord, error)

	// SetGracePeriod stamps grace_period_end on the item and moves both the
	// item and its monitoring record into grace_period.
	SetGracePeriod(ctx context.Context, itemID string, end time.Time) error
	// RecordNotificationTier advances notifications_sent, conditional on
	// the stored value still being below the new tier. False means another
	// scan already dispatched this tier.
	RecordNotificationTier(ctx context.Context, itemID string, tier int) (bool, error)
	// MarkDeletionPending moves the item and record into deletion_pending
	// and stamps scheduled_deletion, conditional on the record not already
	// being past that state.
	MarkDeletionPending(ctx context.Context, itemID string, scheduledAt time.Time) (bool, error)
	// ResetToActive is the subscription-upgrade path: item and record go
	// back to active, grace_period_end and scheduled_deletion are cleared,
	// and the notification bookkeeping is zeroed. deletion_pending items
	// are still recoverable here; deleted ones are not touched.
	ResetToActive(ctx context.Context, itemID string) error

	// ListItemStoragePaths collects every blob path attached to the item
	// (the item's own upload plus its document attachments) so the
	// deletion executor can clear the blob store first.
	ListItemStoragePaths(ctx context.Context, itemID string) ([]string, error)
	// DeleteItemCascade removes the item's dependent metadata rows and the
	// item row itself in one transaction, and marks the monitoring record
	// deleted. Irreversible.
	DeleteItemCascade(ctx context.Context, itemID string) error
}
