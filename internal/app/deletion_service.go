// internal/app/deletion_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"estate_lifecycle_engine/internal/domain/notify"
	"estate_lifecycle_engine/internal/domain/retention"
	"estate_lifecycle_engine/internal/domain/storage"
	"estate_lifecycle_engine/internal/domain/subscription"

	"github.com/sirupsen/logrus"
)

// DeletionService performs the irreversible cascade once the retention
// engine marks an item deletion_pending.
type DeletionService interface {
	// Execute deletes every item whose scheduled deletion has arrived.
	// One item's failure never aborts the batch.
	Execute(ctx context.Context) error
}

// DeletionServiceImpl implements DeletionService.
type DeletionServiceImpl struct {
	repo     retention.Repository
	blobs    storage.Storage
	notifier notify.Notifier
	gate     subscription.Gate
	logger   *logrus.Logger
}

func NewDeletionServiceImpl(
	repo retention.Repository,
	blobs storage.Storage,
	n notify.Notifier,
	gate subscription.Gate,
	logger *logrus.Logger,
) *DeletionServiceImpl {
	return &DeletionServiceImpl{repo: repo, blobs: blobs, notifier: n, gate: gate, logger: logger}
}

func (s *DeletionServiceImpl) Execute(ctx context.Context) error {
	now := time.Now()
	due, err := s.repo.ListDueForDeletion(ctx, now)
	if err != nil {
		s.logger.Errorf("Failed to list items due for deletion: %v", err)
		return fmt.Errorf("failed to list items due for deletion: %w", err)
	}
	if len(due) == 0 {
		return nil
	}
	s.logger.Infof("Deletion executor processing %d item(s)", len(due))

	var deleted int
	for _, rec := range due {
		// Last gate check before the irreversible step. A subscription
		// activated any time before this moment, even with the item already
		// deletion_pending, restores it instead.
		active, err := s.gate.IsActive(ctx, rec.UserID)
		if err != nil {
			s.logger.Warnf("Subscription gate lookup failed for user %s, deferring item %s: %v", rec.UserID, rec.ItemID, err)
			continue
		}
		if active {
			if err := s.repo.ResetToActive(ctx, rec.ItemID); err != nil {
				s.logger.Errorf("Failed to restore item %s after subscription upgrade: %v", rec.ItemID, err)
				continue
			}
			s.logger.Infof("Item %s restored from deletion_pending: user %s subscribed", rec.ItemID, rec.UserID)
			continue
		}

		if err := s.deleteItem(ctx, rec); err != nil {
			// Partial-failure isolation: log and move on; the record stays
			// deletion_pending and the next run retries it.
			s.logger.Errorf("Failed to delete item %s: %v", rec.ItemID, err)
			continue
		}
		deleted++
	}
	s.logger.Infof("Deletion executor finished: %d/%d item(s) deleted", deleted, len(due))
	return nil
}

func (s *DeletionServiceImpl) deleteItem(ctx context.Context, rec *retention.MonitoringRecord) error {
	// Blobs first. If the blob store fails the database rows survive and
	// the run converges on retry; the reverse order could leak orphaned
	// files forever.
	paths, err := s.repo.ListItemStoragePaths(ctx, rec.ItemID)
	if err != nil {
		return fmt.Errorf("failed to collect storage paths: %w", err)
	}
	if len(paths) > 0 {
		if err := s.blobs.Delete(ctx, paths); err != nil {
			return fmt.Errorf("failed to delete stored files: %w", err)
		}
	}

	if err := s.repo.DeleteItemCascade(ctx, rec.ItemID); err != nil {
		return fmt.Errorf("failed to cascade delete: %w", err)
	}
	s.logger.Infof("Item %s deleted (user %s, %d blob(s))", rec.ItemID, rec.UserID, len(paths))

	if err := s.notifier.Send(ctx, notify.Notification{
		UserID: rec.UserID,
		Tier:   notify.TierDeleted,
		ItemID: rec.ItemID,
		Payload: map[string]string{
			"deleted_at": time.Now().Format(time.RFC3339),
		},
	}); err != nil {
		s.logger.Errorf("Failed to send deletion notification for item %s: %v", rec.ItemID, err)
	}
	return nil
}
