// internal/app/retention_service.go
package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"estate_lifecycle_engine/internal/domain/notify"
	"estate_lifecycle_engine/internal/domain/retention"
	"estate_lifecycle_engine/internal/domain/subscription"
	idb "estate_lifecycle_engine/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// RetentionService tracks the grace period of unpaid content and stages
// warnings up to the deletion hand-off.
type RetentionService interface {
	// BeginMonitoring starts retention tracking for a newly created item
	// owned by an unsubscribed user. Safe to call twice.
	BeginMonitoring(ctx context.Context, itemID string) error
	// Evaluate recomputes one item's notification tier and advances its
	// retention state. An active subscription resets the item instead.
	Evaluate(ctx context.Context, itemID string) error
	// Scan evaluates every monitored item; per-item failures are logged
	// and do not abort the batch.
	Scan(ctx context.Context) error
}

// RetentionServiceImpl implements RetentionService.
type RetentionServiceImpl struct {
	repo     retention.Repository
	notifier notify.Notifier
	gate     subscription.Gate
	logger   *logrus.Logger
}

func NewRetentionServiceImpl(
	repo retention.Repository,
	n notify.Notifier,
	gate subscription.Gate,
	logger *logrus.Logger,
) *RetentionServiceImpl {
	return &RetentionServiceImpl{repo: repo, notifier: n, gate: gate, logger: logger}
}

func (s *RetentionServiceImpl) BeginMonitoring(ctx context.Context, itemID string) error {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		if err == idb.ErrItemNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load content item %s: %w", itemID, err)
	}

	active, err := s.gate.IsActive(ctx, item.UserID)
	if err != nil {
		return fmt.Errorf("subscription gate lookup failed for user %s: %w", item.UserID, err)
	}
	if active {
		s.logger.Debugf("User %s is subscribed; item %s is not monitored", item.UserID, itemID)
		return nil
	}

	rec := &retention.MonitoringRecord{
		ItemID:           itemID,
		UserID:           item.UserID,
		MonitoringStatus: retention.ItemActive,
	}
	if err := s.repo.CreateMonitoring(ctx, rec); err != nil {
		if err == idb.ErrMonitoringExists {
			return nil
		}
		return fmt.Errorf("failed to create monitoring record for item %s: %w", itemID, err)
	}

	// The grace window is anchored at creation time, not at monitoring
	// start, so delayed monitoring cannot extend retention.
	end := item.CreatedAt.Add(retention.GracePeriod)
	if err := s.repo.SetGracePeriod(ctx, itemID, end); err != nil {
		return fmt.Errorf("failed to stamp grace period for item %s: %w", itemID, err)
	}
	s.logger.Infof("Monitoring item %s for user %s; grace period ends %s", itemID, item.UserID, end.Format(time.RFC3339))
	return nil
}

func (s *RetentionServiceImpl) Evaluate(ctx context.Context, itemID string) error {
	rec, err := s.repo.GetMonitoring(ctx, itemID)
	if err != nil {
		if err == idb.ErrMonitoringNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load monitoring record for item %s: %w", itemID, err)
	}
	if rec.MonitoringStatus == retention.ItemDeleted || rec.MonitoringStatus == retention.ItemDeletionPending {
		// Already handed off; the deletion executor owns it now.
		return nil
	}

	active, err := s.gate.IsActive(ctx, rec.UserID)
	if err != nil {
		// Deferring is safe; the next scan re-evaluates. No deletion step
		// may proceed on a failed gate lookup.
		s.logger.Warnf("Subscription gate lookup failed for user %s, deferring item %s: %v", rec.UserID, itemID, err)
		return nil
	}
	if active {
		if err := s.repo.ResetToActive(ctx, itemID); err != nil {
			return fmt.Errorf("failed to reset item %s after subscription upgrade: %w", itemID, err)
		}
		s.logger.Infof("Item %s reset to active: user %s subscribed", itemID, rec.UserID)
		return nil
	}

	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		if err == idb.ErrItemNotFound {
			s.logger.Warnf("Monitoring record for item %s has no content item; skipping", itemID)
			return nil
		}
		return fmt.Errorf("failed to load content item %s: %w", itemID, err)
	}

	now := time.Now()
	end := item.CreatedAt.Add(retention.GracePeriod)
	if item.GracePeriodEnd.Valid {
		end = item.GracePeriodEnd.Time
	} else {
		if err := s.repo.SetGracePeriod(ctx, itemID, end); err != nil {
			return fmt.Errorf("failed to stamp grace period for item %s: %w", itemID, err)
		}
	}

	tier := retention.TierFor(end, now)
	if tier == retention.TierFinalWarning {
		won, err := s.repo.MarkDeletionPending(ctx, itemID, now)
		if err != nil {
			return fmt.Errorf("failed to mark item %s deletion pending: %w", itemID, err)
		}
		if won {
			s.logger.Infof("Item %s grace period elapsed; scheduled for deletion", itemID)
			s.dispatchTier(ctx, rec, item, tier, end, now)
		}
		return nil
	}

	if int(tier) > rec.NotificationsSent {
		// The conditional update makes the dispatch at-most-once even when
		// two scans see the same stale bookkeeping.
		won, err := s.repo.RecordNotificationTier(ctx, itemID, int(tier))
		if err != nil {
			return fmt.Errorf("failed to record notification tier for item %s: %w", itemID, err)
		}
		if won {
			s.dispatchTier(ctx, rec, item, tier, end, now)
		}
	}
	return nil
}

func (s *RetentionServiceImpl) dispatchTier(ctx context.Context, rec *retention.MonitoringRecord, item *retention.ContentItem, tier retention.Tier, end, now time.Time) {
	hoursRemaining := end.Sub(now).Hours()
	if hoursRemaining < 0 {
		hoursRemaining = 0
	}
	err := s.notifier.Send(ctx, notify.Notification{
		UserID: rec.UserID,
		Tier:   tier.String(),
		ItemID: item.ID,
		Payload: map[string]string{
			"item_kind":        string(item.Kind),
			"item_title":       item.Title,
			"hours_remaining":  strconv.FormatFloat(hoursRemaining, 'f', 1, 64),
			"grace_period_end": end.Format(time.RFC3339),
		},
	})
	if err != nil {
		// At-most-once-attempted: the tier bookkeeping already advanced
		// and is not rolled back for a delivery failure.
		s.logger.Errorf("Failed to send '%s' notification for item %s: %v", tier, item.ID, err)
	} else {
		s.logger.Infof("Sent '%s' notification for item %s (%.1fh remaining)", tier, item.ID, hoursRemaining)
	}
}

func (s *RetentionServiceImpl) Scan(ctx context.Context) error {
	records, err := s.repo.ListMonitored(ctx)
	if err != nil {
		s.logger.Errorf("Failed to list monitored items: %v", err)
		return fmt.Errorf("failed to list monitored items: %w", err)
	}
	if len(records) > 0 {
		s.logger.Debugf("Retention scan evaluating %d item(s)", len(records))
	}

	for _, rec := range records {
		if err := s.Evaluate(ctx, rec.ItemID); err != nil {
			if idb.IsTransient(err) {
				s.logger.Warnf("Transient store failure evaluating item %s; will retry next scan: %v", rec.ItemID, err)
			} else {
				s.logger.Errorf("Failed to evaluate item %s: %v", rec.ItemID, err)
			}
		}
	}
	return nil
}
