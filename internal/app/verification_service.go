// internal/app/verification_service.go
package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"estate_lifecycle_engine/internal/domain/contact"
	"estate_lifecycle_engine/internal/domain/liveness"
	"estate_lifecycle_engine/internal/domain/notify"
	"estate_lifecycle_engine/internal/domain/subscription"
	"estate_lifecycle_engine/internal/domain/verification"
	idb "estate_lifecycle_engine/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// VerificationService drives the per-user dead-man's-switch workflow.
type VerificationService interface {
	// Scan walks every enabled check-in schedule, escalates users that
	// missed their deadline, and brings trusted contacts in for requests
	// whose warning window has elapsed. It is idempotent: a second scan in
	// immediate succession finds the open requests the first one created
	// and no-ops.
	Scan(ctx context.Context) error
	// RecordLivenessResponse consumes a response token from a liveness
	// notification. 'alive' resets the schedule; 'deceased' escalates
	// straight to trusted contacts and alerts executors.
	RecordLivenessResponse(ctx context.Context, token string, response liveness.Response) error
	// CheckExpiry marks timed-out verification requests and executor
	// verifications expired. Expired work is never auto-retried.
	CheckExpiry(ctx context.Context) error
}

// CodeIssuer is the slice of the unlock manager the verification machine
// needs: turning a pending request into an initiated one with PINs in
// contacts' hands.
type CodeIssuer interface {
	IssueCodes(ctx context.Context, requestID string) error
}

// VerificationServiceImpl implements VerificationService.
type VerificationServiceImpl struct {
	livenessRepo liveness.Repository
	verifRepo    verification.Repository
	contactRepo  contact.Repository
	issuer       CodeIssuer
	notifier     notify.Notifier
	gate         subscription.Gate
	logger       *logrus.Logger

	verificationTTL    time.Duration // Lifetime of a newly created request
	contactNotifyDelay time.Duration // Pending-request age before contacts are notified
}

func NewVerificationServiceImpl(
	lr liveness.Repository,
	vr verification.Repository,
	cr contact.Repository,
	issuer CodeIssuer,
	n notify.Notifier,
	gate subscription.Gate,
	logger *logrus.Logger,
	verificationTTL time.Duration,
	contactNotifyDelay time.Duration,
) *VerificationServiceImpl {
	return &VerificationServiceImpl{
		livenessRepo:       lr,
		verifRepo:          vr,
		contactRepo:        cr,
		issuer:             issuer,
		notifier:           n,
		gate:               gate,
		logger:             logger,
		verificationTTL:    verificationTTL,
		contactNotifyDelay: contactNotifyDelay,
	}
}

func (s *VerificationServiceImpl) Scan(ctx context.Context) error {
	now := time.Now()

	overdue, err := s.livenessRepo.ListOverdueSchedules(ctx, now)
	if err != nil {
		s.logger.Errorf("Failed to list overdue check-in schedules: %v", err)
		return fmt.Errorf("failed to list overdue schedules: %w", err)
	}
	if len(overdue) > 0 {
		s.logger.Infof("Liveness scan found %d overdue schedule(s)", len(overdue))
	}

	for _, sched := range overdue {
		if err := s.escalateOverdueSchedule(ctx, sched, now); err != nil {
			// Per-user isolation: one user's failure must not starve the
			// rest of the batch.
			s.logger.Errorf("Failed to escalate overdue schedule for user %s: %v", sched.UserID, err)
		}
	}

	// Second stage: pending requests whose user-facing warning window has
	// elapsed without a liveness response get handed to trusted contacts.
	cutoff := now.Add(-s.contactNotifyDelay)
	pending, err := s.verifRepo.ListRequestsForEscalation(ctx, cutoff)
	if err != nil {
		s.logger.Errorf("Failed to list requests for contact escalation: %v", err)
		return fmt.Errorf("failed to list requests for escalation: %w", err)
	}
	for _, req := range pending {
		if err := s.escalateToContacts(ctx, req, now); err != nil {
			s.logger.Errorf("Failed to escalate request %s to contacts: %v", req.ID, err)
		}
	}

	return nil
}

// escalateOverdueSchedule moves one user from ACTIVE to
// VERIFICATION_TRIGGERED: creates the open request, appends the history
// record, and notifies the user with a fresh response token.
func (s *VerificationServiceImpl) escalateOverdueSchedule(ctx context.Context, sched *liveness.CheckInSchedule, now time.Time) error {
	active, err := s.gate.IsActive(ctx, sched.UserID)
	if err != nil {
		// No irreversible step on missing information; the next scan
		// retries this user.
		s.logger.Warnf("Subscription gate lookup failed for user %s, skipping this cycle: %v", sched.UserID, err)
		return nil
	}
	if active {
		s.logger.Debugf("User %s has an active subscription; liveness enforcement short-circuited", sched.UserID)
		return nil
	}

	_, err = s.verifRepo.GetOpenRequestByUser(ctx, sched.UserID)
	if err == nil {
		// Already escalated; an earlier or concurrent scan got here first.
		s.logger.Debugf("User %s already has an open verification request; skipping", sched.UserID)
		return nil
	}
	if err != idb.ErrRequestNotFound {
		return fmt.Errorf("failed to check open request for user %s: %w", sched.UserID, err)
	}

	req := &verification.Request{
		ID:        uuid.NewString(),
		UserID:    sched.UserID,
		Status:    verification.RequestPending,
		Source:    verification.SourceMissedCheckIn,
		ExpiresAt: now.Add(s.verificationTTL),
	}
	if err := s.verifRepo.CreateRequest(ctx, req); err != nil {
		if err == idb.ErrOpenRequestExists {
			// A concurrent scan won the insert race; that scan owns the
			// escalation.
			s.logger.Infof("Concurrent scan already created a verification request for user %s", sched.UserID)
			return nil
		}
		return fmt.Errorf("failed to create verification request: %w", err)
	}
	s.logger.Infof("Created verification request %s for user %s (deadline was %s)",
		req.ID, sched.UserID, sched.Deadline().Format(time.RFC3339))

	token, err := newResponseToken()
	if err != nil {
		return fmt.Errorf("failed to generate response token: %w", err)
	}
	rec := &liveness.CheckInRecord{
		UserID:        sched.UserID,
		CheckedInAt:   now,
		NextCheckIn:   sched.NextCheckIn,
		Status:        liveness.StatusVerificationTriggered,
		ResponseToken: token,
	}
	if err := s.livenessRepo.CreateRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to append verification_triggered record: %w", err)
	}

	if err := s.notifier.Send(ctx, notify.Notification{
		UserID: sched.UserID,
		Tier:   notify.TierCheckInMissed,
		ItemID: req.ID,
		Payload: map[string]string{
			"response_token": token,
			"deadline":       sched.Deadline().Format(time.RFC3339),
		},
	}); err != nil {
		// Best effort; the open request keeps the workflow alive even if
		// this notification is lost.
		s.logger.Errorf("Failed to send missed-check-in notification to user %s: %v", sched.UserID, err)
	}
	return nil
}

// escalateToContacts performs the VERIFICATION_TRIGGERED ->
// TRUSTED_CONTACTS_NOTIFIED transition for one request.
func (s *VerificationServiceImpl) escalateToContacts(ctx context.Context, req *verification.Request, now time.Time) error {
	active, err := s.gate.IsActive(ctx, req.UserID)
	if err != nil {
		s.logger.Warnf("Subscription gate lookup failed for user %s, deferring contact escalation: %v", req.UserID, err)
		return nil
	}
	if active {
		s.logger.Debugf("User %s regained an active subscription; deferring contact escalation", req.UserID)
		return nil
	}

	if err := s.issuer.IssueCodes(ctx, req.ID); err != nil {
		return fmt.Errorf("failed to issue unlock codes for request %s: %w", req.ID, err)
	}

	token, err := newResponseToken()
	if err != nil {
		return fmt.Errorf("failed to generate response token: %w", err)
	}
	rec := &liveness.CheckInRecord{
		UserID:        req.UserID,
		CheckedInAt:   now,
		NextCheckIn:   s.lastDeadline(ctx, req.UserID, now),
		Status:        liveness.StatusTrustedContactsNotified,
		ResponseToken: token,
	}
	if err := s.livenessRepo.CreateRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to append trusted_contacts_notified record: %w", err)
	}
	s.logger.Infof("Request %s escalated to trusted contacts for user %s", req.ID, req.UserID)
	return nil
}

// lastDeadline carries the previous record's next_check_in forward so the
// history keeps showing the deadline that was blown. Falls back to now for
// users with no prior records.
func (s *VerificationServiceImpl) lastDeadline(ctx context.Context, userID string, now time.Time) time.Time {
	last, err := s.livenessRepo.LatestRecord(ctx, userID)
	if err != nil {
		if err != idb.ErrRecordNotFound {
			s.logger.Warnf("Failed to load latest check-in record for user %s: %v", userID, err)
		}
		return now
	}
	return last.NextCheckIn
}

func (s *VerificationServiceImpl) RecordLivenessResponse(ctx context.Context, token string, response liveness.Response) error {
	if !response.Valid() {
		return fmt.Errorf("unknown liveness response %q", response)
	}

	rec, err := s.livenessRepo.GetRecordByToken(ctx, token)
	if err != nil {
		if err == idb.ErrRecordNotFound {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to resolve liveness token: %w", err)
	}
	if rec.RespondedAt.Valid {
		return ErrAlreadyResponded
	}

	now := time.Now()
	won, err := s.livenessRepo.MarkRecordResponded(ctx, rec.ID, now)
	if err != nil {
		return fmt.Errorf("failed to consume liveness token: %w", err)
	}
	if !won {
		// Someone consumed the token between our read and our write.
		return ErrAlreadyResponded
	}

	switch response {
	case liveness.ResponseAlive:
		return s.resetToActive(ctx, rec.UserID, now)
	default:
		return s.processDeceasedReport(ctx, rec.UserID, now)
	}
}

// resetToActive handles an 'alive' response: the schedule advances by its
// frequency and any open verification request is closed.
func (s *VerificationServiceImpl) resetToActive(ctx context.Context, userID string, now time.Time) error {
	sched, err := s.livenessRepo.GetSchedule(ctx, userID)
	if err != nil {
		if err == idb.ErrScheduleNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load schedule for user %s: %w", userID, err)
	}

	next := now.AddDate(0, 0, sched.FrequencyDays)
	if err := s.livenessRepo.AdvanceSchedule(ctx, userID, next); err != nil {
		return fmt.Errorf("failed to advance schedule for user %s: %w", userID, err)
	}

	if req, err := s.verifRepo.GetOpenRequestByUser(ctx, userID); err == nil {
		// A check-in response before VERIFIED resets the workflow; the
		// open request is closed and never auto-retried.
		won, terr := s.verifRepo.TransitionRequest(ctx, req.ID, req.Status, verification.RequestExpired)
		if terr != nil {
			s.logger.Errorf("Failed to close verification request %s after liveness response: %v", req.ID, terr)
		} else if won {
			s.logger.Infof("Closed verification request %s: user %s responded alive", req.ID, userID)
		}
	} else if err != idb.ErrRequestNotFound {
		s.logger.Errorf("Failed to look up open request for user %s during reset: %v", userID, err)
	}

	token, err := newResponseToken()
	if err != nil {
		return fmt.Errorf("failed to generate response token: %w", err)
	}
	rec := &liveness.CheckInRecord{
		UserID:        userID,
		CheckedInAt:   now,
		NextCheckIn:   next,
		Status:        liveness.StatusPending,
		ResponseToken: token,
	}
	if err := s.livenessRepo.CreateRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to append check-in record: %w", err)
	}
	s.logger.Infof("User %s checked in; next check-in due %s", userID, next.Format(time.RFC3339))
	return nil
}

// processDeceasedReport bypasses the deadline check: the workflow jumps
// straight to TRUSTED_CONTACTS_NOTIFIED and executors receive a
// high-priority alert.
func (s *VerificationServiceImpl) processDeceasedReport(ctx context.Context, userID string, now time.Time) error {
	req, err := s.verifRepo.GetOpenRequestByUser(ctx, userID)
	if err == idb.ErrRequestNotFound {
		req = &verification.Request{
			ID:          uuid.NewString(),
			UserID:      userID,
			Status:      verification.RequestPending,
			Source:      verification.SourceDeceasedReport,
			InitiatedBy: sql.NullString{String: "liveness_response", Valid: true},
			ExpiresAt:   now.Add(s.verificationTTL),
		}
		if cerr := s.verifRepo.CreateRequest(ctx, req); cerr != nil {
			if cerr != idb.ErrOpenRequestExists {
				return fmt.Errorf("failed to create verification request for deceased report: %w", cerr)
			}
			// Lost the insert race; the rest of the escalation continues
			// against the winning request.
			req, err = s.verifRepo.GetOpenRequestByUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to load open request after losing insert race: %w", err)
			}
		}
	} else if err != nil {
		return fmt.Errorf("failed to look up open request for user %s: %w", userID, err)
	}
	s.logger.Warnf("Deceased report recorded for user %s (request %s)", userID, req.ID)

	if err := s.issuer.IssueCodes(ctx, req.ID); err != nil {
		return fmt.Errorf("failed to issue unlock codes after deceased report: %w", err)
	}

	token, err := newResponseToken()
	if err != nil {
		return fmt.Errorf("failed to generate response token: %w", err)
	}
	rec := &liveness.CheckInRecord{
		UserID:        userID,
		CheckedInAt:   now,
		NextCheckIn:   s.lastDeadline(ctx, userID, now),
		Status:        liveness.StatusTrustedContactsNotified,
		ResponseToken: token,
	}
	if err := s.livenessRepo.CreateRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to append trusted_contacts_notified record: %w", err)
	}

	executors, err := s.contactRepo.ListConfirmedByRole(ctx, userID, contact.RoleExecutor)
	if err != nil {
		s.logger.Errorf("Failed to list executors for user %s: %v", userID, err)
		return nil // Codes are out; the alert is best effort
	}
	for _, ex := range executors {
		if err := s.notifier.Send(ctx, notify.Notification{
			UserID: userID,
			Tier:   notify.TierExecutorAlert,
			ItemID: req.ID,
			Payload: map[string]string{
				"contact_id": ex.ID,
				"priority":   "high",
			},
		}); err != nil {
			s.logger.Errorf("Failed to alert executor %s for user %s: %v", ex.ID, userID, err)
		}
	}
	return nil
}

func (s *VerificationServiceImpl) CheckExpiry(ctx context.Context) error {
	now := time.Now()

	expiredReqs, err := s.verifRepo.ExpireOpenRequests(ctx, now)
	if err != nil {
		s.logger.Errorf("Failed to expire open verification requests: %v", err)
		return fmt.Errorf("failed to expire open requests: %w", err)
	}
	expiredEVs, err := s.verifRepo.ExpirePendingVerifications(ctx, now)
	if err != nil {
		s.logger.Errorf("Failed to expire pending executor verifications: %v", err)
		return fmt.Errorf("failed to expire pending executor verifications: %w", err)
	}

	if expiredReqs > 0 || expiredEVs > 0 {
		s.logger.Infof("Expiry sweep closed %d verification request(s) and %d executor verification(s)", expiredReqs, expiredEVs)
	}
	return nil
}

// newResponseToken returns a 64-character hex token for liveness
// notifications.
func newResponseToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
