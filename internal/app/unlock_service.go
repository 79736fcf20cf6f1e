// internal/app/unlock_service.go
package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"estate_lifecycle_engine/internal/domain/contact"
	"estate_lifecycle_engine/internal/domain/notify"
	"estate_lifecycle_engine/internal/domain/retention"
	"estate_lifecycle_engine/internal/domain/unlock"
	"estate_lifecycle_engine/internal/domain/verification"
	idb "estate_lifecycle_engine/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ExecutorDetails identifies the person redeeming a code or retrieving the
// package. Free-form; the surrounding application has already authenticated
// the session this arrives on.
type ExecutorDetails struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Contact      string `json:"contact"`
}

// WillPackage is the one-time export released after quorum verification.
type WillPackage struct {
	RequestID     string                    `json:"request_id"`
	UserID        string                    `json:"user_id"`
	GeneratedAt   time.Time                 `json:"generated_at"`
	RetrievedBy   ExecutorDetails           `json:"retrieved_by"`
	Wills         []*retention.ContentItem  `json:"wills"`
	Beneficiaries []*contact.TrustedContact `json:"beneficiaries"`
	Executors     []*contact.TrustedContact `json:"executors"`
}

// UnlockService gates release of a will package behind N-of-M single-use
// PIN confirmations from confirmed trusted contacts.
type UnlockService interface {
	CodeIssuer
	Redeem(ctx context.Context, code string, executor ExecutorDetails) error
	GeneratePackage(ctx context.Context, requestID string, executor ExecutorDetails) (*WillPackage, error)
}

// UnlockServiceImpl implements UnlockService.
type UnlockServiceImpl struct {
	verifRepo     verification.Repository
	unlockRepo    unlock.Repository
	contactRepo   contact.Repository
	retentionRepo retention.Repository
	notifier      notify.Notifier
	logger        *logrus.Logger

	quorumSize int           // Upper bound on pins_required
	codeTTL    time.Duration // Lifetime of issued PINs and the quorum session
}

func NewUnlockServiceImpl(
	vr verification.Repository,
	ur unlock.Repository,
	cr contact.Repository,
	rr retention.Repository,
	n notify.Notifier,
	logger *logrus.Logger,
	quorumSize int,
	codeTTL time.Duration,
) *UnlockServiceImpl {
	return &UnlockServiceImpl{
		verifRepo:     vr,
		unlockRepo:    ur,
		contactRepo:   cr,
		retentionRepo: rr,
		notifier:      n,
		logger:        logger,
		quorumSize:    quorumSize,
		codeTTL:       codeTTL,
	}
}

// IssueCodes generates one single-use PIN per confirmed trusted contact and
// opens the quorum session. The pending->initiated transition on the
// request is the exactly-once guard: a caller that loses it no-ops.
func (s *UnlockServiceImpl) IssueCodes(ctx context.Context, requestID string) error {
	req, err := s.verifRepo.GetRequest(ctx, requestID)
	if err != nil {
		if err == idb.ErrRequestNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load verification request %s: %w", requestID, err)
	}

	won, err := s.verifRepo.TransitionRequest(ctx, requestID, verification.RequestPending, verification.RequestInitiated)
	if err != nil {
		return fmt.Errorf("failed to transition request %s to initiated: %w", requestID, err)
	}
	if !won {
		s.logger.Infof("Codes for request %s already issued; skipping", requestID)
		return nil
	}

	contacts, err := s.contactRepo.ListConfirmed(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("failed to list confirmed contacts for user %s: %w", req.UserID, err)
	}
	if len(contacts) == 0 {
		// The request stays initiated with nothing redeemable; it will hit
		// the expiry sweep. Surfacing this loudly is all we can do.
		s.logger.Warnf("User %s has no confirmed contacts; request %s cannot reach quorum", req.UserID, requestID)
		return nil
	}

	pinsRequired := s.quorumSize
	if len(contacts) < pinsRequired {
		pinsRequired = len(contacts)
	}

	now := time.Now()
	ev := &verification.ExecutorVerification{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		RequestID:    requestID,
		PinsRequired: pinsRequired,
		PinsReceived: 0,
		Status:       verification.QuorumPending,
		ExpiresAt:    now.Add(s.codeTTL),
	}
	if err := s.verifRepo.CreateExecutorVerification(ctx, ev); err != nil {
		return fmt.Errorf("failed to create executor verification for request %s: %w", requestID, err)
	}

	codes := make([]*unlock.Code, 0, len(contacts))
	for _, c := range contacts {
		pin, err := newPin()
		if err != nil {
			return fmt.Errorf("failed to generate unlock PIN: %w", err)
		}
		codes = append(codes, &unlock.Code{
			Code:              pin,
			UserID:            req.UserID,
			RequestID:         requestID,
			AssignedContactID: c.ID,
			ExpiresAt:         now.Add(s.codeTTL),
		})
	}
	if err := s.unlockRepo.BulkCreateCodes(ctx, codes); err != nil {
		return fmt.Errorf("failed to persist unlock codes for request %s: %w", requestID, err)
	}
	s.logger.Infof("Issued %d unlock code(s) for request %s (quorum %d)", len(codes), requestID, pinsRequired)

	for i, c := range contacts {
		if err := s.notifier.Send(ctx, notify.Notification{
			UserID: req.UserID,
			Tier:   notify.TierUnlockPin,
			ItemID: requestID,
			Payload: map[string]string{
				"contact_id":    c.ID,
				"contact_email": c.Email,
				"code":          codes[i].Code,
				"expires_at":    codes[i].ExpiresAt.Format(time.RFC3339),
			},
		}); err != nil {
			s.logger.Errorf("Failed to deliver unlock PIN to contact %s for request %s: %v", c.ID, requestID, err)
		}
	}
	return nil
}

// Redeem consumes one unlock code and advances the quorum. Concurrent
// redemption of the same code resolves to exactly one winner; the loser
// gets ErrCodeAlreadyUsed and the pin count moves by exactly one.
func (s *UnlockServiceImpl) Redeem(ctx context.Context, code string, executor ExecutorDetails) error {
	c, err := s.unlockRepo.GetCode(ctx, code)
	if err != nil {
		if err == idb.ErrCodeNotFound {
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("failed to look up unlock code: %w", err)
	}
	now := time.Now()
	if c.Used {
		return ErrCodeAlreadyUsed
	}
	if c.Expired(now) {
		return ErrInvalidOrExpiredCode
	}

	won, err := s.unlockRepo.MarkCodeUsed(ctx, code, executor.Name, now)
	if err != nil {
		return fmt.Errorf("failed to consume unlock code: %w", err)
	}
	if !won {
		return ErrCodeAlreadyUsed
	}

	// Codes are assigned at issuance but deliberately not contact-bound at
	// redemption; a mismatch is only recorded for the audit trail.
	if assigned, aerr := s.contactRepo.GetByID(ctx, c.AssignedContactID); aerr != nil {
		s.logger.Warnf("Could not load assigned contact %s for redemption audit: %v", c.AssignedContactID, aerr)
	} else if !strings.EqualFold(assigned.FullName, executor.Name) {
		s.logger.Warnf("Unlock code for request %s assigned to %q was redeemed by %q", c.RequestID, assigned.FullName, executor.Name)
	} else {
		s.logger.Infof("Unlock code for request %s redeemed by %q", c.RequestID, executor.Name)
	}

	ev, err := s.verifRepo.GetExecutorVerificationByRequest(ctx, c.RequestID)
	if err != nil {
		return fmt.Errorf("failed to load executor verification for request %s: %w", c.RequestID, err)
	}

	received, required, ok, err := s.verifRepo.IncrementPinsReceived(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("failed to increment pin count for verification %s: %w", ev.ID, err)
	}
	if !ok {
		// The quorum session expired or completed between the code update
		// and this one; the code is spent either way.
		s.logger.Warnf("Executor verification %s is no longer pending; code redeemed without effect", ev.ID)
		return ErrInvalidOrExpiredCode
	}
	s.logger.Infof("Quorum progress for request %s: %d/%d", c.RequestID, received, required)

	if received < required {
		return nil
	}

	completed, err := s.verifRepo.CompleteExecutorVerification(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("failed to complete executor verification %s: %w", ev.ID, err)
	}
	if completed {
		if _, err := s.verifRepo.TransitionRequest(ctx, c.RequestID, verification.RequestInitiated, verification.RequestVerified); err != nil {
			return fmt.Errorf("failed to mark request %s verified: %w", c.RequestID, err)
		}
		s.logger.Infof("Quorum satisfied; request %s is verified", c.RequestID)
		s.notifyPackageReady(ctx, c.UserID, c.RequestID)
	}
	return nil
}

func (s *UnlockServiceImpl) notifyPackageReady(ctx context.Context, userID, requestID string) {
	executors, err := s.contactRepo.ListConfirmedByRole(ctx, userID, contact.RoleExecutor)
	if err != nil {
		s.logger.Errorf("Failed to list executors for package-ready notification (user %s): %v", userID, err)
		return
	}
	for _, ex := range executors {
		if err := s.notifier.Send(ctx, notify.Notification{
			UserID: userID,
			Tier:   notify.TierPackageReady,
			ItemID: requestID,
			Payload: map[string]string{
				"contact_id": ex.ID,
			},
		}); err != nil {
			s.logger.Errorf("Failed to send package-ready notification to contact %s: %v", ex.ID, err)
		}
	}
}

// GeneratePackage releases the will package exactly once. The downloaded
// flag flips under a conditional update before any data is assembled, so a
// replay can never obtain a second copy.
func (s *UnlockServiceImpl) GeneratePackage(ctx context.Context, requestID string, executor ExecutorDetails) (*WillPackage, error) {
	req, err := s.verifRepo.GetRequest(ctx, requestID)
	if err != nil {
		if err == idb.ErrRequestNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load verification request %s: %w", requestID, err)
	}
	if req.Downloaded {
		return nil, ErrAlreadyDownloaded
	}
	// completed is the quorum-satisfied state reachable by manual
	// intervention; verified is the normal terminal state. Both release.
	if req.Status != verification.RequestCompleted && req.Status != verification.RequestVerified {
		return nil, ErrVerificationIncomplete
	}

	won, err := s.verifRepo.MarkDownloaded(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark request %s downloaded: %w", requestID, err)
	}
	if !won {
		return nil, ErrAlreadyDownloaded
	}

	wills, err := s.retentionRepo.ListItemsByUserAndKind(ctx, req.UserID, retention.KindWill)
	if err != nil {
		// The flag is already flipped; losing the assembly here needs a
		// support intervention, so shout.
		s.logger.Errorf("Package assembly failed after download flag flip for request %s: %v", requestID, err)
		return nil, fmt.Errorf("failed to collect wills for package: %w", err)
	}
	beneficiaries, err := s.contactRepo.ListConfirmedByRole(ctx, req.UserID, contact.RoleBeneficiary)
	if err != nil {
		s.logger.Errorf("Package assembly failed after download flag flip for request %s: %v", requestID, err)
		return nil, fmt.Errorf("failed to collect beneficiaries for package: %w", err)
	}
	executors, err := s.contactRepo.ListConfirmedByRole(ctx, req.UserID, contact.RoleExecutor)
	if err != nil {
		s.logger.Errorf("Package assembly failed after download flag flip for request %s: %v", requestID, err)
		return nil, fmt.Errorf("failed to collect executors for package: %w", err)
	}

	pkg := &WillPackage{
		RequestID:     requestID,
		UserID:        req.UserID,
		GeneratedAt:   time.Now(),
		RetrievedBy:   executor,
		Wills:         wills,
		Beneficiaries: beneficiaries,
		Executors:     executors,
	}
	s.logger.Infof("Will package generated for request %s (retrieved by %q)", requestID, executor.Name)
	return pkg, nil
}

// newPin returns an 8-digit numeric PIN. Single use plus expiry keeps the
// space adequate; contacts type these by hand.
func newPin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%08d", n.Int64()), nil
}
