// internal/app/fakes_test.go
package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"estate_lifecycle_engine/internal/domain/contact"
	"estate_lifecycle_engine/internal/domain/liveness"
	"estate_lifecycle_engine/internal/domain/notify"
	"estate_lifecycle_engine/internal/domain/retention"
	"estate_lifecycle_engine/internal/domain/unlock"
	"estate_lifecycle_engine/internal/domain/verification"
	idb "estate_lifecycle_engine/internal/infra/database"
)

// In-memory fakes mirroring the repositories' conditional-update semantics.
// Mutexes let tests exercise concurrent paths (e.g. double redemption).

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// --- subscription gate ---

type fakeGate struct {
	mu     sync.Mutex
	active map[string]bool
	err    error
}

func newFakeGate() *fakeGate {
	return &fakeGate{active: make(map[string]bool)}
}

func (g *fakeGate) IsActive(_ context.Context, userID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	return g.active[userID], nil
}

// --- notifier ---

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	fail bool
}

func (n *fakeNotifier) Send(_ context.Context, msg notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return fmt.Errorf("notifier unavailable")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) byTier(tier string) []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Notification
	for _, msg := range n.sent {
		if msg.Tier == tier {
			out = append(out, msg)
		}
	}
	return out
}

// --- liveness repository ---

type fakeLivenessRepo struct {
	mu        sync.Mutex
	schedules map[string]*liveness.CheckInSchedule
	records   []*liveness.CheckInRecord
	nextID    int64
}

func newFakeLivenessRepo() *fakeLivenessRepo {
	return &fakeLivenessRepo{schedules: make(map[string]*liveness.CheckInSchedule)}
}

func (r *fakeLivenessRepo) GetSchedule(_ context.Context, userID string) (*liveness.CheckInSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[userID]
	if !ok {
		return nil, idb.ErrScheduleNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeLivenessRepo) ListOverdueSchedules(_ context.Context, now time.Time) ([]*liveness.CheckInSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*liveness.CheckInSchedule
	for _, s := range r.schedules {
		if s.Overdue(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeLivenessRepo) AdvanceSchedule(_ context.Context, userID string, next time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[userID]
	if !ok {
		return idb.ErrScheduleNotFound
	}
	s.NextCheckIn = next
	return nil
}

func (r *fakeLivenessRepo) CreateRecord(_ context.Context, rec *liveness.CheckInRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rec.ID = r.nextID
	rec.CreatedAt = time.Now()
	cp := *rec
	r.records = append(r.records, &cp)
	return nil
}

func (r *fakeLivenessRepo) GetRecordByToken(_ context.Context, token string) (*liveness.CheckInRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ResponseToken == token {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, idb.ErrRecordNotFound
}

func (r *fakeLivenessRepo) MarkRecordResponded(_ context.Context, recordID int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == recordID {
			if rec.RespondedAt.Valid {
				return false, nil
			}
			rec.RespondedAt.Time = at
			rec.RespondedAt.Valid = true
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeLivenessRepo) LatestRecord(_ context.Context, userID string) (*liveness.CheckInRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].UserID == userID {
			cp := *r.records[i]
			return &cp, nil
		}
	}
	return nil, idb.ErrRecordNotFound
}

func (r *fakeLivenessRepo) recordsByStatus(status liveness.RecordStatus) []*liveness.CheckInRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*liveness.CheckInRecord
	for _, rec := range r.records {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out
}

// --- verification repository ---

type fakeVerificationRepo struct {
	mu       sync.Mutex
	requests map[string]*verification.Request
	evs      map[string]*verification.ExecutorVerification
}

func newFakeVerificationRepo() *fakeVerificationRepo {
	return &fakeVerificationRepo{
		requests: make(map[string]*verification.Request),
		evs:      make(map[string]*verification.ExecutorVerification),
	}
}

func (r *fakeVerificationRepo) CreateRequest(_ context.Context, req *verification.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.requests {
		if existing.UserID == req.UserID && existing.Open() {
			return idb.ErrOpenRequestExists
		}
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *fakeVerificationRepo) GetRequest(_ context.Context, id string) (*verification.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, idb.ErrRequestNotFound
	}
	cp := *req
	return &cp, nil
}

func (r *fakeVerificationRepo) GetOpenRequestByUser(_ context.Context, userID string) (*verification.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req.UserID == userID && req.Open() {
			cp := *req
			return &cp, nil
		}
	}
	return nil, idb.ErrRequestNotFound
}

func (r *fakeVerificationRepo) ListRequestsForEscalation(_ context.Context, createdBefore time.Time) ([]*verification.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*verification.Request
	for _, req := range r.requests {
		if req.Status == verification.RequestPending && !req.CreatedAt.After(createdBefore) {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeVerificationRepo) TransitionRequest(_ context.Context, id string, from, to verification.RequestStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	return true, nil
}

func (r *fakeVerificationRepo) MarkDownloaded(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Downloaded {
		return false, nil
	}
	if req.Status != verification.RequestCompleted && req.Status != verification.RequestVerified {
		return false, nil
	}
	req.Downloaded = true
	return true, nil
}

func (r *fakeVerificationRepo) ExpireOpenRequests(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, req := range r.requests {
		if req.Open() && req.ExpiresAt.Before(now) {
			req.Status = verification.RequestExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeVerificationRepo) CreateExecutorVerification(_ context.Context, ev *verification.ExecutorVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ev
	r.evs[ev.ID] = &cp
	return nil
}

func (r *fakeVerificationRepo) GetExecutorVerificationByRequest(_ context.Context, requestID string) (*verification.ExecutorVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.evs {
		if ev.RequestID == requestID {
			cp := *ev
			return &cp, nil
		}
	}
	return nil, idb.ErrExecutorVerificationNotFound
}

func (r *fakeVerificationRepo) IncrementPinsReceived(_ context.Context, id string) (int, int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.evs[id]
	if !ok || ev.Status != verification.QuorumPending {
		return 0, 0, false, nil
	}
	ev.PinsReceived++
	return ev.PinsReceived, ev.PinsRequired, true, nil
}

func (r *fakeVerificationRepo) CompleteExecutorVerification(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.evs[id]
	if !ok || ev.Status != verification.QuorumPending {
		return false, nil
	}
	ev.Status = verification.QuorumCompleted
	return true, nil
}

func (r *fakeVerificationRepo) ExpirePendingVerifications(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, ev := range r.evs {
		if ev.Status == verification.QuorumPending && ev.ExpiresAt.Before(now) {
			ev.Status = verification.QuorumExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeVerificationRepo) openRequests(userID string) []*verification.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*verification.Request
	for _, req := range r.requests {
		if req.UserID == userID && req.Open() {
			out = append(out, req)
		}
	}
	return out
}

// --- contact repository ---

type fakeContactRepo struct {
	contacts []*contact.TrustedContact
}

func confirmedContact(userID, name string, role contact.Role) *contact.TrustedContact {
	return &contact.TrustedContact{
		ID:        uuid.NewString(),
		UserID:    userID,
		FullName:  name,
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:      role,
		Confirmed: true,
	}
}

func executorContact(userID, name string) *contact.TrustedContact {
	return confirmedContact(userID, name, contact.RoleExecutor)
}

func (r *fakeContactRepo) GetByID(_ context.Context, id string) (*contact.TrustedContact, error) {
	for _, c := range r.contacts {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, idb.ErrContactNotFound
}

func (r *fakeContactRepo) ListConfirmed(_ context.Context, userID string) ([]*contact.TrustedContact, error) {
	var out []*contact.TrustedContact
	for _, c := range r.contacts {
		if c.UserID == userID && c.Confirmed {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeContactRepo) ListConfirmedByRole(_ context.Context, userID string, role contact.Role) ([]*contact.TrustedContact, error) {
	var out []*contact.TrustedContact
	for _, c := range r.contacts {
		if c.UserID == userID && c.Confirmed && c.Role == role {
			out = append(out, c)
		}
	}
	return out, nil
}

// --- unlock repository ---

type fakeUnlockRepo struct {
	mu    sync.Mutex
	codes map[string]*unlock.Code
}

func newFakeUnlockRepo() *fakeUnlockRepo {
	return &fakeUnlockRepo{codes: make(map[string]*unlock.Code)}
}

func (r *fakeUnlockRepo) BulkCreateCodes(_ context.Context, codes []*unlock.Code) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range codes {
		cp := *c
		r.codes[c.Code] = &cp
	}
	return nil
}

func (r *fakeUnlockRepo) GetCode(_ context.Context, code string) (*unlock.Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[code]
	if !ok {
		return nil, idb.ErrCodeNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeUnlockRepo) MarkCodeUsed(_ context.Context, code string, usedBy string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[code]
	if !ok || c.Used || !c.ExpiresAt.After(now) {
		return false, nil
	}
	c.Used = true
	c.UsedBy.String = usedBy
	c.UsedBy.Valid = true
	c.UsedAt.Time = now
	c.UsedAt.Valid = true
	return true, nil
}

func (r *fakeUnlockRepo) allCodes() []*unlock.Code {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*unlock.Code
	for _, c := range r.codes {
		out = append(out, c)
	}
	return out
}

// --- retention repository ---

type fakeRetentionRepo struct {
	mu         sync.Mutex
	items      map[string]*retention.ContentItem
	monitoring map[string]*retention.MonitoringRecord
	paths      map[string][]string
	cascadeErr map[string]error // Injected per-item cascade failures
}

func newFakeRetentionRepo() *fakeRetentionRepo {
	return &fakeRetentionRepo{
		items:      make(map[string]*retention.ContentItem),
		monitoring: make(map[string]*retention.MonitoringRecord),
		paths:      make(map[string][]string),
		cascadeErr: make(map[string]error),
	}
}

func (r *fakeRetentionRepo) GetItem(_ context.Context, itemID string) (*retention.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok {
		return nil, idb.ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (r *fakeRetentionRepo) ListItemsByUserAndKind(_ context.Context, userID string, kind retention.ItemKind) ([]*retention.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*retention.ContentItem
	for _, item := range r.items {
		if item.UserID == userID && item.Kind == kind && item.Status != retention.ItemDeleted {
			cp := *item
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRetentionRepo) CreateMonitoring(_ context.Context, rec *retention.MonitoringRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.monitoring[rec.ItemID]; ok {
		return idb.ErrMonitoringExists
	}
	cp := *rec
	r.monitoring[rec.ItemID] = &cp
	return nil
}

func (r *fakeRetentionRepo) GetMonitoring(_ context.Context, itemID string) (*retention.MonitoringRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.monitoring[itemID]
	if !ok {
		return nil, idb.ErrMonitoringNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRetentionRepo) ListMonitored(_ context.Context) ([]*retention.MonitoringRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*retention.MonitoringRecord
	for _, rec := range r.monitoring {
		if rec.MonitoringStatus == retention.ItemActive || rec.MonitoringStatus == retention.ItemGracePeriod {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRetentionRepo) ListDueForDeletion(_ context.Context, now time.Time) ([]*retention.MonitoringRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*retention.MonitoringRecord
	for _, rec := range r.monitoring {
		if rec.MonitoringStatus == retention.ItemDeletionPending && rec.ScheduledDeletion.Valid && !rec.ScheduledDeletion.Time.After(now) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRetentionRepo) SetGracePeriod(_ context.Context, itemID string, end time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.items[itemID]; ok && item.Status == retention.ItemActive {
		item.Status = retention.ItemGracePeriod
		item.GracePeriodEnd.Time = end
		item.GracePeriodEnd.Valid = true
	}
	if rec, ok := r.monitoring[itemID]; ok && rec.MonitoringStatus == retention.ItemActive {
		rec.MonitoringStatus = retention.ItemGracePeriod
	}
	return nil
}

func (r *fakeRetentionRepo) RecordNotificationTier(_ context.Context, itemID string, tier int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.monitoring[itemID]
	if !ok || rec.NotificationsSent >= tier {
		return false, nil
	}
	rec.NotificationsSent = tier
	return true, nil
}

func (r *fakeRetentionRepo) MarkDeletionPending(_ context.Context, itemID string, scheduledAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.monitoring[itemID]
	if !ok || (rec.MonitoringStatus != retention.ItemActive && rec.MonitoringStatus != retention.ItemGracePeriod) {
		return false, nil
	}
	rec.MonitoringStatus = retention.ItemDeletionPending
	rec.ScheduledDeletion.Time = scheduledAt
	rec.ScheduledDeletion.Valid = true
	if item, ok := r.items[itemID]; ok {
		item.Status = retention.ItemDeletionPending
	}
	return true, nil
}

func (r *fakeRetentionRepo) ResetToActive(_ context.Context, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.items[itemID]; ok && item.Status != retention.ItemDeleted {
		item.Status = retention.ItemActive
		item.GracePeriodEnd.Valid = false
	}
	if rec, ok := r.monitoring[itemID]; ok && rec.MonitoringStatus != retention.ItemDeleted {
		rec.MonitoringStatus = retention.ItemActive
		rec.ScheduledDeletion.Valid = false
		rec.NotificationsSent = 0
	}
	return nil
}

func (r *fakeRetentionRepo) ListItemStoragePaths(_ context.Context, itemID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paths[itemID], nil
}

func (r *fakeRetentionRepo) DeleteItemCascade(_ context.Context, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.cascadeErr[itemID]; ok {
		return err
	}
	delete(r.items, itemID)
	if rec, ok := r.monitoring[itemID]; ok {
		rec.MonitoringStatus = retention.ItemDeleted
	}
	return nil
}

// --- blob storage ---

type fakeStorage struct {
	mu      sync.Mutex
	deleted []string
	fail    bool
}

func (s *fakeStorage) Delete(_ context.Context, paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("blob store unavailable")
	}
	s.deleted = append(s.deleted, paths...)
	return nil
}

// --- issuer ---

type fakeIssuer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (i *fakeIssuer) IssueCodes(_ context.Context, requestID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	i.calls = append(i.calls, requestID)
	return nil
}
