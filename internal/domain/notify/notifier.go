// internal/domain/notify/notifier.go
package notify

import "context"

// Tier names the notification categories emitted by the engine. Retention
// tiers reuse retention.Tier.String(); the rest belong to the liveness and
// unlock workflows.
const (
	TierCheckInMissed = "checkin_missed"
	TierUnlockPin     = "unlock_pin"
	TierExecutorAlert = "executor_alert"
	TierPackageReady  = "package_ready"
	TierDeleted       = "deleted"
)

// Notification is the tagged payload handed to the Notifier. It replaces
// the loose per-helper payloads of earlier iterations with one shape every
// dispatch site shares.
type Notification struct {
	UserID  string
	Tier    string
	ItemID  string // Content item, request, or contact the event is about; may be empty
	Payload map[string]string
}

// Notifier dispatches in-app/email alerts. Delivery is best effort and
// fire-and-forget: the engine logs failures and never rolls back the state
// transition that produced the notification.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
