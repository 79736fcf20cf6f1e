// internal/domain/retention/tier.go
package retention

import "time"

// GracePeriod is the fixed retention window granted to unsubscribed
// content. It is deliberately separate from the configurable multi-day
// liveness grace policy; the two windows protect different things and are
// not unified.
const GracePeriod = 24 * time.Hour

// Tier is the urgency level of a retention notification. Tiers are ordered;
// the engine never dispatches a tier at or below one it has already sent
// for the same item.
type Tier int

const (
	TierNone Tier = iota
	TierReminder
	TierWarning
	TierUrgent
	TierCritical
	TierFinalWarning
)

// String returns the wire name of the tier as consumed by the notifier.
func (t Tier) String() string {
	switch t {
	case TierReminder:
		return "reminder"
	case TierWarning:
		return "warning"
	case TierUrgent:
		return "urgent"
	case TierCritical:
		return "critical"
	case TierFinalWarning:
		return "final_warning"
	default:
		return "none"
	}
}

// TierFor computes the notification tier from the time remaining until the
// grace period ends. The table is computed on every evaluation rather than
// stored as a transition enum, so overlapping scans always agree:
//
//	> 12h  reminder
//	6-12h  warning
//	1-6h   urgent
//	0-1h   critical
//	<= 0h  final_warning (deletion hand-off)
func TierFor(gracePeriodEnd, now time.Time) Tier {
	remaining := gracePeriodEnd.Sub(now)
	switch {
	case remaining <= 0:
		return TierFinalWarning
	case remaining <= time.Hour:
		return TierCritical
	case remaining <= 6*time.Hour:
		return TierUrgent
	case remaining <= 12*time.Hour:
		return TierWarning
	default:
		return TierReminder
	}
}
