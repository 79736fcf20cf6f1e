// internal/domain/liveness/schedule.go
package liveness

import "time"

// CheckInSchedule defines how often a user must confirm they are still
// active, and how much slack they get past the deadline before the
// verification workflow is allowed to escalate.
// Corresponds to the 'check_in_schedules' table.
type CheckInSchedule struct {
	UserID          string // UUID of the owning user
	FrequencyDays   int    // How many days between required check-ins
	GracePeriodDays int    // Slack after NextCheckIn before escalation
	NextCheckIn     time.Time
	Enabled         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Deadline returns the instant after which the schedule counts as missed.
func (s *CheckInSchedule) Deadline() time.Time {
	return s.NextCheckIn.AddDate(0, 0, s.GracePeriodDays)
}

// Overdue reports whether the user has missed the deadline at the given
// instant. Disabled schedules are never overdue.
func (s *CheckInSchedule) Overdue(now time.Time) bool {
	return s.Enabled && now.After(s.Deadline())
}
