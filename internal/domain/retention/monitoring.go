// internal/domain/retention/monitoring.go
package retention

import (
	"database/sql"
	"time"
)

// MonitoringRecord carries the retention engine's bookkeeping for one
// content item. NotificationsSent holds the index of the highest tier
// already dispatched, which is what makes notification delivery monotonic
// across overlapping scans.
// Corresponds to the 'monitoring_records' table.
type MonitoringRecord struct {
	ItemID            string
	UserID            string
	MonitoringStatus  ItemStatus // Mirrors the item's status
	ScheduledDeletion sql.NullTime
	NotificationsSent int // Index of the highest Tier dispatched so far
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
