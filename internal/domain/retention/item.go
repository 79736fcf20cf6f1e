// internal/domain/retention/item.go
package retention

import (
	"database/sql"
	"time"
)

// ItemKind distinguishes the two monitored content types.
type ItemKind string

const (
	KindWill        ItemKind = "will"
	KindTankMessage ItemKind = "tank_message"
)

// ItemStatus is the retention lifecycle of a content item. Transitions only
// move forward (active → grace_period → deletion_pending → deleted), except
// for the explicit reset back to active when the owner's subscription
// becomes active.
type ItemStatus string

const (
	ItemActive          ItemStatus = "active"
	ItemGracePeriod     ItemStatus = "grace_period"
	ItemDeletionPending ItemStatus = "deletion_pending"
	ItemDeleted         ItemStatus = "deleted"
)

// ContentItem is a will or time-capsule message subject to time-boxed
// retention while its owner is unsubscribed.
// Corresponds to the 'content_items' table.
type ContentItem struct {
	ID             string // UUID
	UserID         string
	Kind           ItemKind
	Title          string
	StoragePath    sql.NullString // Blob location; empty for metadata-only items
	Status         ItemStatus
	GracePeriodEnd sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
