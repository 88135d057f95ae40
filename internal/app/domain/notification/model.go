// Package notification defines append-only user notifications.
package notification

import "time"

// Type labels what event produced a notification.
type Type string

const (
	TypeAssetApproved       Type = "asset_approved"
	TypeAssetRejected       Type = "asset_rejected"
	TypeApplicationApproved Type = "application_approved"
	TypeApplicationRejected Type = "application_rejected"
)

// Notification is an immutable record created as a side effect of a
// state transition. The moderation path never reads these back.
type Notification struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Type      Type      `json:"type" db:"type"`
	Title     string    `json:"title" db:"title"`
	Message   string    `json:"message" db:"message"`
	Link      string    `json:"link,omitempty" db:"link"`
	Read      bool      `json:"read" db:"read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
