package model

import "time"

// DefaultNotificationMessage is used when a notification is created without a message.
const DefaultNotificationMessage = "Time for a break!"

// BreakNotification is a single break alert. A nil DismissedAt means it is still active.
// UserID and Message sizes match the max bindings on the notification requests.
type BreakNotification struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	UserID      string     `gorm:"size:128;index;not null" json:"user_id"`
	Message     string     `gorm:"size:512;not null" json:"message"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	DismissedAt *time.Time `json:"dismissed_at"`
}

// Dismissed reports whether the notification has been dismissed.
func (n *BreakNotification) Dismissed() bool {
	return n.DismissedAt != nil
}
