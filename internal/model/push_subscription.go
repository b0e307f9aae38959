package model

import "time"

// PushSubscription holds a browser push subscription for one user.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey;size:512" json:"endpoint"`
	UserID    string    `gorm:"size:128;index;not null" json:"user_id"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
