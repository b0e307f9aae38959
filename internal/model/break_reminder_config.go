package model

import "time"

// Interval bounds accepted at the input-validation boundary.
const (
	DefaultIntervalMinutes = 60
	MinIntervalMinutes     = 1
	MaxIntervalMinutes     = 1440
)

// BreakReminderConfig holds a user's break-reminder settings.
// UserID is indexed but not unique; duplicate rows are tolerated. Its column
// size is mirrored by a max binding on every request that carries it.
type BreakReminderConfig struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	UserID          string    `gorm:"size:128;index;not null" json:"user_id"`
	IntervalMinutes int       `gorm:"not null" json:"interval_minutes"`
	IsActive        bool      `gorm:"not null" json:"is_active"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

// Interval returns the reminder period.
func (c *BreakReminderConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// ConfigPatch is a partial update of a BreakReminderConfig. Nil fields are left unchanged.
type ConfigPatch struct {
	IntervalMinutes *int  `json:"interval_minutes,omitempty"`
	IsActive        *bool `json:"is_active,omitempty"`
}
