package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"break-reminder-backend/internal/model"
)

// ErrNotFound is returned (wrapped) when an update or lookup targets a missing row.
var ErrNotFound = errors.New("record not found")

// ConfigStore persists break-reminder configurations.
type ConfigStore interface {
	// CreateConfig always inserts; it does not check for an existing row for the user.
	CreateConfig(ctx context.Context, userID string, intervalMinutes int, isActive bool) (*model.BreakReminderConfig, error)
	UpdateConfig(ctx context.Context, id int64, patch model.ConfigPatch) (*model.BreakReminderConfig, error)
	// GetConfig returns the oldest config for the user, or nil when there is none.
	GetConfig(ctx context.Context, userID string) (*model.BreakReminderConfig, error)
}

// NotificationStore persists break notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, userID, message string) (*model.BreakNotification, error)
	DismissNotification(ctx context.Context, id int64) (*model.BreakNotification, error)
	ListNotifications(ctx context.Context, userID string, includeDismissed bool) ([]model.BreakNotification, error)
	GetNotification(ctx context.Context, id int64) (*model.BreakNotification, error)
}

// SubscriptionStore persists web push subscriptions.
type SubscriptionStore interface {
	PutSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error)
}

// Store defines the interface for all database operations.
type Store interface {
	ConfigStore
	NotificationStore
	SubscriptionStore
	Ping(ctx context.Context) error
}

// Option configures a gormStore.
type Option func(*gormStore)

// WithClock overrides the time source used for created/updated/dismissed timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *gormStore) { s.now = now }
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, opts ...Option) Store {
	s := &gormStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// --- Configs ---

func (s *gormStore) CreateConfig(ctx context.Context, userID string, intervalMinutes int, isActive bool) (*model.BreakReminderConfig, error) {
	now := s.now()
	cfg := model.BreakReminderConfig{
		UserID:          userID,
		IntervalMinutes: intervalMinutes,
		IsActive:        isActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.WithContext(ctx).Create(&cfg).Error; err != nil {
		return nil, fmt.Errorf("failed to create config for user %q: %w", userID, err)
	}
	return &cfg, nil
}

func (s *gormStore) UpdateConfig(ctx context.Context, id int64, patch model.ConfigPatch) (*model.BreakReminderConfig, error) {
	updates := map[string]any{"updated_at": s.now()}
	if patch.IntervalMinutes != nil {
		updates["interval_minutes"] = *patch.IntervalMinutes
	}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
	}

	if err := s.db.WithContext(ctx).
		Model(&model.BreakReminderConfig{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update config %d: %w", id, err)
	}

	// Existence is decided by the re-read, not RowsAffected, which some
	// drivers report as 0 when the written values are unchanged.
	var cfg model.BreakReminderConfig
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("config %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to reload config %d: %w", id, err)
	}
	return &cfg, nil
}

func (s *gormStore) GetConfig(ctx context.Context, userID string) (*model.BreakReminderConfig, error) {
	var configs []model.BreakReminderConfig
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Limit(1).
		Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("failed to get config for user %q: %w", userID, err)
	}
	if len(configs) == 0 {
		return nil, nil
	}
	return &configs[0], nil
}

// --- Notifications ---

func (s *gormStore) CreateNotification(ctx context.Context, userID, message string) (*model.BreakNotification, error) {
	n := model.BreakNotification{
		UserID:    userID,
		Message:   message,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return nil, fmt.Errorf("failed to create notification for user %q: %w", userID, err)
	}
	return &n, nil
}

func (s *gormStore) DismissNotification(ctx context.Context, id int64) (*model.BreakNotification, error) {
	if err := s.db.WithContext(ctx).
		Model(&model.BreakNotification{}).
		Where("id = ?", id).
		Update("dismissed_at", s.now()).Error; err != nil {
		return nil, fmt.Errorf("failed to dismiss notification %d: %w", id, err)
	}
	return s.GetNotification(ctx, id)
}

func (s *gormStore) GetNotification(ctx context.Context, id int64) (*model.BreakNotification, error) {
	var n model.BreakNotification
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("notification %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get notification %d: %w", id, err)
	}
	return &n, nil
}

func (s *gormStore) ListNotifications(ctx context.Context, userID string, includeDismissed bool) ([]model.BreakNotification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if !includeDismissed {
		q = q.Where("dismissed_at IS NULL")
	}

	notifications := []model.BreakNotification{}
	if err := q.Order("created_at DESC").Order("id DESC").Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications for user %q: %w", userID, err)
	}
	return notifications, nil
}

// --- Subscriptions ---

func (s *gormStore) PutSubscription(ctx context.Context, sub *model.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
	}).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Take(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subscription: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&model.PushSubscription{}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (s *gormStore) ListSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions for user %q: %w", userID, err)
	}
	return subs, nil
}
