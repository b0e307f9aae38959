package store

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"break-reminder-backend/internal/model"
)

// cachedStore keeps GetConfig results in memory. Writes that go through it
// evict the affected user; writes from other processes are only seen after ttl.
// A read that overlaps an eviction for the same user is not cached.
type cachedStore struct {
	Store
	configs *cache.Cache
	ttl     time.Duration
	log     *zap.Logger

	mu       sync.Mutex
	versions map[string]uint64
}

// NewCachedStore wraps s with a read-through cache for GetConfig.
// A non-positive ttl disables caching and returns s unchanged.
func NewCachedStore(s Store, ttl time.Duration, log *zap.Logger) Store {
	if ttl <= 0 {
		return s
	}
	return &cachedStore{
		Store:    s,
		configs:  cache.New(ttl, 2*ttl),
		ttl:      ttl,
		log:      log,
		versions: make(map[string]uint64),
	}
}

func (c *cachedStore) GetConfig(ctx context.Context, userID string) (*model.BreakReminderConfig, error) {
	if v, found := c.configs.Get(userID); found {
		return cloneConfig(v.(*model.BreakReminderConfig)), nil
	}

	version := c.version(userID)
	cfg, err := c.Store.GetConfig(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Misses are cached too, as a nil entry.
	c.mu.Lock()
	if c.versions[userID] == version {
		c.configs.Set(userID, cloneConfig(cfg), c.ttl)
	}
	c.mu.Unlock()
	return cfg, nil
}

func (c *cachedStore) CreateConfig(ctx context.Context, userID string, intervalMinutes int, isActive bool) (*model.BreakReminderConfig, error) {
	cfg, err := c.Store.CreateConfig(ctx, userID, intervalMinutes, isActive)
	if err != nil {
		return nil, err
	}
	c.evict(userID)
	return cfg, nil
}

func (c *cachedStore) UpdateConfig(ctx context.Context, id int64, patch model.ConfigPatch) (*model.BreakReminderConfig, error) {
	cfg, err := c.Store.UpdateConfig(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	c.evict(cfg.UserID)
	c.log.Debug("evicted cached config", zap.String("user_id", cfg.UserID), zap.Int64("config_id", id))
	return cfg, nil
}

func (c *cachedStore) version(userID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[userID]
}

// evict drops the cached entry and invalidates reads already in flight.
func (c *cachedStore) evict(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[userID]++
	c.configs.Delete(userID)
}

func cloneConfig(cfg *model.BreakReminderConfig) *model.BreakReminderConfig {
	if cfg == nil {
		return nil
	}
	cp := *cfg
	return &cp
}
