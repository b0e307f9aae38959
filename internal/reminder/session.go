package reminder

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"break-reminder-backend/internal/model"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("reminder session closed")

// Backend is the subset of the break reminder API a session drives.
// Both store.Store and *client.Client satisfy it.
type Backend interface {
	CreateConfig(ctx context.Context, userID string, intervalMinutes int, isActive bool) (*model.BreakReminderConfig, error)
	UpdateConfig(ctx context.Context, id int64, patch model.ConfigPatch) (*model.BreakReminderConfig, error)
	GetConfig(ctx context.Context, userID string) (*model.BreakReminderConfig, error)
	CreateNotification(ctx context.Context, userID, message string) (*model.BreakNotification, error)
	DismissNotification(ctx context.Context, id int64) (*model.BreakNotification, error)
	ListNotifications(ctx context.Context, userID string, includeDismissed bool) ([]model.BreakNotification, error)
}

// State is the timer state of a session.
type State int

const (
	Idle State = iota
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}
	return "idle"
}

// Option configures a Session.
type Option func(*Session)

// WithTickUnit sets the length of one interval minute. Tests use a millisecond.
func WithTickUnit(d time.Duration) Option {
	return func(s *Session) { s.tickUnit = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithMessage sets the message used for timer and manual notifications.
func WithMessage(msg string) Option {
	return func(s *Session) { s.message = msg }
}

// WithNotifyHook registers fn to run after each notification the session creates.
// fn runs outside the session lock.
func WithNotifyHook(fn func(model.BreakNotification)) Option {
	return func(s *Session) { s.onNotify = fn }
}

// Session owns one user's reminder state: the loaded config, the active
// notifications and the repeating timer. State changes are serialized by mu;
// timer ticks make their backend call outside it.
type Session struct {
	mu       sync.Mutex
	backend  Backend
	userID   string
	log      *zap.Logger
	tickUnit time.Duration
	now      func() time.Time
	message  string
	onNotify func(model.BreakNotification)

	config           *model.BreakReminderConfig
	notifications    []model.BreakNotification
	loadedAt         time.Time
	lastNotification time.Time

	ticker     *time.Ticker
	stop       chan struct{}
	generation uint64
	closed     bool
}

// NewSession creates an idle session for userID. Call Load to fetch state.
func NewSession(backend Backend, userID string, log *zap.Logger, opts ...Option) *Session {
	s := &Session{
		backend:  backend,
		userID:   userID,
		log:      log.With(zap.String("user_id", userID)),
		tickUnit: time.Minute,
		now:      time.Now,
		message:  model.DefaultNotificationMessage,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches the config and active notifications, then arms the timer
// when the config is active.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	cfg, err := s.backend.GetConfig(ctx, s.userID)
	if err != nil {
		s.log.Error("failed to load config", zap.Error(err))
		return err
	}
	list, err := s.backend.ListNotifications(ctx, s.userID, false)
	if err != nil {
		s.log.Error("failed to load notifications", zap.Error(err))
		return err
	}

	s.config = cfg
	s.notifications = list
	s.loadedAt = s.now()
	s.lastNotification = time.Time{}
	s.rearm()
	return nil
}

// Save updates the loaded config, or creates one when none is loaded.
// The timer restarts at the saved interval.
func (s *Session) Save(ctx context.Context, intervalMinutes int, isActive bool) (*model.BreakReminderConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	var (
		cfg *model.BreakReminderConfig
		err error
	)
	if s.config != nil {
		cfg, err = s.backend.UpdateConfig(ctx, s.config.ID, model.ConfigPatch{
			IntervalMinutes: &intervalMinutes,
			IsActive:        &isActive,
		})
	} else {
		cfg, err = s.backend.CreateConfig(ctx, s.userID, intervalMinutes, isActive)
	}
	if err != nil {
		s.log.Error("failed to save config", zap.Error(err))
		return nil, err
	}

	s.config = cfg
	if s.loadedAt.IsZero() {
		// Saved without a Load: the countdown starts now.
		s.loadedAt = s.now()
	}
	s.rearm()
	cp := *cfg
	return &cp, nil
}

// Trigger creates a notification immediately. The timer keeps its schedule.
func (s *Session) Trigger(ctx context.Context) (*model.BreakNotification, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	n, err := s.notify(ctx, s.now())
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	s.fireHook(*n)
	return n, nil
}

// Dismiss dismisses a notification and drops it from the local list.
func (s *Session) Dismiss(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if _, err := s.backend.DismissNotification(ctx, id); err != nil {
		s.log.Error("failed to dismiss notification", zap.Int64("notification_id", id), zap.Error(err))
		return err
	}

	kept := s.notifications[:0]
	for _, n := range s.notifications {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	s.notifications = kept
	return nil
}

// NextBreakTime estimates when the next reminder fires. ok is false unless
// an active config is loaded.
func (s *Session) NextBreakTime() (next time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil || !s.config.IsActive {
		return time.Time{}, false
	}

	base := s.loadedAt
	if !s.lastNotification.IsZero() {
		base = s.lastNotification
	}
	return base.Add(time.Duration(s.config.IntervalMinutes) * s.tickUnit), true
}

// State reports whether the timer is armed.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		return Armed
	}
	return Idle
}

// Config returns a copy of the loaded config, or nil.
func (s *Session) Config() *model.BreakReminderConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return nil
	}
	cp := *s.config
	return &cp
}

// Notifications returns the active notifications, newest first.
func (s *Session) Notifications() []model.BreakNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.BreakNotification(nil), s.notifications...)
}

// Close stops the timer without waiting for an in-flight tick, whose result
// is dropped. Later calls return ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.disarm()
	s.closed = true
	return nil
}

// rearm cancels any running timer and arms a new one when the config is active.
// Callers hold mu.
func (s *Session) rearm() {
	s.disarm()
	if s.config == nil || !s.config.IsActive {
		return
	}

	period := time.Duration(s.config.IntervalMinutes) * s.tickUnit
	if period <= 0 {
		s.log.Warn("config interval is not positive, timer stays idle", zap.Int("interval_minutes", s.config.IntervalMinutes))
		return
	}

	s.generation++
	s.ticker = time.NewTicker(period)
	s.stop = make(chan struct{})
	go s.run(s.ticker, s.stop, s.generation)
	s.log.Debug("timer armed", zap.Duration("period", period))
}

// disarm stops the timer. Ticks already waiting on mu see a stale
// generation and are dropped. Callers hold mu.
func (s *Session) disarm() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.ticker = nil
	s.stop = nil
	s.generation++
}

func (s *Session) run(ticker *time.Ticker, stop <-chan struct{}, generation uint64) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick(generation)
		}
	}
}

// tick runs the backend call without holding mu so Close and Save never wait
// on the network. A late response is still applied unless the session closed.
func (s *Session) tick(generation uint64) {
	s.mu.Lock()
	stale := s.closed || generation != s.generation
	s.mu.Unlock()
	if stale {
		return
	}

	at := s.now()
	n, err := s.create(context.Background())
	if err != nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Debug("session closed during tick, dropping notification", zap.Int64("notification_id", n.ID))
		return
	}
	s.record(*n, at)
	s.mu.Unlock()

	s.fireHook(*n)
}

// notify creates a notification and records it. Callers hold mu.
func (s *Session) notify(ctx context.Context, at time.Time) (*model.BreakNotification, error) {
	n, err := s.create(ctx)
	if err != nil {
		return nil, err
	}
	s.record(*n, at)
	return n, nil
}

// create touches only immutable session fields and is safe without mu.
func (s *Session) create(ctx context.Context) (*model.BreakNotification, error) {
	n, err := s.backend.CreateNotification(ctx, s.userID, s.message)
	if err != nil {
		s.log.Error("failed to create break notification", zap.Error(err))
		return nil, err
	}
	return n, nil
}

// record sets the last notification time and prepends n. Callers hold mu.
func (s *Session) record(n model.BreakNotification, at time.Time) {
	s.lastNotification = at
	s.notifications = append([]model.BreakNotification{n}, s.notifications...)
}

func (s *Session) fireHook(n model.BreakNotification) {
	if s.onNotify != nil {
		s.onNotify(n)
	}
}
