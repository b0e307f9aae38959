package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"break-reminder-backend/internal/model"
	"break-reminder-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Source is the storage the pool reads notifications and subscriptions from.
type Source interface {
	GetNotification(ctx context.Context, id int64) (*model.BreakNotification, error)
	ListSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

var _ Source = store.Store(nil)

// Payload is the JSON body delivered to the browser.
type Payload struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkerPool delivers break notifications to a user's push subscriptions.
type WorkerPool struct {
	size    int
	jobs    chan int64
	source  Source
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool with room for queueSize pending jobs.
func NewWorkerPool(size, queueSize int, source Source, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, queueSize),
		source:  source,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.log.With(zap.Int("worker", id))
	log.Debug("worker started")
	for {
		select {
		case notificationID := <-wp.jobs:
			wp.deliver(ctx, notificationID)
		case <-ctx.Done():
			log.Debug("worker shutting down")
			return
		}
	}
}

// Dispatch queues a notification for delivery. It never blocks and
// reports false when the queue is full.
func (wp *WorkerPool) Dispatch(notificationID int64) bool {
	select {
	case wp.jobs <- notificationID:
		return true
	default:
		return false
	}
}

func (wp *WorkerPool) deliver(ctx context.Context, notificationID int64) {
	log := wp.log.With(zap.Int64("notification_id", notificationID))

	n, err := wp.source.GetNotification(ctx, notificationID)
	if err != nil {
		log.Error("failed to load notification", zap.Error(err))
		return
	}
	if n.Dismissed() {
		return
	}

	subscriptions, err := wp.source.ListSubscriptions(ctx, n.UserID)
	if err != nil {
		log.Error("failed to list subscriptions", zap.String("user_id", n.UserID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(Payload{ID: n.ID, Message: n.Message, CreatedAt: n.CreatedAt})
	if err != nil {
		log.Error("failed to encode payload", zap.Error(err))
		return
	}

	log.Debug("sending push notifications", zap.Int("subscriptions", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.send(ctx, sub, payload)
	}
}

func (wp *WorkerPool) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("push send failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.source.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
