package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"break-reminder-backend/internal/store"
)

// Dispatcher hands a freshly created notification to background delivery.
type Dispatcher interface {
	Dispatch(notificationID int64) bool
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	webpush    *webpush.Options
	dispatcher Dispatcher
	log        *zap.Logger
	now        func() time.Time
}

// NewHandler creates a new API handler. webpushOptions and dispatcher may be nil
// when push delivery is disabled.
func NewHandler(s store.Store, webpushOptions *webpush.Options, dispatcher Dispatcher, log *zap.Logger) *Handler {
	return &Handler{
		store:      s,
		webpush:    webpushOptions,
		dispatcher: dispatcher,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}
