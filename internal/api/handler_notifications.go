package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"break-reminder-backend/internal/model"
)

type createNotificationRequest struct {
	UserID  string  `json:"user_id" binding:"required,max=128"`
	Message *string `json:"message" binding:"omitempty,max=512"`
}

type notificationIDRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

type listNotificationsQuery struct {
	UserID           string `form:"user_id" binding:"required,max=128"`
	IncludeDismissed bool   `form:"include_dismissed"`
}

// CreateNotification handles POST /api/notifications and queues push delivery.
func (h *Handler) CreateNotification(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	message := model.DefaultNotificationMessage
	if req.Message != nil {
		message = *req.Message
	}

	n, err := h.store.CreateNotification(c.Request.Context(), req.UserID, message)
	if err != nil {
		h.respondError(c, err, "break notification creation failed")
		return
	}

	if h.dispatcher != nil && !h.dispatcher.Dispatch(n.ID) {
		h.log.Warn("push queue full, notification not delivered", zap.Int64("notification_id", n.ID))
	}
	c.JSON(http.StatusCreated, n)
}

// DismissNotification handles POST /api/notifications/:id/dismiss.
// Dismissing an already dismissed notification overwrites its timestamp.
func (h *Handler) DismissNotification(c *gin.Context) {
	var uri notificationIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.badRequest(c, err)
		return
	}

	n, err := h.store.DismissNotification(c.Request.Context(), uri.ID)
	if err != nil {
		h.respondError(c, err, "notification dismissal failed")
		return
	}
	c.JSON(http.StatusOK, n)
}

// ListNotifications handles GET /api/notifications?user_id=&include_dismissed=.
func (h *Handler) ListNotifications(c *gin.Context) {
	var q listNotificationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}

	list, err := h.store.ListNotifications(c.Request.Context(), q.UserID, q.IncludeDismissed)
	if err != nil {
		h.respondError(c, err, "failed to get user notifications")
		return
	}
	c.JSON(http.StatusOK, list)
}
