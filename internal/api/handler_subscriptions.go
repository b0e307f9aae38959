package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"break-reminder-backend/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required,max=512"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
	UserID   string `json:"user_id" binding:"required,max=128"`
}

// PutSubscription handles the creation or replacement of a subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	sub := model.PushSubscription{
		Endpoint: req.Endpoint,
		UserID:   req.UserID,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.store.PutSubscription(c.Request.Context(), &sub); err != nil {
		h.respondError(c, err, "failed to save subscription")
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	if err := h.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		h.respondError(c, err, "failed to delete subscription")
		return
	}

	c.Status(http.StatusNoContent)
}

type subscriptionQuery struct {
	Endpoint string `form:"endpoint" binding:"required"`
}

// GetSubscription reports which user an endpoint is registered to.
func (h *Handler) GetSubscription(c *gin.Context) {
	var q subscriptionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}

	sub, err := h.store.GetSubscription(c.Request.Context(), q.Endpoint)
	if err != nil {
		h.respondError(c, err, "failed to get subscription")
		return
	}

	c.JSON(http.StatusOK, gin.H{"endpoint": sub.Endpoint, "user_id": sub.UserID})
}
