package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"break-reminder-backend/internal/model"
)

type createConfigRequest struct {
	UserID          string `json:"user_id" binding:"required,max=128"`
	IntervalMinutes *int   `json:"interval_minutes" binding:"omitempty,min=1,max=1440"`
	IsActive        *bool  `json:"is_active"`
}

type configIDRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

type updateConfigRequest struct {
	IntervalMinutes *int  `json:"interval_minutes" binding:"omitempty,min=1,max=1440"`
	IsActive        *bool `json:"is_active"`
}

type userQuery struct {
	UserID string `form:"user_id" binding:"required,max=128"`
}

// CreateConfig handles POST /api/configs. It always inserts a new row.
func (h *Handler) CreateConfig(c *gin.Context) {
	var req createConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	interval := model.DefaultIntervalMinutes
	if req.IntervalMinutes != nil {
		interval = *req.IntervalMinutes
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	cfg, err := h.store.CreateConfig(c.Request.Context(), req.UserID, interval, active)
	if err != nil {
		h.respondError(c, err, "break reminder config creation failed")
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

// UpdateConfig handles PATCH /api/configs/:id. Omitted fields are left unchanged.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var uri configIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.badRequest(c, err)
		return
	}

	var req updateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, err)
		return
	}

	cfg, err := h.store.UpdateConfig(c.Request.Context(), uri.ID, model.ConfigPatch{
		IntervalMinutes: req.IntervalMinutes,
		IsActive:        req.IsActive,
	})
	if err != nil {
		h.respondError(c, err, "break reminder config update failed")
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// GetConfig handles GET /api/configs?user_id=. The body is null when the user has no config.
func (h *Handler) GetConfig(c *gin.Context) {
	var q userQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}

	cfg, err := h.store.GetConfig(c.Request.Context(), q.UserID)
	if err != nil {
		h.respondError(c, err, "failed to get user config")
		return
	}
	c.JSON(http.StatusOK, cfg)
}
