package api

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"break-reminder-backend/config"
	"break-reminder-backend/internal/mw"
)

const limiterIdleTimeout = 10 * time.Minute

// NewRouter creates and configures a new Gin router. Background upkeep
// (rate-limiter sweeping) stops when ctx is cancelled.
func NewRouter(ctx context.Context, cfg *config.ServerConfig, handler *Handler, log *zap.Logger) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.RequestID(log))
	r.Use(corsMiddleware(cfg.CORSOrigins))

	limiter := mw.NewClientRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	go sweepLimiter(ctx, limiter, log)

	api := r.Group("/api")
	api.Use(mw.RateLimiter(limiter, cfg.RequestIPHeader))
	{
		api.GET("/healthcheck", handler.Healthcheck)

		// Break reminder configuration
		api.POST("/configs", handler.CreateConfig)
		api.GET("/configs", handler.GetConfig)
		api.PATCH("/configs/:id", handler.UpdateConfig)

		// Break notifications
		api.POST("/notifications", handler.CreateNotification)
		api.GET("/notifications", handler.ListNotifications)
		api.POST("/notifications/:id/dismiss", handler.DismissNotification)

		// Web push
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cc := cors.DefaultConfig()
	cc.AllowHeaders = append(cc.AllowHeaders, mw.RequestIDHeader)
	cc.ExposeHeaders = []string{mw.RequestIDHeader}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cors.New(cc)
}

func sweepLimiter(ctx context.Context, limiter *mw.ClientRateLimiter, log *zap.Logger) {
	ticker := time.NewTicker(limiterIdleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Sweep(limiterIdleTimeout); n > 0 {
				log.Debug("swept idle rate limiters", zap.Int("removed", n))
			}
		}
	}
}
