package internal

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"break-reminder-backend/config"
	"break-reminder-backend/internal/api"
	"break-reminder-backend/internal/client"
	"break-reminder-backend/internal/db"
	"break-reminder-backend/internal/model"
	"break-reminder-backend/internal/reminder"
	"break-reminder-backend/internal/store"
)

// TestReminderLifecycle drives a reminder session through the HTTP client
// against a real router backed by in-memory SQLite.
func TestReminderLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Test Setup ---

	gormDB, err := db.Init(&config.DatabaseConfig{Driver: config.DriverSQLite, DSN: ":memory:", LogLevel: "silent"}, log)
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	appStore := store.NewCachedStore(store.NewGormStore(gormDB), time.Minute, log)
	router := api.NewRouter(ctx, &config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000},
		api.NewHandler(appStore, nil, nil, log), log)
	server := httptest.NewServer(router)
	defer server.Close()

	c, err := client.New(server.URL, "")
	require.NoError(t, err)

	health, err := c.Healthcheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)

	notified := make(chan model.BreakNotification, 16)
	session := reminder.NewSession(c, "alice", log,
		reminder.WithTickUnit(time.Millisecond),
		reminder.WithNotifyHook(func(n model.BreakNotification) { notified <- n }))
	defer session.Close()

	// --- Step 1: no config yet ---

	require.NoError(t, session.Load(ctx))
	assert.Equal(t, reminder.Idle, session.State())

	// --- Step 2: saving an active config arms the timer ---

	cfg, err := session.Save(ctx, 25, true)
	require.NoError(t, err)
	assert.Equal(t, reminder.Armed, session.State())

	var first model.BreakNotification
	select {
	case first = <-notified:
		assert.Equal(t, model.DefaultNotificationMessage, first.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not create a notification")
	}

	// --- Step 3: deactivate, then verify server state ---

	_, err = session.Save(ctx, 25, false)
	require.NoError(t, err)
	assert.Equal(t, reminder.Idle, session.State())

	stored, err := c.GetConfig(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, cfg.ID, stored.ID)
	assert.False(t, stored.IsActive, "cached read sees the update")

	active, err := c.ListNotifications(ctx, "alice", false)
	require.NoError(t, err)
	require.NotEmpty(t, active)
	assert.Len(t, session.Notifications(), len(active))

	// --- Step 4: dismiss through the session ---

	require.NoError(t, session.Dismiss(ctx, first.ID))
	all, err := c.ListNotifications(ctx, "alice", true)
	require.NoError(t, err)
	var found bool
	for _, n := range all {
		if n.ID == first.ID {
			found = true
			assert.NotNil(t, n.DismissedAt)
		}
	}
	assert.True(t, found)

	// --- Step 5: errors surface through the client ---

	err = session.Dismiss(ctx, 99999)
	assert.True(t, errors.Is(err, client.ErrNotFound))

	_, err = c.CreateConfig(ctx, "alice", 1441, true)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.StatusCode)
}
