package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"break-reminder-backend/internal/model"
)

func TestRunConfigSet(t *testing.T) {
	var created, patched bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/configs":
			if created {
				json.NewEncoder(w).Encode(model.BreakReminderConfig{ID: 4, UserID: "bob", IntervalMinutes: 30, IsActive: true})
				return
			}
			w.Write([]byte("null"))
		case r.Method == http.MethodPost && r.URL.Path == "/api/configs":
			created = true
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(model.BreakReminderConfig{ID: 4, UserID: "bob", IntervalMinutes: 30, IsActive: true})
		case r.Method == http.MethodPatch && r.URL.Path == "/api/configs/4":
			patched = true
			json.NewEncoder(w).Encode(model.BreakReminderConfig{ID: 4, UserID: "bob", IntervalMinutes: 45})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, run([]string{"-server", srv.URL, "-user", "bob", "config", "set", "30", "on"}, &out))
	assert.True(t, created)
	assert.Contains(t, out.String(), `"interval_minutes": 30`)

	out.Reset()
	require.NoError(t, run([]string{"-server", srv.URL, "-user", "bob", "config", "set", "45", "off"}, &out))
	assert.True(t, patched)
	assert.Contains(t, out.String(), `"is_active": false`)
}

func TestRunNotifyAndDismiss(t *testing.T) {
	active := []model.BreakNotification{
		{ID: 7, UserID: "bob", Message: "stretch"},
		{ID: 6, UserID: "bob", Message: "walk"},
	}
	var posted model.BreakNotification
	var dismissed bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/configs":
			w.Write([]byte("null"))
		case r.Method == http.MethodGet && r.URL.Path == "/api/notifications":
			assert.Equal(t, "bob", r.URL.Query().Get("user_id"))
			json.NewEncoder(w).Encode(active)
		case r.Method == http.MethodPost && r.URL.Path == "/api/notifications":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(model.BreakNotification{ID: 8, UserID: posted.UserID, Message: posted.Message})
		case r.Method == http.MethodPost && r.URL.Path == "/api/notifications/7/dismiss":
			dismissed = true
			now := time.Now()
			json.NewEncoder(w).Encode(model.BreakNotification{ID: 7, UserID: "bob", Message: "stretch", DismissedAt: &now})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, run([]string{"-server", srv.URL, "-user", "bob", "notify", "look away"}, &out))
	assert.Equal(t, "look away", posted.Message)
	assert.Contains(t, out.String(), `"id": 8`)

	out.Reset()
	require.NoError(t, run([]string{"-server", srv.URL, "-user", "bob", "dismiss", "7"}, &out))
	assert.True(t, dismissed)

	var remaining []model.BreakNotification
	require.NoError(t, json.Unmarshal(out.Bytes(), &remaining))
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(6), remaining[0].ID)
}

func TestRunErrors(t *testing.T) {
	var out bytes.Buffer

	assert.Error(t, run(nil, &out))
	assert.Error(t, run([]string{"-user", "bob", "frobnicate"}, &out))
	assert.Error(t, run([]string{"-user", "bob", "dismiss", "abc"}, &out))
	assert.Error(t, run([]string{"-user", "bob", "config", "set", "30", "maybe"}, &out))
	assert.Error(t, run([]string{"-user", "", "list"}, &out))
}
