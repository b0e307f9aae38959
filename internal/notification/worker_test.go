package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"break-reminder-backend/internal/model"
	"break-reminder-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// fakeSource serves notifications and subscriptions from memory.
type fakeSource struct {
	mu            sync.Mutex
	notifications map[int64]*model.BreakNotification
	subs          map[string][]model.PushSubscription
	deleted       []string
}

func (f *fakeSource) GetNotification(_ context.Context, id int64) (*model.BreakNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return n, nil
}

func (f *fakeSource) ListSubscriptions(_ context.Context, userID string) ([]model.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[userID], nil
}

func (f *fakeSource) DeleteSubscription(_ context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func (f *fakeSource) deletedEndpoints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func response(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, 1, &fakeSource{}, &webpush.Options{}, zaptest.NewLogger(t))

	assert.True(t, wp.Dispatch(123))
	assert.False(t, wp.Dispatch(124), "a full queue drops the job instead of blocking")

	select {
	case job := <-wp.jobs:
		assert.Equal(t, int64(123), job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_Delivery(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	dismissedAt := created.Add(time.Minute)
	src := &fakeSource{
		notifications: map[int64]*model.BreakNotification{
			1: {ID: 1, UserID: "u1", Message: "stretch", CreatedAt: created},
			2: {ID: 2, UserID: "u2", Message: "walk", CreatedAt: created},
			3: {ID: 3, UserID: "u1", Message: "old", CreatedAt: created, DismissedAt: &dismissedAt},
		},
		subs: map[string][]model.PushSubscription{
			"u1": {{Endpoint: "https://push.example/u1", UserID: "u1", P256DH: "k1", Auth: "a1"}},
			"u2": {{Endpoint: "https://push.example/gone", UserID: "u2", P256DH: "k2", Auth: "a2"}},
		},
	}
	wp := NewWorkerPool(1, 4, src, &webpush.Options{TTL: 60}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends the notification as JSON", func(t *testing.T) {
		sent := make(chan Payload, 1)
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://push.example/u1", sub.Endpoint)
				assert.Equal(t, "k1", sub.Keys.P256dh)
				assert.Equal(t, 60, options.TTL)
				var p Payload
				assert.NoError(t, json.Unmarshal(payload, &p))
				sent <- p
				return response(http.StatusCreated), nil
			},
		}

		require.True(t, wp.Dispatch(1))
		select {
		case p := <-sent:
			assert.Equal(t, int64(1), p.ID)
			assert.Equal(t, "stretch", p.Message)
			assert.True(t, p.CreatedAt.Equal(created))
		case <-time.After(time.Second):
			t.Fatal("notification was not sent")
		}
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
				return response(http.StatusGone), nil
			},
		}

		require.True(t, wp.Dispatch(2))
		assert.Eventually(t, func() bool {
			return len(src.deletedEndpoints()) == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"https://push.example/gone"}, src.deletedEndpoints())
	})

	t.Run("skips dismissed and unknown notifications", func(t *testing.T) {
		var calls int
		var mu sync.Mutex
		wp.sender = &mockSender{
			SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
				mu.Lock()
				calls++
				mu.Unlock()
				return response(http.StatusCreated), nil
			},
		}

		require.True(t, wp.Dispatch(3))
		require.True(t, wp.Dispatch(404))
		time.Sleep(100 * time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.Zero(t, calls)
	})

	t.Run("send errors do not delete the subscription", func(t *testing.T) {
		done := make(chan struct{})
		wp.sender = &mockSender{
			SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
				close(done)
				return nil, errors.New("push service unreachable")
			},
		}

		before := len(src.deletedEndpoints())
		require.True(t, wp.Dispatch(1))
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("sender was not called")
		}
		time.Sleep(50 * time.Millisecond)
		assert.Len(t, src.deletedEndpoints(), before)
	})
}

func TestWorkerPool_GormSource(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	wp := NewWorkerPool(1, 1, store.NewGormStore(gormDB), &webpush.Options{}, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	wg.Add(1)
	wp.sender = &mockSender{
		SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
			defer wg.Done()
			return response(http.StatusGone), nil
		},
	}

	mock.ExpectQuery(`SELECT \* FROM "break_notifications" WHERE id = \$1 LIMIT \$[0-9]+`).
		WithArgs(int64(7), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "message", "created_at", "dismissed_at"}).
			AddRow(7, "u1", "stretch", time.Now(), nil))
	mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_id", "p256dh", "auth", "created_at"}).
			AddRow("https://push.example/expired", "u1", "k", "a", time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE endpoint = \$1`).
		WithArgs("https://push.example/expired").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	wp.deliver(context.Background(), 7)
	wg.Wait()
	assert.NoError(t, mock.ExpectationsWereMet())
}
