package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) List(ctx context.Context, recipientID uint, params models.PageParams) (*services.NotificationPage, error) {
	args := m.Called(ctx, recipientID, params)
	page, _ := args.Get(0).(*services.NotificationPage)
	return page, args.Error(1)
}

func (m *mockLedger) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedger) MarkRead(ctx context.Context, recipientID uint, id string) (*models.Notification, error) {
	args := m.Called(ctx, recipientID, id)
	n, _ := args.Get(0).(*models.Notification)
	return n, args.Error(1)
}

func (m *mockLedger) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedger) Delete(ctx context.Context, recipientID uint, id string) (int64, error) {
	args := m.Called(ctx, recipientID, id)
	return args.Get(0).(int64), args.Error(1)
}

func notificationServer(userID uint, ledger *mockLedger) *echo.Echo {
	return newServer(userID, NewNotificationHandler(ledger).RegisterNotificationRoutes)
}

func TestGetNotificationsPagination(t *testing.T) {
	ledger := new(mockLedger)
	params := models.PageParams{Page: 2, Limit: 5}
	ledger.On("List", mock.Anything, uint(1), params).Return(&services.NotificationPage{
		Entries: []models.EnrichedNotification{
			{Notification: models.Notification{Kind: models.NotificationLike, Message: "Dan liked your post"}},
		},
		Params:      params,
		Total:       12,
		UnreadCount: 3,
	}, nil)

	code, res := do(t, notificationServer(1, ledger), http.MethodGet, "/api/v1/notifications?page=2&limit=5", nil)

	require.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
	assert.Equal(t, float64(2), res.Pagination["page"])
	assert.Equal(t, float64(3), res.Pagination["pages"])
	assert.Equal(t, float64(12), res.Pagination["total"])
	assert.Equal(t, float64(3), res.Pagination["unreadCount"])

	var entries []models.EnrichedNotification
	decode(t, res.Data, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "Dan liked your post", entries[0].Message)
	ledger.AssertExpectations(t)
}

func TestGetNotificationsDefaultsPage(t *testing.T) {
	ledger := new(mockLedger)
	params := models.PageParams{Page: 1, Limit: models.DefaultPageSize}
	ledger.On("List", mock.Anything, uint(1), params).Return(&services.NotificationPage{Params: params}, nil)

	code, _ := do(t, notificationServer(1, ledger), http.MethodGet, "/api/v1/notifications?page=-3&limit=500", nil)

	assert.Equal(t, http.StatusOK, code)
	ledger.AssertExpectations(t)
}

func TestNotificationsRequireUser(t *testing.T) {
	code, res := do(t, notificationServer(0, new(mockLedger)), http.MethodGet, "/api/v1/notifications/count", nil)

	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, res.Success)
	assert.Equal(t, "User not authenticated", res.Message)
}

func TestMarkAsReadForeignEntry(t *testing.T) {
	ledger := new(mockLedger)
	ledger.On("MarkRead", mock.Anything, uint(2), "abc").Return(nil, apperrors.NotFound("Notification not found"))

	code, res := do(t, notificationServer(2, ledger), http.MethodPut, "/api/v1/notifications/abc/read", nil)

	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Notification not found", res.Message)
}

func TestMarkAllAndDeleteReturnUnreadCount(t *testing.T) {
	ledger := new(mockLedger)
	ledger.On("MarkAllRead", mock.Anything, uint(1)).Return(int64(0), nil)
	ledger.On("Delete", mock.Anything, uint(1), "n1").Return(int64(4), nil)
	e := notificationServer(1, ledger)

	code, res := do(t, e, http.MethodPut, "/api/v1/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, code)
	var body map[string]int64
	decode(t, res.Data, &body)
	assert.Equal(t, int64(0), body["unreadCount"])

	code, res = do(t, e, http.MethodDelete, "/api/v1/notifications/n1", nil)
	require.Equal(t, http.StatusOK, code)
	decode(t, res.Data, &body)
	assert.Equal(t, int64(4), body["unreadCount"])
	ledger.AssertExpectations(t)
}

func TestGetUnreadCount(t *testing.T) {
	ledger := new(mockLedger)
	ledger.On("UnreadCount", mock.Anything, uint(1)).Return(int64(7), nil)

	code, res := do(t, notificationServer(1, ledger), http.MethodGet, "/api/v1/notifications/count", nil)

	require.Equal(t, http.StatusOK, code)
	var body map[string]int64
	decode(t, res.Data, &body)
	assert.Equal(t, int64(7), body["count"])
}
