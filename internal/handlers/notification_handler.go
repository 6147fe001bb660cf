package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/services"
	"github.com/labstack/echo/v4"
)

type notificationLedger interface {
	List(ctx context.Context, recipientID uint, params models.PageParams) (*services.NotificationPage, error)
	UnreadCount(ctx context.Context, recipientID uint) (int64, error)
	MarkRead(ctx context.Context, recipientID uint, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID uint) (int64, error)
	Delete(ctx context.Context, recipientID uint, id string) (int64, error)
}

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	ledger notificationLedger
}

func NewNotificationHandler(ledger notificationLedger) *NotificationHandler {
	return &NotificationHandler{ledger: ledger}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/count", h.GetUnreadCount)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.DELETE("/notifications/:id", h.DeleteNotification)
}

// GetNotifications returns a page of the caller's notifications, newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	page, err := h.ledger.List(c.Request().Context(), userID, pageParams(c))
	if err != nil {
		return err
	}

	pagination := models.NewPagination(page.Params, page.Total)
	pagination.UnreadCount = &page.UnreadCount
	return okPage(c, page.Entries, pagination)
}

func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	count, err := h.ledger.UnreadCount(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"count": count})
}

func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	n, err := h.ledger.MarkRead(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, n)
}

func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	unread, err := h.ledger.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"unreadCount": unread})
}

func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	unread, err := h.ledger.Delete(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"unreadCount": unread})
}
