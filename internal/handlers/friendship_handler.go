package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// FriendshipHandler handles connection requests between users
type FriendshipHandler struct {
	connections repositories.FriendshipRepository
	users       repositories.UserRepository
	notifier    notifier
}

func NewFriendshipHandler(connections repositories.FriendshipRepository, users repositories.UserRepository, n notifier) *FriendshipHandler {
	return &FriendshipHandler{connections: connections, users: users, notifier: n}
}

// RegisterFriendshipRoutes registers connection routes
func (h *FriendshipHandler) RegisterFriendshipRoutes(g *echo.Group) {
	g.POST("/connections/request", h.SendFriendRequest)
	g.GET("/connections/requests/pending", h.GetPendingFriendRequests)
	g.PUT("/connections/request/:id/status", h.UpdateFriendRequestStatus)
	g.GET("/connections", h.GetFriends)
}

// SendFriendRequest sends a connection request and notifies the receiver
func (h *FriendshipHandler) SendFriendRequest(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req models.CreateFriendRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.ReceiverID == userID {
		return apperrors.Validation("Cannot send a connection request to yourself")
	}

	ctx := c.Request().Context()
	if _, err := h.users.GetUserByID(ctx, req.ReceiverID); err != nil {
		return storeErr(err, "Receiver user not found")
	}

	request := &models.FriendRequest{SenderID: userID, ReceiverID: req.ReceiverID}
	err = h.connections.SendFriendRequest(ctx, request)
	switch {
	case errors.Is(err, repositories.ErrConnectionPending):
		return apperrors.Conflict("Connection request already pending")
	case errors.Is(err, repositories.ErrAlreadyConnected):
		return apperrors.Conflict("Already connected")
	case err != nil:
		return apperrors.Internal(err)
	}

	h.notifier.Notify(ctx, req.ReceiverID, userID, models.NotificationConnection, userSubject(userID), "")

	return ok(c, http.StatusCreated, request)
}

// GetPendingFriendRequests lists requests waiting for the caller's answer
func (h *FriendshipHandler) GetPendingFriendRequests(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	requests, err := h.connections.GetUserPendingFriendRequests(c.Request().Context(), userID)
	if err != nil {
		return apperrors.Internal(err)
	}
	return ok(c, http.StatusOK, requests)
}

// UpdateFriendRequestStatus accepts or rejects a pending request addressed to the caller
func (h *FriendshipHandler) UpdateFriendRequestStatus(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	requestID, err := uintParam(c, "id", "request ID")
	if err != nil {
		return err
	}
	var req models.UpdateFriendRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	request, err := h.connections.GetFriendRequestByID(ctx, requestID)
	if err != nil {
		return storeErr(err, "Connection request not found")
	}
	if request.ReceiverID != userID {
		return apperrors.Forbidden("You are not authorized to modify this connection request")
	}
	if request.Status != models.ConnectionPending {
		return apperrors.Conflict("Connection request already answered")
	}

	err = h.connections.UpdateFriendRequestStatus(ctx, requestID, req.Status)
	switch {
	case errors.Is(err, repositories.ErrConnectionAnswered):
		return apperrors.Conflict("Connection request already answered")
	case err != nil:
		return apperrors.Internal(err)
	}

	request.Status = req.Status
	return ok(c, http.StatusOK, request)
}

// GetFriends lists the caller's accepted connections
func (h *FriendshipHandler) GetFriends(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	friends, err := h.connections.GetUserFriends(c.Request().Context(), userID)
	if err != nil {
		return apperrors.Internal(err)
	}
	return ok(c, http.StatusOK, compactUsers(friends))
}
