package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	follows  repositories.FollowRepository
	users    repositories.UserRepository
	notifier notifier
}

func NewFollowHandler(follows repositories.FollowRepository, users repositories.UserRepository, n notifier) *FollowHandler {
	return &FollowHandler{follows: follows, users: users, notifier: n}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:id/follow", h.FollowUser)
	g.DELETE("/users/:id/follow", h.UnfollowUser)
	g.GET("/users/:id/followers", h.GetFollowers)
	g.GET("/users/:id/following", h.GetFollowing)
}

// FollowUser follows a user and notifies them
func (h *FollowHandler) FollowUser(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	targetID, err := uintParam(c, "id", "user ID")
	if err != nil {
		return err
	}
	if userID == targetID {
		return apperrors.Validation("Cannot follow yourself")
	}

	ctx := c.Request().Context()
	if _, err := h.users.GetUserByID(ctx, targetID); err != nil {
		return storeErr(err, "User not found")
	}

	err = h.follows.CreateFollow(ctx, &models.Follow{FollowerID: userID, FollowingID: targetID})
	if errors.Is(err, repositories.ErrDuplicate) {
		return apperrors.Conflict("Already following this user")
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	if err := h.users.AdjustFollowCounts(ctx, userID, targetID, 1); err != nil {
		return apperrors.Internal(err)
	}

	h.notifier.Notify(ctx, targetID, userID, models.NotificationFollow, userSubject(userID), "")

	return ok(c, http.StatusOK, echo.Map{"following": true})
}

func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	targetID, err := uintParam(c, "id", "user ID")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.follows.DeleteFollow(ctx, userID, targetID); err != nil {
		return storeErr(err, "Not following this user")
	}
	if err := h.users.AdjustFollowCounts(ctx, userID, targetID, -1); err != nil {
		return apperrors.Internal(err)
	}

	return ok(c, http.StatusOK, echo.Map{"following": false})
}

func (h *FollowHandler) GetFollowers(c echo.Context) error {
	id, err := uintParam(c, "id", "user ID")
	if err != nil {
		return err
	}
	users, err := h.follows.GetFollowers(c.Request().Context(), id)
	if err != nil {
		return apperrors.Internal(err)
	}
	return ok(c, http.StatusOK, compactUsers(users))
}

func (h *FollowHandler) GetFollowing(c echo.Context) error {
	id, err := uintParam(c, "id", "user ID")
	if err != nil {
		return err
	}
	users, err := h.follows.GetFollowing(c.Request().Context(), id)
	if err != nil {
		return apperrors.Internal(err)
	}
	return ok(c, http.StatusOK, compactUsers(users))
}

func compactUsers(users []models.User) []models.UserCompact {
	out := make([]models.UserCompact, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToCompact())
	}
	return out
}
