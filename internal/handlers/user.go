package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

const searchLimit = 20

type accountDeleter interface {
	Delete(ctx context.Context, userID uint) error
}

type actorCache interface {
	ForgetActor(id uint)
}

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	users    repositories.UserRepository
	accounts accountDeleter
	actors   actorCache
}

func NewUserHandler(users repositories.UserRepository, accounts accountDeleter, actors actorCache) *UserHandler {
	return &UserHandler{users: users, accounts: accounts, actors: actors}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.DELETE("/profile", h.DeleteProfile)
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/:id", h.GetUser)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := uintParam(c, "id", "user ID")
	if err != nil {
		return err
	}
	user, err := h.users.GetUserByID(c.Request().Context(), id)
	if err != nil {
		return storeErr(err, "User not found")
	}
	return ok(c, http.StatusOK, user)
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	user, err := h.users.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		return storeErr(err, "User profile not found")
	}
	return ok(c, http.StatusOK, user)
}

// UpdateProfile updates the authenticated user's profile. Existing notifications
// keep the name they were recorded with.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req models.UpdateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		return storeErr(err, "User profile not found")
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	if req.AvatarURL != "" {
		user.AvatarURL = req.AvatarURL
	}
	if req.Bio != "" {
		user.Bio = req.Bio
	}

	if err := h.users.UpdateUser(ctx, user); err != nil {
		return apperrors.Internal(err)
	}
	h.actors.ForgetActor(user.ID)

	return ok(c, http.StatusOK, user)
}

// DeleteProfile deletes the caller's account and everything it owns
func (h *UserHandler) DeleteProfile(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.accounts.Delete(c.Request().Context(), userID); err != nil {
		return err
	}
	return okMessage(c, "Account deleted")
}

// SearchUsers searches for users by name or username
func (h *UserHandler) SearchUsers(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return apperrors.Validation("Search query 'q' is required")
	}

	users, err := h.users.SearchUsers(c.Request().Context(), query, searchLimit)
	if err != nil {
		return apperrors.Internal(err)
	}

	return ok(c, http.StatusOK, compactUsers(users))
}
