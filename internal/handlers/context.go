package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/anonto42/riseup-connect/backend/internal/middleware"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// getUserIDFromContext returns the authenticated user id, 0 when absent
func getUserIDFromContext(c echo.Context) uint {
	claims, ok := c.Get(middleware.UserContextKey).(*models.JwtCustomClaims)
	if !ok || claims == nil {
		return 0
	}
	return claims.UserID
}

func currentUserID(c echo.Context) (uint, error) {
	id := getUserIDFromContext(c)
	if id == 0 {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return id, nil
}

// bind decodes and validates the request body into req
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	return c.Validate(req)
}

func uintParam(c echo.Context, name, label string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, apperrors.Validation("Invalid " + label)
	}
	return uint(id), nil
}

func pageParams(c echo.Context) models.PageParams {
	return models.ParsePageParams(c.QueryParam("page"), c.QueryParam("limit"))
}

func ok(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

func okMessage(c echo.Context, message string) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": message})
}

func okPage(c echo.Context, data interface{}, pagination models.Pagination) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"data":       data,
		"pagination": pagination,
	})
}

// storeErr maps repository sentinels to client errors; anything else is internal
func storeErr(err error, notFound string) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return apperrors.NotFound(notFound)
	case errors.Is(err, repositories.ErrDuplicate):
		return apperrors.Conflict("Already exists")
	default:
		return apperrors.Internal(err)
	}
}

// notifier records ledger entries for producing actions. It never fails the caller.
type notifier interface {
	Notify(ctx context.Context, recipientID, actorID uint, kind models.NotificationKind, subject *models.SubjectRef, extraText string)
	NotifyMentions(ctx context.Context, actorID uint, text string, subject *models.SubjectRef)
}

func postSubject(id string) *models.SubjectRef {
	return &models.SubjectRef{Type: models.SubjectPost, ID: id}
}

func userSubject(id uint) *models.SubjectRef {
	return &models.SubjectRef{Type: models.SubjectUser, ID: strconv.FormatUint(uint64(id), 10)}
}
