package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handle(t *testing.T, err error) (int, map[string]interface{}, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	ErrorHandler(log)(err, c)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body, hook
}

func TestErrorHandlerAppError(t *testing.T) {
	code, body, hook := handle(t, apperrors.Validation("Invalid OTP").WithData("remainingAttempts", 2))

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Invalid OTP", body["message"])
	assert.Equal(t, map[string]interface{}{"remainingAttempts": float64(2)}, body["data"])
	assert.Empty(t, hook.AllEntries())
}

func TestErrorHandlerHidesInternalCause(t *testing.T) {
	code, body, hook := handle(t, apperrors.Internal(errors.New("mongo: connection reset")))

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal server error", body["message"])
	assert.NotContains(t, body, "data")
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestErrorHandlerEchoError(t *testing.T) {
	code, body, _ := handle(t, echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header"))
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Missing Authorization header", body["message"])

	code, body, _ = handle(t, echo.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Not Found", body["message"])

	code, body, _ = handle(t, errors.New("plain"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal server error", body["message"])
}

func TestErrorHandlerUnavailableKeepsMessage(t *testing.T) {
	code, body, _ := handle(t, apperrors.Unavailable("Firebase login is not configured"))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "Firebase login is not configured", body["message"])
}
