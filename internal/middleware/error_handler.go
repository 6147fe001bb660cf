package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const internalMessage = "Internal server error"

// ErrorHandler renders every error in the {success, message, data} envelope.
// Causes of internal errors are logged and never sent to the client.
func ErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		if status >= http.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method":     c.Request().Method,
				"path":       c.Path(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}).Error("request error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.WithError(err).Warn("failed to write error response")
		}
	}
}

func render(err error) (int, echo.Map) {
	body := echo.Map{"success": false}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		status := appErr.Kind.StatusCode()
		if appErr.Kind == apperrors.KindInternal {
			body["message"] = internalMessage
			return status, body
		}
		body["message"] = appErr.Message
		if len(appErr.Data) > 0 {
			body["data"] = appErr.Data
		}
		return status, body
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			body["message"] = internalMessage
			return he.Code, body
		}
		switch m := he.Message.(type) {
		case string:
			body["message"] = m
		case error:
			body["message"] = m.Error()
		default:
			body["message"] = fmt.Sprint(m)
		}
		return he.Code, body
	}

	body["message"] = internalMessage
	return http.StatusInternalServerError, body
}
