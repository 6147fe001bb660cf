package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/anonto42/riseup-connect/backend/internal/middleware"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// newServer builds an echo instance whose /api/v1 group is authenticated as userID.
// userID 0 leaves the request anonymous.
func newServer(userID uint, register func(g *echo.Group)) *echo.Echo {
	log, _ := test.NewNullLogger()
	e := echo.New()
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = middleware.ErrorHandler(log)

	g := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if userID != 0 {
				c.Set(middleware.UserContextKey, &models.JwtCustomClaims{UserID: userID})
			}
			return next(c)
		}
	})
	register(g)
	return e
}

type response struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message"`
	Data       json.RawMessage        `json:"data"`
	Pagination map[string]interface{} `json:"pagination"`
}

func do(t *testing.T, e *echo.Echo, method, path string, body interface{}) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var res response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return rec.Code, res
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}
