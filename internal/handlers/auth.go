package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/services"
	"github.com/labstack/echo/v4"
)

type otpIssuer interface {
	Issue(ctx context.Context, email string) error
	Resend(ctx context.Context, email string) error
}

type authenticator interface {
	Register(ctx context.Context, req models.VerifyOTPRequest) (*services.AuthResult, error)
	SignIn(ctx context.Context, email, password string) (*services.AuthResult, error)
	FirebaseLogin(ctx context.Context, idToken string) (*services.AuthResult, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	otps otpIssuer
	auth authenticator
}

func NewAuthHandler(otps otpIssuer, auth authenticator) *AuthHandler {
	return &AuthHandler{otps: otps, auth: auth}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/send-otp", h.SendOTP)
	g.POST("/resend-otp", h.ResendOTP)
	g.POST("/verify-otp", h.VerifyOTP)
	g.POST("/signin", h.SignIn)
	g.POST("/firebase-login", h.FirebaseLogin)
}

func (h *AuthHandler) SendOTP(c echo.Context) error {
	var req models.SendOTPRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.otps.Issue(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return okMessage(c, "OTP sent to your email")
}

func (h *AuthHandler) ResendOTP(c echo.Context) error {
	var req models.SendOTPRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.otps.Resend(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return okMessage(c, "OTP resent to your email")
}

// VerifyOTP consumes the emailed code and creates the account
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req models.VerifyOTPRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.auth.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, res)
}

func (h *AuthHandler) SignIn(c echo.Context) error {
	var req models.SignInRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.auth.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, res)
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// FirebaseLogin exchanges a Firebase ID token for a local JWT
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	var req FirebaseLoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.auth.FirebaseLogin(c.Request().Context(), req.IDToken)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, res)
}
