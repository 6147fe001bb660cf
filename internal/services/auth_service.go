package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9]{3,30}$`)
	nonAlnum        = regexp.MustCompile(`[^a-z0-9]+`)
)

type accountStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
}

type codeVerifier interface {
	Redeem(ctx context.Context, email, code string, use func(ctx context.Context) error) error
}

// TokenVerifier checks Firebase ID tokens. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthResult is returned by every successful login or registration
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AuthService struct {
	users    accountStore
	codes    codeVerifier
	firebase TokenVerifier
	secret   []byte
	expiry   time.Duration
	hashCost int
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewAuthService builds the service. firebase may be nil, which disables
// FirebaseLogin.
func NewAuthService(users accountStore, codes codeVerifier, firebase TokenVerifier, secret string, expiry time.Duration, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		users:    users,
		codes:    codes,
		firebase: firebase,
		secret:   []byte(secret),
		expiry:   expiry,
		hashCost: bcrypt.DefaultCost,
		log:      log.WithField("component", "auth"),
		now:      time.Now,
	}
}

// Register verifies the emailed code and creates the account it was issued for.
func (s *AuthService) Register(ctx context.Context, req models.VerifyOTPRequest) (*AuthResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if n := utf8.RuneCountInString(name); n < 2 || n > 50 {
		return nil, apperrors.Validation("Name must be between 2 and 50 characters")
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if !usernamePattern.MatchString(username) {
		return nil, apperrors.Validation("Username must be 3 to 30 letters or digits")
	}
	if len(req.Password) < 8 {
		return nil, apperrors.Validation("Password must be at least 8 characters")
	}

	if err := s.ensureFree(ctx, email, username); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, s.internal(err, "hashing password")
	}
	user := &models.User{
		Name:     name,
		Username: username,
		Email:    email,
		Password: string(hash),
	}

	// the code is only consumed once the account exists
	err = s.codes.Redeem(ctx, email, req.OTP, func(ctx context.Context) error {
		err := s.users.CreateUser(ctx, user)
		if errors.Is(err, repositories.ErrDuplicate) {
			return apperrors.Conflict("Email or username already taken")
		}
		if err != nil {
			return s.internal(err, "creating user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("user_id", user.ID).Info("user registered")
	return s.result(user)
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.Unauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, s.internal(err, "loading user")
	}
	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apperrors.Unauthorized("Invalid email or password")
	}
	return s.result(user)
}

// FirebaseLogin exchanges a Firebase ID token for a local session, linking or
// creating the account by email.
func (s *AuthService) FirebaseLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	if s.firebase == nil {
		return nil, apperrors.Unavailable("Firebase login is not configured")
	}

	token, err := s.firebase.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid Firebase ID token")
	}

	user, err := s.users.GetUserByFirebaseUID(ctx, token.UID)
	if err == nil {
		return s.result(user)
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, s.internal(err, "loading firebase user")
	}

	email, _ := token.Claims["email"].(string)
	email, err = normalizeEmail(email)
	if err != nil {
		return nil, apperrors.Validation("Firebase account has no email")
	}
	uid := token.UID

	user, err = s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		user.FirebaseUID = &uid
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, s.internal(err, "linking firebase account")
		}
	case errors.Is(err, repositories.ErrNotFound):
		name, _ := token.Claims["name"].(string)
		user = &models.User{
			Name:        firebaseDisplayName(name, email),
			Username:    firebaseUsername(email, uid),
			Email:       email,
			FirebaseUID: &uid,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return nil, apperrors.Conflict("Account already exists")
			}
			return nil, s.internal(err, "creating firebase user")
		}
	default:
		return nil, s.internal(err, "loading user")
	}
	return s.result(user)
}

func (s *AuthService) ensureFree(ctx context.Context, email, username string) error {
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return apperrors.Conflict("Email already registered")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return s.internal(err, "checking email")
	}
	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return apperrors.Conflict("Username already taken")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return s.internal(err, "checking username")
	}
	return nil
}

func (s *AuthService) result(user *models.User) (*AuthResult, error) {
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, s.internal(err, "signing token")
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) generateJWT(user *models.User) (string, error) {
	now := s.now()
	claims := &models.JwtCustomClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *AuthService) internal(err error, op string) error {
	s.log.WithError(err).Error(op)
	return apperrors.Internal(err)
}

func firebaseDisplayName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return strings.SplitN(email, "@", 2)[0]
}

// firebaseUsername derives a unique handle from the email local part and the uid
func firebaseUsername(email, uid string) string {
	base := nonAlnum.ReplaceAllString(strings.ToLower(strings.SplitN(email, "@", 2)[0]), "")
	if len(base) > 20 {
		base = base[:20]
	}
	suffix := nonAlnum.ReplaceAllString(strings.ToLower(uid), "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	name := base + suffix
	for len(name) < 3 {
		name += "0"
	}
	return name
}
