package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"github.com/anonto42/riseup-connect/backend/pkg/mailer"
	"github.com/anonto42/riseup-connect/backend/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const emailSendTimeout = 15 * time.Second

var validate = validator.New()

type emailLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// OTPService issues and verifies the email codes that gate registration.
type OTPService struct {
	otps     repositories.OTPRepository
	users    emailLookup
	cooldown repositories.CooldownStore
	sender   mailer.Sender
	log      logrus.FieldLogger

	now      func() time.Time
	generate func() (string, error)
	dispatch func(func())
	hashCost int
}

// NewOTPService builds the gate. cooldown may be nil, which disables the resend
// window.
func NewOTPService(otps repositories.OTPRepository, users emailLookup, cooldown repositories.CooldownStore, sender mailer.Sender, log logrus.FieldLogger) *OTPService {
	return &OTPService{
		otps:     otps,
		users:    users,
		cooldown: cooldown,
		sender:   sender,
		log:      log.WithField("component", "otp"),
		now:      time.Now,
		generate: generateCode,
		dispatch: func(f func()) { go f() },
		hashCost: bcrypt.DefaultCost,
	}
}

// Issue replaces any unused code for email with a fresh one and mails it.
func (s *OTPService) Issue(ctx context.Context, email string) error {
	email, err := s.available(ctx, email)
	if err != nil {
		return err
	}
	if err := s.store(ctx, email); err != nil {
		return err
	}
	if s.cooldown != nil {
		if err := s.cooldown.Touch(ctx, cooldownKey(email), models.OTPResendCooldown); err != nil {
			s.log.WithError(err).Warn("failed to start otp resend cooldown")
		}
	}
	return nil
}

// Resend is Issue guarded by the resend cooldown.
func (s *OTPService) Resend(ctx context.Context, email string) error {
	email, err := s.available(ctx, email)
	if err != nil {
		return err
	}
	if s.cooldown != nil {
		ok, left, err := s.cooldown.Acquire(ctx, cooldownKey(email), models.OTPResendCooldown)
		switch {
		case err != nil:
			s.log.WithError(err).Warn("otp resend cooldown unavailable")
		case !ok:
			secs := int(math.Ceil(left.Seconds()))
			return apperrors.RateLimited(fmt.Sprintf("Please wait %d seconds before requesting a new code", secs)).
				WithData("retryAfter", secs)
		}
	}
	return s.store(ctx, email)
}

// Verify checks code against the usable OTP for email and consumes it on match.
func (s *OTPService) Verify(ctx context.Context, email, code string) error {
	return s.Redeem(ctx, email, code, nil)
}

// Redeem is Verify with use run between the match and the consumption. When use
// fails its error is returned and the code stays usable.
func (s *OTPService) Redeem(ctx context.Context, email, code string, use func(ctx context.Context) error) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	otp, err := s.otps.FindUsable(ctx, email, now)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && !otp.UsableAt(now)) {
		metrics.OTPVerificationsTotal.WithLabelValues("missing").Inc()
		return apperrors.NotFound("OTP not found or expired")
	}
	if err != nil {
		return s.internal(err, "loading otp")
	}

	code = strings.TrimSpace(code)
	if bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)) != nil {
		if s.superseded(ctx, email, code, now) {
			metrics.OTPVerificationsTotal.WithLabelValues("superseded").Inc()
			return apperrors.NotFound("OTP not found or expired")
		}
		return s.reject(ctx, otp)
	}

	if use != nil {
		if err := use(ctx); err != nil {
			return err
		}
	}

	err = s.otps.MarkUsed(ctx, otp.ID)
	switch {
	case errors.Is(err, repositories.ErrNotFound) && use == nil:
		metrics.OTPVerificationsTotal.WithLabelValues("missing").Inc()
		return apperrors.NotFound("OTP not found or expired")
	case err != nil && use == nil:
		return s.internal(err, "consuming otp")
	case err != nil:
		// the account write went through, leave the code to expire
		s.log.WithError(err).WithField("email", email).Warn("failed to consume redeemed otp")
	}
	metrics.OTPVerificationsTotal.WithLabelValues("success").Inc()
	return nil
}

func (s *OTPService) reject(ctx context.Context, otp *models.OTP) error {
	updated, err := s.otps.IncrementAttempts(ctx, otp.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.NotFound("OTP not found or expired")
	}
	if err != nil {
		return s.internal(err, "counting otp attempt")
	}

	if updated.Attempts >= models.OTPMaxAttempts {
		if err := s.otps.Delete(ctx, updated.ID); err != nil {
			s.log.WithError(err).Warn("failed to delete exhausted otp")
		}
		metrics.OTPVerificationsTotal.WithLabelValues("locked").Inc()
		return apperrors.RateLimited("Too many failed attempts. Please request a new code")
	}

	metrics.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
	return apperrors.Validation("Invalid OTP").WithData("remainingAttempts", updated.RemainingAttempts())
}

// superseded reports whether code belongs to a replaced, unexpired code for email.
// Such a code is treated as gone and does not count as a failed attempt.
func (s *OTPService) superseded(ctx context.Context, email, code string, now time.Time) bool {
	old, err := s.otps.FindSuperseded(ctx, email, now)
	if err != nil {
		s.log.WithError(err).Warn("failed to load superseded otps")
		return false
	}
	for _, o := range old {
		if bcrypt.CompareHashAndPassword([]byte(o.CodeHash), []byte(code)) == nil {
			return true
		}
	}
	return false
}

// available normalizes email and refuses addresses that already have an account.
func (s *OTPService) available(ctx context.Context, email string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	_, err = s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return "", apperrors.Conflict("Email already registered")
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return "", s.internal(err, "checking email")
	}
	return email, nil
}

func (s *OTPService) store(ctx context.Context, email string) error {
	code, err := s.generate()
	if err != nil {
		return s.internal(err, "generating otp")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return s.internal(err, "hashing otp")
	}

	if err := s.otps.SupersedeUnused(ctx, email); err != nil {
		return s.internal(err, "invalidating previous otp")
	}

	now := s.now().UTC()
	otp := &models.OTP{
		Email:     email,
		CodeHash:  string(hash),
		CreatedAt: now,
		ExpiresAt: now.Add(models.OTPTTL),
	}
	err = s.otps.Create(ctx, otp)
	if errors.Is(err, repositories.ErrDuplicate) {
		return apperrors.Conflict("A verification code is already being issued for this email")
	}
	if err != nil {
		return s.internal(err, "storing otp")
	}

	s.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), emailSendTimeout)
		defer cancel()
		if err := s.sender.SendOTP(ctx, email, code); err != nil {
			s.log.WithError(err).WithField("email", email).Error("failed to send otp email")
		}
	})
	return nil
}

func (s *OTPService) internal(err error, op string) error {
	s.log.WithError(err).Error(op)
	return apperrors.Internal(err)
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return "", apperrors.Validation("A valid email is required")
	}
	return email, nil
}

func cooldownKey(email string) string {
	return "otp:" + email
}

// generateCode returns a uniformly random zero-padded numeric code.
func generateCode() (string, error) {
	max := big.NewInt(int64(math.Pow10(models.OTPLength)))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", models.OTPLength, n.Int64()), nil
}
