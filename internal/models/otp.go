package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	OTPTTL            = 10 * time.Minute
	OTPMaxAttempts    = 5
	OTPResendCooldown = 60 * time.Second
	OTPLength         = 6
)

// OTP is a one-time email verification code. Only the bcrypt hash of the code is stored.
// A code replaced by a newer one is kept as used and superseded until it expires.
type OTP struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Email      string             `bson:"email"`
	CodeHash   string             `bson:"code_hash"`
	Attempts   int                `bson:"attempts"`
	IsUsed     bool               `bson:"is_used"`
	Superseded bool               `bson:"superseded,omitempty"`
	CreatedAt  time.Time          `bson:"created_at"`
	ExpiresAt  time.Time          `bson:"expires_at"`
}

// UsableAt reports whether the code can still be verified.
func (o *OTP) UsableAt(now time.Time) bool {
	return !o.IsUsed && o.Attempts < OTPMaxAttempts && now.Before(o.ExpiresAt)
}

func (o *OTP) RemainingAttempts() int {
	if left := OTPMaxAttempts - o.Attempts; left > 0 {
		return left
	}
	return 0
}

type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyOTPRequest verifies the code and carries the registration fields of the
// account it unlocks.
type VerifyOTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	OTP      string `json:"otp" validate:"required,len=6,numeric"`
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Username string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Password string `json:"password" validate:"required,min=8"`
}
