package models

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

// DeletedUserName is shown in place of an actor whose account no longer exists.
const DeletedUserName = "Deleted user"

// User is stored in PostgreSQL. Deletion is soft so historical references can
// resolve to a tombstone.
type User struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
	Name           string         `json:"name"`
	Username       string         `json:"username" gorm:"uniqueIndex;size:30"`
	Email          string         `json:"email" gorm:"uniqueIndex"`
	Password       string         `json:"-"` // bcrypt hash
	AvatarURL      string         `json:"avatar_url"`
	Bio            string         `json:"bio"`
	FirebaseUID    *string        `json:"-" gorm:"uniqueIndex"`
	FollowersCount int            `json:"followers_count" gorm:"default:0"`
	FollowingCount int            `json:"following_count" gorm:"default:0"`
}

// UserCompact is the public projection embedded in other responses
type UserCompact struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
	}
}

// DeletedUserCompact is the tombstone rendered for a missing user.
func DeletedUserCompact(id uint) UserCompact {
	return UserCompact{ID: id, Name: DeletedUserName}
}

// Tombstone frees the unique identifiers of a deleted account so they can be
// registered again.
func (u *User) Tombstone() {
	u.Email = fmt.Sprintf("deleted-%d@invalid", u.ID)
	u.Username = fmt.Sprintf("deleted%d", u.ID)
	u.FirebaseUID = nil
	u.Password = ""
}

type UpdateUserRequest struct {
	Name      string `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	AvatarURL string `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Bio       string `json:"bio,omitempty" validate:"omitempty,max=160"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
