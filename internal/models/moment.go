package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MomentTTL is how long a moment stays visible after creation.
const MomentTTL = 24 * time.Hour

const (
	MediaImage = "image"
	MediaVideo = "video"
)

// Moment is a 24h story stored in MongoDB. Views, likes and comments are embedded.
type Moment struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OwnerID         uint               `json:"owner_id" bson:"owner_id"`
	Media           string             `json:"media" bson:"media"`
	MediaType       string             `json:"media_type" bson:"media_type"`
	Caption         string             `json:"caption,omitempty" bson:"caption,omitempty"`
	DurationSeconds int                `json:"duration_seconds" bson:"duration_seconds"`
	IsActive        bool               `json:"is_active" bson:"is_active"`
	Views           []MomentView       `json:"views" bson:"views"`
	Likes           []MomentLike       `json:"likes" bson:"likes"`
	Comments        []MomentComment    `json:"comments" bson:"comments"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	ExpiresAt       time.Time          `json:"expires_at" bson:"expires_at"`
}

type MomentView struct {
	UserID   uint      `json:"user_id" bson:"user_id"`
	ViewedAt time.Time `json:"viewed_at" bson:"viewed_at"`
}

type MomentLike struct {
	UserID  uint      `json:"user_id" bson:"user_id"`
	LikedAt time.Time `json:"liked_at" bson:"liked_at"`
}

type MomentComment struct {
	ID        primitive.ObjectID `json:"id" bson:"id"`
	UserID    uint               `json:"user_id" bson:"user_id"`
	Text      string             `json:"text" bson:"text"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// VisibleAt is the read-time expiry predicate applied on every read path.
func (m *Moment) VisibleAt(now time.Time) bool {
	return m.IsActive && now.Before(m.ExpiresAt)
}

func (m *Moment) ViewedBy(userID uint) bool {
	for _, v := range m.Views {
		if v.UserID == userID {
			return true
		}
	}
	return false
}

func (m *Moment) LikedBy(userID uint) bool {
	for _, l := range m.Likes {
		if l.UserID == userID {
			return true
		}
	}
	return false
}

// MomentResponse is a moment seen from one viewer's perspective
type MomentResponse struct {
	*Moment
	Owner         UserCompact `json:"owner"`
	IsLiked       bool        `json:"is_liked"`
	IsViewed      bool        `json:"is_viewed"`
	LikesCount    int         `json:"likes_count"`
	ViewsCount    int         `json:"views_count"`
	CommentsCount int         `json:"comments_count"`
}

func NewMomentResponse(m *Moment, owner UserCompact, viewerID uint) MomentResponse {
	return MomentResponse{
		Moment:        m,
		Owner:         owner,
		IsLiked:       m.LikedBy(viewerID),
		IsViewed:      m.ViewedBy(viewerID),
		LikesCount:    len(m.Likes),
		ViewsCount:    len(m.Views),
		CommentsCount: len(m.Comments),
	}
}

type CreateMomentRequest struct {
	Media           string `json:"media" validate:"required"`
	MediaType       string `json:"media_type" validate:"required,oneof=image video"`
	Caption         string `json:"caption,omitempty" validate:"omitempty,max=2200"`
	DurationSeconds int    `json:"duration_seconds" validate:"min=0"`
}

type CreateMomentCommentRequest struct {
	Text string `json:"text" validate:"required,max=500"`
}

// LikeToggleResult is the state after a like toggle
type LikeToggleResult struct {
	IsLiked    bool `json:"is_liked"`
	LikesCount int  `json:"likes_count"`
}

// MomentViewer is one entry of a moment's viewer list
type MomentViewer struct {
	User     UserCompact `json:"user"`
	ViewedAt time.Time   `json:"viewed_at"`
}
