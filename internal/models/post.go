package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PostKind string

const (
	PostText  PostKind = "text"
	PostCode  PostKind = "code"
	PostImage PostKind = "image"
)

// Post represents a social media post stored in MongoDB
type Post struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	AuthorID      uint               `json:"author_id" bson:"author_id"`
	Kind          PostKind           `json:"kind" bson:"kind"`
	Content       string             `json:"content" bson:"content"`
	ImageURLs     []string           `json:"image_urls,omitempty" bson:"image_urls,omitempty"`
	LikesCount    int                `json:"likes_count" bson:"likes_count"`
	CommentsCount int                `json:"comments_count" bson:"comments_count"`
	SharesCount   int                `json:"shares_count" bson:"shares_count"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

type CreatePostRequest struct {
	Kind      PostKind `json:"kind" validate:"omitempty,oneof=text code image"`
	Content   string   `json:"content" validate:"required,min=1,max=5000"`
	ImageURLs []string `json:"image_urls,omitempty" validate:"omitempty,dive,url"`
}
