package models

import "gorm.io/gorm"

// Comment represents a comment on a post
type Comment struct {
	gorm.Model
	PostID  string `json:"post_id" gorm:"index"` // MongoDB ObjectID hex
	UserID  uint   `json:"user_id" gorm:"index"`
	Content string `json:"content"`
}

type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=500"`
}
