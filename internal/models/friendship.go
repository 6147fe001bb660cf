package models

import "gorm.io/gorm"

const (
	ConnectionPending  = "pending"
	ConnectionAccepted = "accepted"
	ConnectionRejected = "rejected"
)

// FriendRequest is a connection request between two users. An accepted request is the
// connection itself.
type FriendRequest struct {
	gorm.Model
	SenderID   uint   `json:"sender_id" gorm:"index"`
	ReceiverID uint   `json:"receiver_id" gorm:"index"`
	Status     string `json:"status" gorm:"type:varchar(20);default:'pending'"`
}

type CreateFriendRequest struct {
	ReceiverID uint `json:"receiver_id" validate:"required"`
}

type UpdateFriendRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
}
