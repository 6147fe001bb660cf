package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/riseup-connect/backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrConnectionPending  = errors.New("a pending connection request already exists between these users")
	ErrAlreadyConnected   = errors.New("users are already connected")
	ErrConnectionAnswered = errors.New("connection request is no longer pending")
)

// FriendshipRepository stores connection requests
type FriendshipRepository interface {
	SendFriendRequest(ctx context.Context, req *models.FriendRequest) error
	GetFriendRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error)
	GetUserPendingFriendRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	GetUserFriends(ctx context.Context, userID uint) ([]models.User, error)
	UpdateFriendRequestStatus(ctx context.Context, id uint, status string) error
	DeleteAllForUser(ctx context.Context, userID uint) error
}

// PostgresFriendshipRepository implements FriendshipRepository for PostgreSQL
type PostgresFriendshipRepository struct {
	db *gorm.DB
}

// NewPostgresFriendshipRepository creates a new PostgresFriendshipRepository
func NewPostgresFriendshipRepository(db *gorm.DB) *PostgresFriendshipRepository {
	return &PostgresFriendshipRepository{db: db}
}

// SendFriendRequest creates a pending request unless one is pending or accepted in
// either direction. A rejected request may be sent again.
func (r *PostgresFriendshipRepository) SendFriendRequest(ctx context.Context, req *models.FriendRequest) error {
	db := r.db.WithContext(ctx)

	var existing models.FriendRequest
	err := db.Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)) AND status <> ?",
		req.SenderID, req.ReceiverID, req.ReceiverID, req.SenderID, models.ConnectionRejected).
		First(&existing).Error
	if err == nil {
		if existing.Status == models.ConnectionAccepted {
			return ErrAlreadyConnected
		}
		return ErrConnectionPending
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	req.Status = models.ConnectionPending
	return translate(db.Create(req).Error)
}

func (r *PostgresFriendshipRepository) GetFriendRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r *PostgresFriendshipRepository) GetUserPendingFriendRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", userID, models.ConnectionPending).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

// GetUserFriends retrieves all accepted connections for a user
func (r *PostgresFriendshipRepository) GetUserFriends(ctx context.Context, userID uint) ([]models.User, error) {
	var friends []models.User
	db := r.db.WithContext(ctx)
	sent := db.Table("friend_requests").Select("receiver_id").
		Where("sender_id = ? AND status = ? AND deleted_at IS NULL", userID, models.ConnectionAccepted)
	received := db.Table("friend_requests").Select("sender_id").
		Where("receiver_id = ? AND status = ? AND deleted_at IS NULL", userID, models.ConnectionAccepted)

	err := db.Where("id IN (?) OR id IN (?)", sent, received).Find(&friends).Error
	return friends, err
}

// UpdateFriendRequestStatus answers a pending request. It returns
// ErrConnectionAnswered when the request was answered in the meantime.
func (r *PostgresFriendshipRepository) UpdateFriendRequestStatus(ctx context.Context, id uint, status string) error {
	res := r.db.WithContext(ctx).Model(&models.FriendRequest{}).
		Where("id = ? AND status = ?", id, models.ConnectionPending).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConnectionAnswered
	}
	return nil
}

func (r *PostgresFriendshipRepository) DeleteAllForUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("sender_id = ? OR receiver_id = ?", userID, userID).Delete(&models.FriendRequest{}).Error
}
