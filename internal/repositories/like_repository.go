package repositories

import (
	"context"

	"github.com/anonto42/riseup-connect/backend/internal/models"
	"gorm.io/gorm"
)

// LikeRepository defines the interface for post like operations
type LikeRepository interface {
	CreateLike(ctx context.Context, like *models.Like) error
	DeleteLike(ctx context.Context, postID string, userID uint) error
	HasUserLikedPost(ctx context.Context, postID string, userID uint) (bool, error)
}

// PostgresLikeRepository implements LikeRepository for PostgreSQL
type PostgresLikeRepository struct {
	db *gorm.DB
}

// NewPostgresLikeRepository creates a new PostgresLikeRepository
func NewPostgresLikeRepository(db *gorm.DB) *PostgresLikeRepository {
	return &PostgresLikeRepository{db: db}
}

func (r *PostgresLikeRepository) CreateLike(ctx context.Context, like *models.Like) error {
	return translate(r.db.WithContext(ctx).Create(like).Error)
}

// DeleteLike hard-deletes so a later like starts a fresh row
func (r *PostgresLikeRepository) DeleteLike(ctx context.Context, postID string, userID uint) error {
	res := r.db.WithContext(ctx).Unscoped().Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresLikeRepository) HasUserLikedPost(ctx context.Context, postID string, userID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ? AND user_id = ?", postID, userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
